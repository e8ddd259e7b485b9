package messaging

import (
	"context"
	"testing"

	"github.com/azure-way/aidocwriter/internal/status"
)

func TestNopFacadeDropsEverything(t *testing.T) {
	var f NopFacade
	if err := f.Publish(context.Background(), status.Event{JobID: "job-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecordingFacadeBuffersEvents(t *testing.T) {
	f := &RecordingFacade{}
	ev1 := status.Event{JobID: "job-1", Stage: "PLAN"}
	ev2 := status.Event{JobID: "job-1", Stage: "WRITE"}
	if err := f.Publish(context.Background(), ev1); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.Publish(context.Background(), ev2); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(f.Events) != 2 {
		t.Fatalf("len = %d, want 2", len(f.Events))
	}
	if f.Events[0].Stage != "PLAN" || f.Events[1].Stage != "WRITE" {
		t.Errorf("events out of order: %+v", f.Events)
	}
}

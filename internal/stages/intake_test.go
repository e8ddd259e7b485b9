package stages

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/azure-way/aidocwriter/internal/agents"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/store"
)

func TestPlanIntakeParksJobAndWritesQuestions(t *testing.T) {
	d := newTestDeps()
	fake := d.Agents.(*agents.FakeClient)
	fake.JSONResponses["intake_questions"] = map[string]any{
		"questions": []any{
			map[string]any{"id": "q1", "q": "What is the company name?", "sample": "Acme Inc"},
		},
	}

	h := &PlanIntake{Deps: d}
	p := model.Payload{JobID: "job-1", Title: "Company Profile"}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil successor map (job parked), got %v", out)
	}

	paths := store.NewJobStoragePaths("job-1")
	if _, err := d.Store.Get(context.Background(), paths.IntakeQuestions()); err != nil {
		t.Errorf("expected intake questions to be written: %v", err)
	}
	latest, ok, err := d.Status.Latest(context.Background(), "job-1")
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if latest.Stage != "INTAKE_READY" {
		t.Errorf("Stage = %q, want INTAKE_READY", latest.Stage)
	}
}

func TestPlanIntakeCapsQuestionsAtTwelve(t *testing.T) {
	d := newTestDeps()
	fake := d.Agents.(*agents.FakeClient)
	var questions []any
	for i := 0; i < 20; i++ {
		questions = append(questions, map[string]any{"id": "q", "q": "q", "sample": "s"})
	}
	fake.JSONResponses["intake_questions"] = map[string]any{"questions": questions}

	h := &PlanIntake{Deps: d}
	if _, err := h.Run(context.Background(), model.Payload{JobID: "job-1"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	paths := store.NewJobStoragePaths("job-1")
	blob, err := d.Store.Get(context.Background(), paths.IntakeQuestions())
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("unmarshal questions: %v", err)
	}
	if len(decoded) != 12 {
		t.Errorf("questions len = %d, want capped at 12", len(decoded))
	}
}

func TestIntakeResumeRehydratesFromContextSnapshot(t *testing.T) {
	d := newTestDeps()
	fake := d.Agents.(*agents.FakeClient)
	fake.JSONResponses["intake_questions"] = map[string]any{"questions": []any{}}

	intake := &PlanIntake{Deps: d}
	if _, err := intake.Run(context.Background(), model.Payload{JobID: "job-1", Title: "T", Audience: "A", Out: "jobs/job-1/draft.md"}); err != nil {
		t.Fatalf("PlanIntake.Run: %v", err)
	}

	resume := &IntakeResume{Deps: d}
	out, err := resume.Run(context.Background(), model.Payload{JobID: "job-1"})
	if err != nil {
		t.Fatalf("IntakeResume.Run: %v", err)
	}
	plans, ok := out[d.Cfg.QueueNames.Plan]
	if !ok || len(plans) != 1 {
		t.Fatalf("expected one payload forwarded to plan queue, got %v", out)
	}
	if plans[0].Title != "T" || plans[0].Audience != "A" {
		t.Errorf("rehydrated payload = %+v, want Title=T Audience=A", plans[0])
	}
}

func TestIntakeResumeDefaultsOutPathWhenMissing(t *testing.T) {
	d := newTestDeps()
	resume := &IntakeResume{Deps: d}
	out, err := resume.Run(context.Background(), model.Payload{JobID: "job-2", Title: "T", Audience: "A"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	forwarded := out[d.Cfg.QueueNames.Plan][0]
	if forwarded.Out == "" {
		t.Error("expected Out to be defaulted when absent")
	}
}

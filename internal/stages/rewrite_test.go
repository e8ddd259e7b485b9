package stages

import (
	"context"
	"testing"

	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/store"
)

func TestRewriteFastPathAdvancesWithoutTouchingDraft(t *testing.T) {
	d := newTestDeps()
	h := &Rewrite{Deps: d}
	p := model.Payload{JobID: "job-1", RequiresRewrite: false}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := out[d.Cfg.QueueNames.DiagramPrep]; !ok {
		t.Fatalf("expected default single-cycle job to advance straight to diagram_prep, got %v", out)
	}
}

func TestRewriteAdvanceLoopsBackToReviewGeneralWhenCyclesRemain(t *testing.T) {
	d := newTestDeps()
	h := &Rewrite{Deps: d}
	expected := 2
	p := model.Payload{JobID: "job-1", RequiresRewrite: false, ExpectedCycles: &expected}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	forwarded, ok := out[d.Cfg.QueueNames.ReviewGeneral]
	if !ok || len(forwarded) != 1 {
		t.Fatalf("expected loop back to review_general, got %v", out)
	}
	if forwarded[0].CyclesCompleted == nil || *forwarded[0].CyclesCompleted != 1 {
		t.Errorf("CyclesCompleted = %v, want pointer to 1", forwarded[0].CyclesCompleted)
	}
}

func TestRewriteRejectsPayloadWithoutPlanWhenRewriteRequired(t *testing.T) {
	d := newTestDeps()
	h := &Rewrite{Deps: d}
	_, err := h.Run(context.Background(), model.Payload{JobID: "job-1", RequiresRewrite: true})
	if err == nil {
		t.Fatal("expected error when rewrite is required but payload has no plan")
	}
}

func TestRewriteProcessesAffectedSectionsFromContradictions(t *testing.T) {
	d := newTestDeps()
	d.Cfg.WriteBatchSize = 10
	seedDraft(t, d, "job-1")
	paths := store.NewJobStoragePaths("job-1")
	verifyBlob := []byte(`[{"section_id":"intro","detail":"conflict"}]`)
	if err := d.Store.Put(context.Background(), paths.VerificationJSON(0), verifyBlob, "application/json"); err != nil {
		t.Fatalf("seed verification: %v", err)
	}

	h := &Rewrite{Deps: d}
	p := model.Payload{
		JobID: "job-1", Out: "jobs/job-1/draft.md", RequiresRewrite: true,
		Plan:                reviewSamplePlan(),
		DependencySummaries: map[string]string{},
	}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	forwarded, ok := out[d.Cfg.QueueNames.DiagramPrep]
	if !ok || len(forwarded) != 1 {
		t.Fatalf("expected advance to diagram_prep once the sole affected section is rewritten, got %v", out)
	}
	if forwarded[0].RequiresRewrite {
		t.Error("expected RequiresRewrite cleared after advance")
	}
}

func TestRewriteFallsBackToAllSectionsOnGlobalGuidanceWithNoDirectlyAffectedSections(t *testing.T) {
	d := newTestDeps()
	d.Cfg.WriteBatchSize = 10
	seedDraft(t, d, "job-1")
	paths := store.NewJobStoragePaths("job-1")
	styleBlob := []byte(`{"sections":[],"global_guidance":"tighten the overall tone"}`)
	if err := d.Store.Put(context.Background(), paths.StyleJSON(0), styleBlob, "application/json"); err != nil {
		t.Fatalf("seed style artifact: %v", err)
	}

	h := &Rewrite{Deps: d}
	p := model.Payload{
		JobID: "job-1", Out: "jobs/job-1/draft.md", RequiresRewrite: true,
		Plan:                reviewSamplePlan(),
		DependencySummaries: map[string]string{},
	}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	forwarded, ok := out[d.Cfg.QueueNames.DiagramPrep]
	if !ok || len(forwarded) != 1 {
		t.Fatalf("expected advance once both sections are rewritten under global guidance, got %v", out)
	}
	if len(forwarded[0].RewrittenSections) != 0 {
		t.Errorf("RewrittenSections = %v, want cleared after advance", forwarded[0].RewrittenSections)
	}
}

func TestRewriteReEnqueuesSelfWhenBatchCapLeavesSectionsPending(t *testing.T) {
	d := newTestDeps()
	d.Cfg.WriteBatchSize = 1
	seedDraft(t, d, "job-1")
	paths := store.NewJobStoragePaths("job-1")
	verifyBlob := []byte(`[{"section_id":"intro"},{"section_id":"body"}]`)
	if err := d.Store.Put(context.Background(), paths.VerificationJSON(0), verifyBlob, "application/json"); err != nil {
		t.Fatalf("seed verification: %v", err)
	}

	h := &Rewrite{Deps: d}
	p := model.Payload{
		JobID: "job-1", Out: "jobs/job-1/draft.md", RequiresRewrite: true,
		Plan:                reviewSamplePlan(),
		DependencySummaries: map[string]string{},
	}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	forwarded, ok := out[h.Queue()]
	if !ok || len(forwarded) != 1 {
		t.Fatalf("expected re-enqueue to rewrite queue, got %v", out)
	}
	if len(forwarded[0].RewrittenSections) != 1 {
		t.Errorf("RewrittenSections = %v, want exactly one section rewritten under batch cap of 1", forwarded[0].RewrittenSections)
	}
}

package stages

import (
	"context"
	"strings"
	"testing"

	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/plan"
	"github.com/azure-way/aidocwriter/internal/store"
)

func TestWriteRejectsPayloadWithoutPlan(t *testing.T) {
	d := newTestDeps()
	h := &Write{Deps: d}
	_, err := h.Run(context.Background(), model.Payload{JobID: "job-1"})
	if err == nil {
		t.Fatal("expected error when payload has no plan")
	}
}

func TestWriteProcessesBatchAndReEnqueuesWhenIncomplete(t *testing.T) {
	d := newTestDeps()
	d.Cfg.WriteBatchSize = 1
	p := model.Payload{
		JobID: "job-1", Out: "jobs/job-1/draft.md",
		Plan: &plan.Plan{Title: "Doc", Audience: "Aud", Outline: []plan.Section{
			{ID: "intro"}, {ID: "body", Dependencies: []string{"intro"}},
		}},
	}
	h := &Write{Deps: d}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	forwarded, ok := out[d.Cfg.QueueNames.Write]
	if !ok || len(forwarded) != 1 {
		t.Fatalf("expected re-enqueue to write queue, got %v", out)
	}
	if len(forwarded[0].WrittenSections) != 1 {
		t.Fatalf("WrittenSections = %v, want exactly one section written", forwarded[0].WrittenSections)
	}
}

func TestWriteForwardsToReviewGeneralWhenAllSectionsWritten(t *testing.T) {
	d := newTestDeps()
	d.Cfg.WriteBatchSize = 10
	p := model.Payload{
		JobID: "job-1", Out: "jobs/job-1/draft.md",
		Plan: &plan.Plan{Title: "Doc", Audience: "Aud", Outline: []plan.Section{{ID: "intro"}}},
	}
	h := &Write{Deps: d}
	out, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	forwarded, ok := out[d.Cfg.QueueNames.ReviewGeneral]
	if !ok || len(forwarded) != 1 {
		t.Fatalf("expected forward to review_general, got %v", out)
	}
	if len(forwarded[0].WrittenSections) != 1 {
		t.Errorf("WrittenSections = %v, want 1", forwarded[0].WrittenSections)
	}
}

func TestWritePersistsDraftWithTitlePage(t *testing.T) {
	d := newTestDeps()
	d.Cfg.WriteBatchSize = 10
	p := model.Payload{
		JobID: "job-1", Out: "jobs/job-1/draft.md",
		Plan: &plan.Plan{Title: "My Title", Audience: "My Audience", Outline: []plan.Section{{ID: "intro"}}},
	}
	h := &Write{Deps: d}
	if _, err := h.Run(context.Background(), p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	paths := store.NewJobStoragePaths("job-1")
	blob, err := d.Store.Get(context.Background(), paths.DraftMarkdown())
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if !strings.Contains(string(blob), "My Title") {
		t.Errorf("draft missing title page: %q", blob)
	}
}

func TestWriteSectionTruncatesOverlongOutput(t *testing.T) {
	d := newTestDeps()
	d.Cfg.MaxSectionTokens = 2
	fake := d.Agents
	h := &Write{Deps: d}
	longText := strings.Repeat("word ", 200)
	_ = fake
	d.Agents = &fixedTextClient{text: longText}
	out, err := h.writeSection(context.Background(), plan.Section{ID: "s1", Title: "S1"}, "", "")
	if err != nil {
		t.Fatalf("writeSection: %v", err)
	}
	if len(out) > d.Cfg.MaxSectionTokens*3 {
		t.Errorf("output not truncated: len=%d, want <= %d", len(out), d.Cfg.MaxSectionTokens*3)
	}
}

type fixedTextClient struct{ text string }

func (c *fixedTextClient) GenerateJSON(context.Context, string, string, string, map[string]any) (map[string]any, error) {
	return nil, nil
}
func (c *fixedTextClient) GenerateText(context.Context, string, string) (string, error) {
	return c.text, nil
}

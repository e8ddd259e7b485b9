package review

import (
	"strings"
	"testing"

	"github.com/azure-way/aidocwriter/internal/draft"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/plan"
)

func samplePlan() *plan.Plan {
	return &plan.Plan{Outline: []plan.Section{
		{ID: "intro", Title: "Introduction"},
		{ID: "body", Title: "Body", Dependencies: []string{"intro"}},
		{ID: "conclusion", Title: "Conclusion", Dependencies: []string{"body"}},
	}}
}

func sampleDoc() string {
	return draft.WrapSection("intro", "intro text") + "\n\n" +
		draft.WrapSection("body", "body text") + "\n\n" +
		draft.WrapSection("conclusion", "conclusion text")
}

func TestNextBatchOrdersTopologicallyAndRespectsCountCap(t *testing.T) {
	p := samplePlan()
	batch, err := NextBatch(p, nil, sampleDoc(), nil, 1, 10000)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch.SectionIDs) != 1 || batch.SectionIDs[0] != "intro" {
		t.Fatalf("batch = %v, want [intro] first under cap of 1", batch.SectionIDs)
	}
}

func TestNextBatchSkipsSectionsAlreadyDone(t *testing.T) {
	p := samplePlan()
	batch, err := NextBatch(p, nil, sampleDoc(), []string{"intro"}, 10, 10000)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	for _, id := range batch.SectionIDs {
		if id == "intro" {
			t.Error("intro should have been excluded as already done")
		}
	}
}

func TestNextBatchReturnsEmptyWhenAllDone(t *testing.T) {
	p := samplePlan()
	batch, err := NextBatch(p, nil, sampleDoc(), []string{"intro", "body", "conclusion"}, 10, 10000)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch.SectionIDs) != 0 {
		t.Fatalf("expected empty batch, got %v", batch.SectionIDs)
	}
}

func TestNextBatchAlwaysMakesProgressUnderTinyTokenCap(t *testing.T) {
	p := samplePlan()
	batch, err := NextBatch(p, nil, sampleDoc(), nil, 10, 1)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch.SectionIDs) != 1 {
		t.Fatalf("expected exactly one section forced through despite tiny token cap, got %v", batch.SectionIDs)
	}
}

func TestNextBatchIncludesDependencyStubsInPrompt(t *testing.T) {
	p := samplePlan()
	summaries := map[string]string{"intro": "Introduces the topic."}
	batch, err := NextBatch(p, summaries, sampleDoc(), []string{"intro"}, 10, 10000)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if !strings.Contains(batch.Prompt, "Introduces the topic.") {
		t.Errorf("prompt missing dependency summary: %q", batch.Prompt)
	}
}

func TestDependencySummaryOrFallsBackWhenMissing(t *testing.T) {
	got := DependencySummaryOr(nil, "intro", "Introduction")
	if !strings.Contains(got, "intro") {
		t.Errorf("fallback summary = %q, want it to mention the section id", got)
	}
}

func TestAllDone(t *testing.T) {
	p := samplePlan()
	if AllDone(p, []string{"intro", "body"}) {
		t.Error("expected not all done with conclusion missing")
	}
	if !AllDone(p, []string{"intro", "body", "conclusion"}) {
		t.Error("expected all done")
	}
}

func TestMergeSectionsDoneDeduplicates(t *testing.T) {
	got := MergeSectionsDone([]string{"intro"}, []string{"intro", "body"})
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 unique entries", got)
	}
}

func TestApplyFindingsMarksBatchDoneOnEmptyResult(t *testing.T) {
	progress := &model.ReviewAgentProgress{}
	completed := ApplyFindings(progress, []string{"intro", "body"}, FindingsResult{})
	if len(completed) != 2 {
		t.Fatalf("expected malformed/empty result to still mark the batch done, got %v", completed)
	}
}

func TestApplyFindingsAccumulatesPerSection(t *testing.T) {
	progress := &model.ReviewAgentProgress{}
	result := FindingsResult{Sections: []SectionFinding{
		{SectionID: "intro", Issues: "too long", Suggestions: "trim it"},
	}}
	completed := ApplyFindings(progress, []string{"intro"}, result)
	if len(completed) != 1 || completed[0] != "intro" {
		t.Fatalf("completed = %v, want [intro]", completed)
	}
	entry, ok := progress.Accumulated["intro"].(map[string]any)
	if !ok {
		t.Fatalf("expected accumulated entry for intro, got %+v", progress.Accumulated)
	}
	if entry["issues"] != "too long" {
		t.Errorf("issues = %v, want %q", entry["issues"], "too long")
	}
}

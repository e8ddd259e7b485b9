// Package review implements the review batching sub-scheduler (spec.md
// §4.8): per-agent progress persistence and the greedy section-batching
// algorithm every review_* stage processor drives.
package review

import (
	"fmt"
	"strings"

	"github.com/azure-way/aidocwriter/internal/docgraph"
	"github.com/azure-way/aidocwriter/internal/draft"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/plan"
)

// Batch is one dispatch's worth of work for an agent: the section ids it
// covers and the composed prompt to send.
type Batch struct {
	SectionIDs []string
	Prompt     string
}

// DependencySummaryOr returns the dependency summary for id, or a generic
// fallback when the writer never produced one (spec.md §4.8 step 4).
func DependencySummaryOr(summaries map[string]string, id, title string) string {
	if s, ok := summaries[id]; ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fmt.Sprintf("(no summary available for %s)", id)
}

// NextBatch implements spec.md §4.8 steps 1-3: extract section ids present
// in the draft, order them topologically restricted to that set, drop ones
// already in sectionsDone, then greedily pack a prefix under the section
// count cap and the token cap.
func NextBatch(p *plan.Plan, dependencySummaries map[string]string, doc string, sectionsDone []string, batchSize, maxPromptTokens int) (Batch, error) {
	present := map[string]bool{}
	for _, s := range draft.ExtractSections(doc) {
		present[s.ID] = true
	}

	order, err := docgraph.TopoSort(p)
	if err != nil {
		return Batch{}, err
	}

	done := map[string]bool{}
	for _, id := range sectionsDone {
		done[id] = true
	}

	var remaining []string
	for _, id := range order {
		if present[id] && !done[id] {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return Batch{}, nil
	}

	sectionByID := map[string]draft.Section{}
	for _, s := range draft.ExtractSections(doc) {
		sectionByID[s.ID] = s
	}
	planSections := p.SectionByID()

	var chosen []string
	var promptParts []string
	depStubs := map[string]bool{}
	tokenTotal := 0

	for _, id := range remaining {
		if len(chosen) >= batchSize {
			break
		}
		section := sectionByID[id]
		sectionPrompt := section.Body
		candidateTokens := draft.EstimateTokens(sectionPrompt)

		var newStubs []string
		if ps, ok := planSections[id]; ok {
			for _, dep := range ps.Dependencies {
				if depStubs[dep] || contains(chosen, dep) {
					continue
				}
				depTitle := ""
				if dps, ok := planSections[dep]; ok {
					depTitle = dps.Title
				}
				stub := fmt.Sprintf("Dependency %s (%s) summary: %s", dep, depTitle, DependencySummaryOr(dependencySummaries, dep, depTitle))
				newStubs = append(newStubs, stub)
				candidateTokens += draft.EstimateTokens(stub)
			}
		}

		if len(chosen) > 0 && tokenTotal+candidateTokens > maxPromptTokens {
			break
		}

		for _, stub := range newStubs {
			promptParts = append(promptParts, stub)
		}
		for _, dep := range planSections[id].Dependencies {
			depStubs[dep] = true
		}
		promptParts = append(promptParts, sectionPrompt)
		chosen = append(chosen, id)
		tokenTotal += candidateTokens
	}

	if len(chosen) == 0 && len(remaining) > 0 {
		// Always make progress: a single section whose own body exceeds
		// maxPromptTokens still gets sent alone rather than stalling forever.
		chosen = []string{remaining[0]}
		promptParts = []string{sectionByID[remaining[0]].Body}
	}

	return Batch{SectionIDs: chosen, Prompt: strings.Join(promptParts, "\n\n")}, nil
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// AllDone reports whether every outline section id of p is present in
// progress's sections_done.
func AllDone(p *plan.Plan, sectionsDone []string) bool {
	done := map[string]bool{}
	for _, id := range sectionsDone {
		done[id] = true
	}
	for _, s := range p.Outline {
		if !done[s.ID] {
			return false
		}
	}
	return true
}

// MergeSectionsDone appends newly completed ids without duplicating ones
// already recorded (spec.md §8 P6 "growing prefix").
func MergeSectionsDone(existing []string, added []string) []string {
	seen := map[string]bool{}
	for _, id := range existing {
		seen[id] = true
	}
	out := append([]string(nil), existing...)
	for _, id := range added {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// FindingsResult is the shape every review agent's batch method returns
// (spec.md §6 "review_batch(...) -> JSON with sections[]").
type FindingsResult struct {
	Sections []SectionFinding `json:"sections"`
	// RevisedMarkdown is populated by the general reviewer only, a
	// full-document alternative merge source (spec.md §9 open question).
	RevisedMarkdown string `json:"revised_markdown,omitempty"`
}

type SectionFinding struct {
	SectionID       string `json:"section_id"`
	Issues          string `json:"issues,omitempty"`
	Suggestions     string `json:"suggestions,omitempty"`
	Summary         string `json:"summary,omitempty"`
	RevisedMarkdown string `json:"revised_markdown,omitempty"`
}

// ApplyFindings merges FindingsResult into a ReviewAgentProgress's
// accumulated map, keyed by section id, and returns the ids to mark done.
// If result carries no sections at all, every batched id is still marked
// done (spec.md §4.8 step 5 "do not loop forever on a malformed response").
func ApplyFindings(progress *model.ReviewAgentProgress, batch []string, result FindingsResult) []string {
	if progress.Accumulated == nil {
		progress.Accumulated = map[string]any{}
	}
	if len(result.Sections) == 0 {
		return append([]string(nil), batch...)
	}
	var completed []string
	for _, f := range result.Sections {
		entry := map[string]any{}
		if f.Issues != "" {
			entry["issues"] = f.Issues
		}
		if f.Suggestions != "" {
			entry["suggestions"] = f.Suggestions
		}
		if f.Summary != "" {
			entry["summary"] = f.Summary
		}
		progress.Accumulated[f.SectionID] = entry
		if f.RevisedMarkdown != "" {
			revised, _ := progress.Accumulated["revised_markdown"].(string)
			progress.Accumulated["revised_markdown"] = revised + "\n\n" + f.RevisedMarkdown
		}
		completed = append(completed, f.SectionID)
	}
	return completed
}

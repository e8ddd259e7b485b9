package stages

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/azure-way/aidocwriter/internal/draft"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/store"
)

// Verify implements the verify processor (spec.md §4.7.6): merges any
// revised markdown the general reviewer produced, scans for placeholder
// sections, calls the Verifier agent, and always hands off to rewrite
// with requires_rewrite set according to the four issue flags.
type Verify struct {
	*Deps
}

func (h *Verify) Queue() string { return h.Cfg.QueueNames.Verify }

type contradictionsResult struct {
	Contradictions []contradiction `json:"contradictions"`
}

type contradiction struct {
	SectionID string `json:"section_id"`
	Detail    string `json:"detail,omitempty"`
}

type reviewSections struct {
	Sections []struct {
		SectionID   string `json:"section_id"`
		Issues      string `json:"issues,omitempty"`
		Suggestions string `json:"suggestions,omitempty"`
	} `json:"sections"`
	RevisedMarkdown string `json:"revised_markdown,omitempty"`
	// GlobalGuidance is an optional top-level note a reviewer agent can
	// attach that applies to the whole document rather than one section
	// (spec.md §4.7.7 "a global guidance string").
	GlobalGuidance string `json:"global_guidance,omitempty"`
}

func (h *Verify) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	state, err := h.Hydrate(ctx, &p)
	if err != nil {
		return nil, err
	}

	paths := store.NewJobStoragePaths(p.JobID)
	docBlob, err := h.Store.Get(ctx, paths.DraftMarkdown())
	if err != nil {
		return nil, err
	}
	doc := string(docBlob)

	cycleIdx := state.Completed
	if reviewBlob, err := h.Store.Get(ctx, paths.ReviewJSON(cycleIdx)); err == nil {
		var rs reviewSections
		if json.Unmarshal(reviewBlob, &rs) == nil && rs.RevisedMarkdown != "" {
			doc = draft.MergeRevisedMarkdown(doc, rs.RevisedMarkdown)
		}
	}

	var placeholders []string
	for _, s := range draft.ExtractSections(doc) {
		if draft.IsPlaceholder(s.InnerText()) {
			placeholders = append(placeholders, s.ID)
		}
	}

	depSummariesJSON, err := json.Marshal(p.DependencySummaries)
	if err != nil {
		return nil, err
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"contradictions": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		},
		"required": []string{"contradictions"},
	}
	result, err := h.Agents.GenerateJSON(ctx,
		"You verify a draft document for factual contradictions against its section summaries.",
		string(depSummariesJSON)+"\n\n"+doc, "verify_contradictions", schema)
	if err != nil {
		return nil, err
	}
	var parsed contradictionsResult
	if err := decodeResult(result, &parsed); err != nil {
		return nil, err
	}

	styleIssues := sectionsWithGuidance(ctx, h.Store, paths.StyleJSON(cycleIdx))
	cohesionIssues := sectionsWithGuidance(ctx, h.Store, paths.CohesionJSON(cycleIdx))

	hasContradictions := len(parsed.Contradictions) > 0
	hasStyleGuidance := len(styleIssues) > 0
	hasCohesionGuidance := len(cohesionIssues) > 0
	hasPlaceholders := len(placeholders) > 0

	needsRewrite := hasContradictions || hasStyleGuidance || hasCohesionGuidance || hasPlaceholders
	p.RequiresRewrite = needsRewrite
	p.PlaceholderSections = placeholders

	contradictionsBlob, err := json.Marshal(parsed.Contradictions)
	if err != nil {
		return nil, err
	}
	if err := h.Store.Put(ctx, paths.VerificationJSON(cycleIdx), contradictionsBlob, "application/json"); err != nil {
		return nil, err
	}
	if doc != string(docBlob) {
		if err := h.Store.Put(ctx, paths.MergedMarkdown(cycleIdx), []byte(doc), "text/markdown; charset=utf-8"); err != nil {
			return nil, err
		}
		if err := h.Store.Put(ctx, paths.DraftMarkdown(), []byte(doc), "text/markdown; charset=utf-8"); err != nil {
			return nil, err
		}
	}

	if err := h.PublishStageEvent(ctx, "VERIFY", "DONE", p,
		WithFlags(hasContradictions, hasStyleGuidance, hasCohesionGuidance, hasPlaceholders)); err != nil {
		return nil, err
	}
	return map[string][]model.Payload{h.Cfg.QueueNames.Rewrite: {p}}, nil
}

// sectionsWithGuidance reads a style/cohesion artifact and returns the
// section ids that carry non-empty issues or suggestions.
func sectionsWithGuidance(ctx context.Context, st store.ObjectStore, path string) []string {
	blob, err := st.Get(ctx, path)
	if err != nil {
		return nil
	}
	var rs reviewSections
	if json.Unmarshal(blob, &rs) != nil {
		return nil
	}
	var ids []string
	for _, s := range rs.Sections {
		if strings.TrimSpace(s.Issues) != "" || strings.TrimSpace(s.Suggestions) != "" {
			ids = append(ids, s.SectionID)
		}
	}
	return ids
}

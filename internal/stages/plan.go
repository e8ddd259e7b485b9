package stages

import (
	"context"
	"encoding/json"

	"github.com/azure-way/aidocwriter/internal/docgraph"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/plan"
	"github.com/azure-way/aidocwriter/internal/store"
)

// PlanStage implements the plan processor (spec.md §4.7.3): calls the
// planner agent, reuses a prior plan's title/audience/length if one
// exists, clamps length to the minimum, and hands off to write.
type PlanStage struct {
	*Deps
}

func (h *PlanStage) Queue() string { return h.Cfg.QueueNames.Plan }

func (h *PlanStage) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	if _, err := h.Hydrate(ctx, &p); err != nil {
		return nil, err
	}

	paths := store.NewJobStoragePaths(p.JobID)
	var prior *plan.Plan
	if existing, err := h.Store.Get(ctx, paths.PlanJSON()); err == nil {
		var pr plan.Plan
		if json.Unmarshal(existing, &pr) == nil {
			prior = &pr
		}
	}

	schema := planJSONSchema()
	result, err := h.Agents.GenerateJSON(ctx,
		plannerSystemPrompt(p.DocKind),
		"Title: "+p.Title+"\nAudience: "+p.Audience,
		"document_plan", schema)
	if err != nil {
		return nil, err
	}
	var pl plan.Plan
	if err := decodeResult(result, &pl); err != nil {
		return nil, err
	}
	pl.DocKind = p.DocKind
	if pl.DocKind == "" {
		pl.DocKind = plan.DocKindGeneric
	}
	if prior != nil {
		pl.Title = prior.Title
		pl.Audience = prior.Audience
		pl.LengthPages = prior.LengthPages
	}
	if pl.Title == "" {
		pl.Title = p.Title
	}
	if pl.Audience == "" {
		pl.Audience = p.Audience
	}
	pl.ClampLength()
	mergeIntakeAnswersIntoStyle(ctx, h.Store, paths, &pl)

	if err := docgraph.Validate(&pl); err != nil {
		return nil, err
	}

	blob, err := json.Marshal(pl)
	if err != nil {
		return nil, err
	}
	if err := h.Store.Put(ctx, paths.PlanJSON(), blob, "application/json"); err != nil {
		return nil, err
	}

	p.Plan = &pl
	p.DependencySummaries = map[string]string{}

	if err := h.PublishStageEvent(ctx, "PLAN", "DONE", p, WithArtifact(paths.PlanJSON())); err != nil {
		return nil, err
	}
	return map[string][]model.Payload{h.Cfg.QueueNames.Write: {p}}, nil
}

// mergeIntakeAnswersIntoStyle folds tone/pov/structure/constraints from the
// intake answers blob (if the caller ever uploaded one) into global_style,
// per spec.md §4.7.3. Absence of the answers blob is normal (intake is
// optional) and not an error.
func mergeIntakeAnswersIntoStyle(ctx context.Context, st store.ObjectStore, paths store.JobStoragePaths, pl *plan.Plan) {
	blob, err := st.Get(ctx, paths.IntakeAnswers())
	if err != nil {
		return
	}
	var answers struct {
		Tone        string `json:"tone"`
		POV         string `json:"pov"`
		Structure   string `json:"structure"`
		Constraints string `json:"constraints"`
	}
	if json.Unmarshal(blob, &answers) != nil {
		return
	}
	var extra string
	for _, part := range []string{answers.Tone, answers.POV, answers.Structure, answers.Constraints} {
		if part == "" {
			continue
		}
		if extra != "" {
			extra += " "
		}
		extra += part
	}
	if extra == "" {
		return
	}
	if pl.GlobalStyle == "" {
		pl.GlobalStyle = extra
	} else {
		pl.GlobalStyle = pl.GlobalStyle + " " + extra
	}
}

// plannerSystemPrompt varies the outline structure by doc_kind (spec.md §9
// supplemental "company-profile / RFP intake variants"): unrecognized or
// empty kinds get the generic planner, unaffected by this branch.
func plannerSystemPrompt(kind plan.DocKind) string {
	switch kind {
	case plan.DocKindCompanyProfile:
		return "You are a planning agent that produces a structured outline for a company-profile document, covering history, offerings, market position, and leadership."
	case plan.DocKindRFP:
		return "You are a planning agent that produces a structured outline for an RFP response, covering requirements coverage, approach, pricing, and compliance."
	default:
		return "You are a planning agent that produces a structured document outline."
	}
}

func planJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":        map[string]any{"type": "string"},
			"audience":     map[string]any{"type": "string"},
			"length_pages": map[string]any{"type": "integer"},
			"outline":      map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
			"glossary":     map[string]any{"type": "object"},
			"global_style": map[string]any{"type": "string"},
			"diagram_specs": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		},
		"required": []string{"outline"},
	}
}

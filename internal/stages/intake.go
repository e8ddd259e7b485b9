package stages

import (
	"context"
	"encoding/json"

	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/plan"
	"github.com/azure-way/aidocwriter/internal/store"
)

// interviewerSystemPrompt varies the interview focus by doc_kind (spec.md
// §9 supplemental "company-profile / RFP intake variants"); absent or
// unrecognized kinds fall back to the generic interviewer.
func interviewerSystemPrompt(kind plan.DocKind) string {
	switch kind {
	case plan.DocKindCompanyProfile:
		return "You are an interviewer gathering context for a company-profile document: focus on company history, products, market position, and leadership."
	case plan.DocKindRFP:
		return "You are an interviewer gathering context for an RFP response: focus on requirements, evaluation criteria, pricing, and compliance constraints."
	default:
		return "You are an interviewer gathering context for a document-generation job."
	}
}

// PlanIntake implements the plan_intake processor (spec.md §4.7.1): asks
// the interviewer agent for a bounded question list and parks the job
// until the caller supplies answers and invokes resume. Grounded on the
// teacher's two-phase job pattern (a job that ends in "waiting_user"
// rather than enqueuing a successor), adapted from the orchestrator's
// StageWaitingChild handling to a queue-based pipeline with no successor
// queue at all.
type PlanIntake struct {
	*Deps
}

func (h *PlanIntake) Queue() string { return h.Cfg.QueueNames.PlanIntake }

type intakeQuestion struct {
	ID     string `json:"id"`
	Q      string `json:"q"`
	Sample string `json:"sample"`
}

func (h *PlanIntake) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	if _, err := h.Hydrate(ctx, &p); err != nil {
		return nil, err
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		},
		"required": []string{"questions"},
	}
	result, err := h.Agents.GenerateJSON(ctx, interviewerSystemPrompt(p.DocKind),
		"Title: "+p.Title, "intake_questions", schema)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Questions []intakeQuestion `json:"questions"`
	}
	if err := decodeResult(result, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Questions) > 12 {
		parsed.Questions = parsed.Questions[:12]
	}

	paths := store.NewJobStoragePaths(p.JobID)
	questionsBlob, err := json.Marshal(parsed.Questions)
	if err != nil {
		return nil, err
	}
	questionsPath := paths.IntakeQuestions()
	if err := h.Store.Put(ctx, questionsPath, questionsBlob, "application/json"); err != nil {
		return nil, err
	}

	context := map[string]any{"job_id": p.JobID, "user_id": p.UserID, "title": p.Title, "audience": p.Audience, "out": p.Out, "doc_kind": p.DocKind}
	contextBlob, _ := json.Marshal(context)
	if err := h.Store.Put(ctx, paths.IntakeContext(), contextBlob, "application/json"); err != nil {
		return nil, err
	}

	samples := map[string]string{}
	for _, q := range parsed.Questions {
		samples[q.ID] = q.Sample
	}
	samplesBlob, _ := json.Marshal(samples)
	if err := h.Store.Put(ctx, paths.IntakeSampleAnswers(), samplesBlob, "application/json"); err != nil {
		return nil, err
	}

	if err := h.PublishStageEvent(ctx, "INTAKE", "READY", p,
		WithArtifact(questionsPath),
		WithMessage("Upload your answers and invoke resume to continue"),
	); err != nil {
		return nil, err
	}
	return nil, nil
}

// IntakeResume implements the intake_resume processor (spec.md §4.7.2):
// rehydrates title/audience/out from the context snapshot plan_intake
// wrote, then forwards into the plan queue.
type IntakeResume struct {
	*Deps
}

func (h *IntakeResume) Queue() string { return h.Cfg.QueueNames.IntakeResume }

func (h *IntakeResume) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	if _, err := h.Hydrate(ctx, &p); err != nil {
		return nil, err
	}

	if p.Title == "" || p.Audience == "" || p.Out == "" {
		paths := store.NewJobStoragePaths(p.JobID)
		blob, err := h.Store.Get(ctx, paths.IntakeContext())
		if err == nil {
			var snapshot struct {
				Title    string       `json:"title"`
				Audience string       `json:"audience"`
				Out      string       `json:"out"`
				DocKind  plan.DocKind `json:"doc_kind"`
			}
			if jerr := json.Unmarshal(blob, &snapshot); jerr == nil {
				if p.Title == "" {
					p.Title = snapshot.Title
				}
				if p.Audience == "" {
					p.Audience = snapshot.Audience
				}
				if p.Out == "" {
					p.Out = snapshot.Out
				}
				if p.DocKind == "" {
					p.DocKind = snapshot.DocKind
				}
			}
		}
	}
	if p.Out == "" {
		p.Out = store.NewJobStoragePaths(p.JobID).DraftMarkdown()
	}

	if err := h.PublishStageEvent(ctx, "INTAKE", "RESUMED", p); err != nil {
		return nil, err
	}
	return map[string][]model.Payload{h.Cfg.QueueNames.Plan: {p}}, nil
}

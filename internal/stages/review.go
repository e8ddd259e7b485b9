package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/review"
	"github.com/azure-way/aidocwriter/internal/store"
)

// Review implements all four review_* processors (spec.md §4.7.5): the
// behavior is identical across agents modulo which ReviewAgentProgress
// slot, artifact filename, and successor queue apply, so one struct
// parametrized by Agent replaces four near-duplicate handlers. IsSummary
// additionally makes the handler publish REVIEW_DONE on completion.
type Review struct {
	*Deps
	Agent     model.ReviewAgent
	IsSummary bool
}

func (h *Review) Queue() string {
	switch h.Agent {
	case model.AgentGeneral:
		return h.Cfg.QueueNames.ReviewGeneral
	case model.AgentStyle:
		return h.Cfg.QueueNames.ReviewStyle
	case model.AgentCohesion:
		return h.Cfg.QueueNames.ReviewCohesion
	default:
		return h.Cfg.QueueNames.ReviewSummary
	}
}

func (h *Review) nextQueueName() string {
	switch h.Agent {
	case model.AgentGeneral:
		return h.Cfg.QueueNames.ReviewStyle
	case model.AgentStyle:
		return h.Cfg.QueueNames.ReviewCohesion
	case model.AgentCohesion:
		return h.Cfg.QueueNames.ReviewSummary
	default:
		return h.Cfg.QueueNames.Verify
	}
}

func (h *Review) artifactPath(paths store.JobStoragePaths, cycleIdx int) string {
	switch h.Agent {
	case model.AgentGeneral:
		return paths.ReviewJSON(cycleIdx)
	case model.AgentStyle:
		return paths.StyleJSON(cycleIdx)
	case model.AgentCohesion:
		return paths.CohesionJSON(cycleIdx)
	default:
		return paths.ExecSummaryJSON(cycleIdx)
	}
}

func (h *Review) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	state, err := h.Hydrate(ctx, &p)
	if err != nil {
		return nil, err
	}

	// spec.md §4.7.5 / §7 "cycle exhaustion": review_general short-circuits
	// to diagram_prep once every requested cycle has already completed.
	if h.Agent == model.AgentGeneral && state.Done() {
		return map[string][]model.Payload{h.Cfg.QueueNames.DiagramPrep: {p}}, nil
	}

	paths := store.NewJobStoragePaths(p.JobID)
	cycleIdx := state.Completed

	progress, err := h.loadProgress(ctx, paths, cycleIdx)
	if err != nil {
		return nil, err
	}
	agentProgress := progress.Get(h.Agent)

	if agentProgress.Done {
		p.ReviewProgress = progress
		return map[string][]model.Payload{h.nextQueueName(): {p}}, nil
	}

	if p.Plan == nil {
		return nil, fmt.Errorf("review: payload has no plan")
	}
	docBlob, err := h.Store.Get(ctx, paths.DraftMarkdown())
	if err != nil {
		return nil, err
	}
	doc := string(docBlob)

	batch, err := review.NextBatch(p.Plan, p.DependencySummaries, doc, agentProgress.SectionsDone,
		h.Cfg.ReviewBatchSize, h.Cfg.ReviewMaxPromptTokens)
	if err != nil {
		return nil, err
	}
	if len(batch.SectionIDs) == 0 {
		agentProgress.Done = true
	} else {
		result, err := h.runAgentBatch(ctx, batch.Prompt)
		if err != nil {
			return nil, err
		}
		completed := review.ApplyFindings(agentProgress, batch.SectionIDs, result)
		agentProgress.SectionsDone = review.MergeSectionsDone(agentProgress.SectionsDone, completed)
		if review.AllDone(p.Plan, agentProgress.SectionsDone) {
			agentProgress.Done = true
		}
	}

	if err := h.saveProgress(ctx, paths, cycleIdx, progress); err != nil {
		return nil, err
	}
	p.ReviewProgress = progress

	if !agentProgress.Done {
		if err := h.PublishStageEvent(ctx, "REVIEW", "IN_PROGRESS", p); err != nil {
			return nil, err
		}
		return map[string][]model.Payload{h.Queue(): {p}}, nil
	}

	artifact := h.artifactPath(paths, cycleIdx)
	artifactBlob, err := json.Marshal(agentProgress.Accumulated)
	if err != nil {
		return nil, err
	}
	if err := h.Store.Put(ctx, artifact, artifactBlob, "application/json"); err != nil {
		return nil, err
	}
	switch h.Agent {
	case model.AgentGeneral:
		p.ReviewJSON = string(artifactBlob)
	case model.AgentStyle:
		p.StyleJSON = string(artifactBlob)
	case model.AgentCohesion:
		p.CohesionJSON = string(artifactBlob)
	default:
		p.ExecSummaryJSON = string(artifactBlob)
	}

	if h.IsSummary {
		if err := h.PublishStageEvent(ctx, "REVIEW", "DONE", p, WithArtifact(artifact)); err != nil {
			return nil, err
		}
		return map[string][]model.Payload{h.Cfg.QueueNames.Verify: {p}}, nil
	}
	return map[string][]model.Payload{h.nextQueueName(): {p}}, nil
}

func (h *Review) runAgentBatch(ctx context.Context, prompt string) (review.FindingsResult, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sections": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		},
		"required": []string{"sections"},
	}
	system := reviewSystemPrompt(h.Agent)
	result, err := h.Agents.GenerateJSON(ctx, system, prompt, "review_batch_"+string(h.Agent), schema)
	if err != nil {
		return review.FindingsResult{}, err
	}
	var findings review.FindingsResult
	if err := decodeResult(result, &findings); err != nil {
		return review.FindingsResult{}, err
	}
	return findings, nil
}

func reviewSystemPrompt(agent model.ReviewAgent) string {
	switch agent {
	case model.AgentGeneral:
		return "You review document sections for factual and structural issues."
	case model.AgentStyle:
		return "You review document sections for style and tone consistency."
	case model.AgentCohesion:
		return "You review document sections for cross-section cohesion."
	default:
		return "You summarize document sections for an executive summary."
	}
}

func (h *Review) loadProgress(ctx context.Context, paths store.JobStoragePaths, cycleIdx int) (*model.ReviewProgress, error) {
	blob, err := h.Store.Get(ctx, paths.ReviewProgressJSON(cycleIdx))
	if err != nil {
		return &model.ReviewProgress{}, nil
	}
	var progress model.ReviewProgress
	if err := json.Unmarshal(blob, &progress); err != nil {
		return &model.ReviewProgress{}, nil
	}
	return &progress, nil
}

func (h *Review) saveProgress(ctx context.Context, paths store.JobStoragePaths, cycleIdx int, progress *model.ReviewProgress) error {
	blob, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return h.Store.Put(ctx, paths.ReviewProgressJSON(cycleIdx), blob, "application/json")
}

package stages

import (
	"context"
	"encoding/json"

	"github.com/azure-way/aidocwriter/internal/diagram"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/store"
)

// DiagramPrep implements the diagram_prep processor (spec.md §4.11 step
// 1-4): extracts PlantUML blocks, assigns and sanitizes ids, writes
// sources, and hands off to diagram_render (or straight to finalize_ready
// when there are none).
type DiagramPrep struct {
	*Deps
}

func (h *DiagramPrep) Queue() string { return h.Cfg.QueueNames.DiagramPrep }

func (h *DiagramPrep) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	if _, err := h.Hydrate(ctx, &p); err != nil {
		return nil, err
	}

	paths := store.NewJobStoragePaths(p.JobID)
	docBlob, err := h.Store.Get(ctx, paths.DraftMarkdown())
	if err != nil {
		return nil, err
	}
	doc := string(docBlob)

	blocks := diagram.ExtractBlocks(doc)
	if len(blocks) == 0 {
		p.DiagramResults = []model.DiagramResult{}
		if err := h.PublishStageEvent(ctx, "DIAGRAM", "PREP_DONE", p); err != nil {
			return nil, err
		}
		return map[string][]model.Payload{h.Cfg.QueueNames.FinalizeReady: {p}}, nil
	}

	used := map[string]bool{}
	codeBlocks := map[string]string{}
	var requests []diagram.Request

	for i, block := range blocks {
		id := diagram.AssignID(block.RawID, p.Plan, used, i+1)
		used[id] = true

		sanitized := diagram.Sanitize(block.Body)
		if err := diagram.Validate(sanitized); err != nil {
			if pubErr := h.PublishStageEvent(ctx, "DIAGRAM", "FAILED", p, WithMessage(err.Error())); pubErr != nil {
				return nil, pubErr
			}
			return nil, nil
		}

		sourcePath := paths.DiagramSource(id)
		if err := h.Store.Put(ctx, sourcePath, []byte(sanitized), "text/plain; charset=utf-8"); err != nil {
			return nil, err
		}

		req := diagram.Request{
			DiagramID:  id,
			Body:       sanitized,
			SourcePath: sourcePath,
			Format:     "png",
			BlobPath:   paths.DiagramRendered(id, "png"),
			AltText:    id,
			CodeBlock:  block.Body,
		}
		requests = append(requests, req)
		codeBlocks[id] = block.Body
	}

	requestsBlob, err := json.Marshal(requests)
	if err != nil {
		return nil, err
	}
	if err := h.Store.Put(ctx, paths.DiagramRequestsJSON(), requestsBlob, "application/json"); err != nil {
		return nil, err
	}

	p.DiagramCodeBlocks = codeBlocks

	if err := h.PublishStageEvent(ctx, "DIAGRAM", "PREP_DONE", p); err != nil {
		return nil, err
	}
	return map[string][]model.Payload{h.Cfg.QueueNames.DiagramRender: {p}}, nil
}

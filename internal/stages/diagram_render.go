package stages

import (
	"context"
	"encoding/json"

	"github.com/azure-way/aidocwriter/internal/diagram"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/store"
)

// DiagramRender implements the diagram_render processor (spec.md §4.11
// step "diagram_render"): renders every pending diagram request, with up
// to 3 attempts per diagram via diagram.RenderWithRetry, and always
// forwards to finalize_ready even when some diagrams fail.
type DiagramRender struct {
	*Deps
	Renderer diagram.Renderer
}

func (h *DiagramRender) Queue() string { return h.Cfg.QueueNames.DiagramRender }

func (h *DiagramRender) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	if _, err := h.Hydrate(ctx, &p); err != nil {
		return nil, err
	}

	paths := store.NewJobStoragePaths(p.JobID)
	reqBlob, err := h.Store.Get(ctx, paths.DiagramRequestsJSON())
	if err != nil {
		p.DiagramResults = []model.DiagramResult{}
		return map[string][]model.Payload{h.Cfg.QueueNames.FinalizeReady: {p}}, nil
	}
	var requests []diagram.Request
	if err := json.Unmarshal(reqBlob, &requests); err != nil {
		return nil, err
	}

	descriptionByID := map[string]string{}
	if p.Plan != nil {
		for _, spec := range p.Plan.DiagramSpecs {
			descriptionByID[spec.ID] = spec.Description
		}
	}

	var results []model.DiagramResult
	anyFailed := false
	for _, req := range requests {
		out, renderErr := diagram.RenderWithRetry(ctx, h.Renderer, h.Agents, req.Body, req.Format, descriptionByID[req.DiagramID])
		if renderErr != nil {
			anyFailed = true
			results = append(results, model.DiagramResult{
				DiagramID: req.DiagramID,
				CodeBlock: req.CodeBlock,
				Format:    req.Format,
				AltText:   req.AltText,
				Error:     renderErr.Error(),
			})
			continue
		}
		contentType := store.ContentTypeForKey(req.BlobPath)
		if err := h.Store.Put(ctx, req.BlobPath, out, contentType); err != nil {
			return nil, err
		}
		results = append(results, model.DiagramResult{
			DiagramID:    req.DiagramID,
			BlobPath:     req.BlobPath,
			RelativePath: req.BlobPath,
			CodeBlock:    req.CodeBlock,
			Format:       req.Format,
			AltText:      req.AltText,
		})
	}
	p.DiagramResults = results

	event := "DONE"
	if anyFailed {
		event = "PARTIAL"
	}
	if err := h.PublishStageEvent(ctx, "DIAGRAM", event, p); err != nil {
		return nil, err
	}
	if err := h.PublishStageEvent(ctx, "FINALIZE", "QUEUED", p); err != nil {
		return nil, err
	}
	return map[string][]model.Payload{h.Cfg.QueueNames.FinalizeReady: {p}}, nil
}

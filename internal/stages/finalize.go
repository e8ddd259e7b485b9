package stages

import (
	"context"

	"github.com/azure-way/aidocwriter/internal/finalize"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/store"
)

// Finalize implements the finalize_ready processor (spec.md §4.7.10):
// diagram substitution, heading numbering, TOC insertion, and writing the
// final document. PDF/DOCX export is an external collaborator spec.md §1
// scopes out of the core; this stage only ever writes final.md.
type Finalize struct {
	*Deps
}

func (h *Finalize) Queue() string { return h.Cfg.QueueNames.FinalizeReady }

func (h *Finalize) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	if _, err := h.Hydrate(ctx, &p); err != nil {
		return nil, err
	}

	paths := store.NewJobStoragePaths(p.JobID)
	docBlob, err := h.Store.Get(ctx, paths.DraftMarkdown())
	if err != nil {
		return nil, err
	}

	final := finalize.Assemble(string(docBlob), p.DiagramResults)

	finalPath := paths.FinalDocument("final.md")
	if err := h.Store.Put(ctx, finalPath, []byte(final), "text/markdown; charset=utf-8"); err != nil {
		return nil, err
	}

	if err := h.PublishStageEvent(ctx, "FINALIZE", "DONE", p, WithArtifact(finalPath)); err != nil {
		return nil, err
	}
	return nil, nil
}

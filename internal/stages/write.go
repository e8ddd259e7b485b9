package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/azure-way/aidocwriter/internal/docgraph"
	"github.com/azure-way/aidocwriter/internal/draft"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/plan"
	"github.com/azure-way/aidocwriter/internal/store"
)

// Write implements the write processor (spec.md §4.7.4): processes the
// next batch of topologically-ready sections not yet written, summarizes
// each into a dependency summary for its dependents, and either
// re-enqueues itself or hands off to review_general once every section is
// written.
type Write struct {
	*Deps
}

func (h *Write) Queue() string { return h.Cfg.QueueNames.Write }

func (h *Write) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	if _, err := h.Hydrate(ctx, &p); err != nil {
		return nil, err
	}
	if p.Plan == nil {
		return nil, fmt.Errorf("write: payload has no plan")
	}

	order, err := docgraph.TopoSort(p.Plan)
	if err != nil {
		return nil, err
	}

	paths := store.NewJobStoragePaths(p.JobID)
	existing, _ := h.Store.Get(ctx, paths.DraftMarkdown())
	doc := string(existing)
	titlePage, hasTitlePage := draft.TitlePage(doc)
	if !hasTitlePage {
		titlePage = buildTitlePage(p.Plan.Title, p.Plan.Audience)
	}

	written := map[string]bool{}
	for _, id := range p.WrittenSections {
		written[id] = true
	}
	if p.DependencySummaries == nil {
		p.DependencySummaries = map[string]string{}
	}

	var pending []string
	for _, id := range order {
		if !written[id] {
			pending = append(pending, id)
		}
	}

	batchSize := h.Cfg.WriteBatchSize
	if batchSize > len(pending) {
		batchSize = len(pending)
	}
	batch := pending[:batchSize]

	sectionByID := p.Plan.SectionByID()
	body := stripTitlePage(doc)

	for _, sid := range batch {
		section := sectionByID[sid]
		var depParts []string
		for _, dep := range section.Dependencies {
			if summary, ok := p.DependencySummaries[dep]; ok && summary != "" {
				depParts = append(depParts, summary)
			}
		}
		depContext := strings.Join(depParts, "\n")

		written_, err := h.writeSection(ctx, section, depContext, "")
		if err != nil {
			return nil, err
		}
		body = draft.ReplaceSection(body, sid, draft.WrapSection(sid, written_))

		summary, err := h.Agents.GenerateText(ctx,
			"You summarize document sections into 5-10 bullet key facts for downstream context.",
			written_)
		if err != nil {
			return nil, err
		}
		p.DependencySummaries[sid] = summary
		p.WrittenSections = append(p.WrittenSections, sid)
		written[sid] = true
	}

	finalDoc := draft.BuildDocument(titlePage, body)
	if err := h.Store.Put(ctx, paths.DraftMarkdown(), []byte(finalDoc), "text/markdown; charset=utf-8"); err != nil {
		return nil, err
	}
	if err := h.Store.Put(ctx, p.Out, []byte(finalDoc), "text/markdown; charset=utf-8"); err != nil {
		return nil, err
	}

	if len(p.WrittenSections) < len(p.Plan.Outline) {
		if err := h.PublishStageEvent(ctx, "WRITE", "IN_PROGRESS", p, WithArtifact(paths.DraftMarkdown())); err != nil {
			return nil, err
		}
		return map[string][]model.Payload{h.Cfg.QueueNames.Write: {p}}, nil
	}

	if err := h.PublishStageEvent(ctx, "WRITE", "DONE", p, WithArtifact(paths.DraftMarkdown())); err != nil {
		return nil, err
	}
	return map[string][]model.Payload{h.Cfg.QueueNames.ReviewGeneral: {p}}, nil
}

// writeSection materializes the writer agent's output, bounded by
// max_section_tokens the way spec.md §9's "agent iterator" note describes:
// the agent itself is opaque, but the caller enforces a buffer bound on
// whatever it streams back.
func (h *Write) writeSection(ctx context.Context, section plan.Section, depContext, extraGuidance string) (string, error) {
	system := "You write one section of a long-form document, returning only markdown prose for this section."
	user := fmt.Sprintf("Section: %s\nGoals: %s\nKey points: %s\nDependency context:\n%s",
		section.Title, strings.Join(section.Goals, "; "), strings.Join(section.KeyPoints, "; "), depContext)
	if extraGuidance != "" {
		user += "\n\nAdditional guidance:\n" + extraGuidance
	}
	text, err := h.Agents.GenerateText(ctx, system, user)
	if err != nil {
		return "", err
	}
	if draft.EstimateTokens(text) > h.Cfg.MaxSectionTokens {
		// Truncate rather than reject: the writer agent is opaque and we
		// still owe written_sections forward progress even on overlong output.
		maxBytes := h.Cfg.MaxSectionTokens * 3
		if maxBytes < len(text) {
			text = text[:maxBytes]
		}
	}
	return text, nil
}

func buildTitlePage(title, audience string) string {
	return fmt.Sprintf("# %s\n\nAudience: %s", title, audience)
}

func stripTitlePage(doc string) string {
	_, ok := draft.TitlePage(doc)
	if !ok {
		return doc
	}
	idx := strings.Index(doc, "<!-- TITLE_PAGE_END -->")
	if idx == -1 {
		return doc
	}
	rest := doc[idx+len("<!-- TITLE_PAGE_END -->"):]
	return strings.TrimLeft(rest, "\n")
}

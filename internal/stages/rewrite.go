package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/azure-way/aidocwriter/internal/cycle"
	"github.com/azure-way/aidocwriter/internal/draft"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/store"
)

// Rewrite implements the rewrite processor (spec.md §4.7.7): computes the
// affected section set, processes the next batch of them, and is the one
// stage responsible for advancing the cycle counter.
type Rewrite struct {
	*Deps
}

func (h *Rewrite) Queue() string { return h.Cfg.QueueNames.Rewrite }

func (h *Rewrite) Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error) {
	state, err := h.Hydrate(ctx, &p)
	if err != nil {
		return nil, err
	}

	if !p.RequiresRewrite {
		return h.advance(ctx, p, state)
	}
	if p.Plan == nil {
		return nil, fmt.Errorf("rewrite: payload has no plan")
	}

	paths := store.NewJobStoragePaths(p.JobID)
	cycleIdx := state.Completed

	var contradictionIDs []string
	if blob, err := h.Store.Get(ctx, paths.VerificationJSON(cycleIdx)); err == nil {
		var cs []contradiction
		if json.Unmarshal(blob, &cs) == nil {
			for _, c := range cs {
				contradictionIDs = append(contradictionIDs, c.SectionID)
			}
		}
	}

	styleGuidance := map[string]string{}
	var styleGlobal string
	loadGuidance(ctx, h.Store, paths.StyleJSON(cycleIdx), styleGuidance, &styleGlobal)
	cohesionGuidance := map[string]string{}
	var cohesionGlobal string
	loadGuidance(ctx, h.Store, paths.CohesionJSON(cycleIdx), cohesionGuidance, &cohesionGlobal)

	affected := map[string]bool{}
	for _, id := range contradictionIDs {
		affected[id] = true
	}
	for id := range styleGuidance {
		affected[id] = true
	}
	for id := range cohesionGuidance {
		affected[id] = true
	}
	for _, id := range p.PlaceholderSections {
		affected[id] = true
	}

	if len(affected) == 0 && (strings.TrimSpace(styleGlobal) != "" || strings.TrimSpace(cohesionGlobal) != "") {
		if p.Plan != nil {
			for _, s := range p.Plan.Outline {
				affected[s.ID] = true
			}
		}
	}

	done := map[string]bool{}
	for _, id := range p.RewrittenSections {
		done[id] = true
	}

	var pending []string
	if p.Plan != nil {
		for _, s := range p.Plan.Outline {
			if affected[s.ID] && !done[s.ID] {
				pending = append(pending, s.ID)
			}
		}
	}

	batchSize := h.Cfg.WriteBatchSize
	if batchSize > len(pending) {
		batchSize = len(pending)
	}
	batch := pending[:batchSize]

	docBlob, err := h.Store.Get(ctx, paths.DraftMarkdown())
	if err != nil {
		return nil, err
	}
	doc := string(docBlob)
	sectionByID := p.Plan.SectionByID()

	for _, sid := range batch {
		section := sectionByID[sid]
		var depParts []string
		for _, dep := range section.Dependencies {
			if summary, ok := p.DependencySummaries[dep]; ok && summary != "" {
				depParts = append(depParts, summary)
			}
		}
		depContext := strings.Join(depParts, "\n")

		extraGuidance := strings.TrimSpace(styleGuidance[sid] + " " + cohesionGuidance[sid])
		rewriter := &Write{Deps: h.Deps}
		newText, err := rewriter.writeSection(ctx, section, depContext, extraGuidance)
		if err != nil {
			return nil, err
		}
		doc = draft.ReplaceSection(doc, sid, draft.WrapSection(sid, newText))

		summary, err := h.Agents.GenerateText(ctx,
			"You summarize document sections into 5-10 bullet key facts for downstream context.", newText)
		if err != nil {
			return nil, err
		}
		p.DependencySummaries[sid] = summary
		p.RewrittenSections = append(p.RewrittenSections, sid)
		done[sid] = true
	}

	if err := h.Store.Put(ctx, paths.DraftMarkdown(), []byte(doc), "text/markdown; charset=utf-8"); err != nil {
		return nil, err
	}
	if err := h.Store.Put(ctx, p.Out, []byte(doc), "text/markdown; charset=utf-8"); err != nil {
		return nil, err
	}

	finished := true
	for _, id := range pending {
		if !done[id] {
			finished = false
			break
		}
	}
	if !finished {
		if err := h.PublishStageEvent(ctx, "REWRITE", "IN_PROGRESS", p); err != nil {
			return nil, err
		}
		return map[string][]model.Payload{h.Cfg.QueueNames.Rewrite: {p}}, nil
	}

	return h.advance(ctx, p, state)
}

// advance implements spec.md §4.7.7's completion step: increment the cycle
// counter, clear the per-cycle bookkeeping, and route onward based on
// whether more cycles remain.
func (h *Rewrite) advance(ctx context.Context, p model.Payload, state cycle.State) (map[string][]model.Payload, error) {
	next := state.Advance()
	next.Apply(&p)
	p.RewrittenSections = nil
	p.PlaceholderSections = nil
	p.RequiresRewrite = false

	if err := h.PublishStageEvent(ctx, "REWRITE", "DONE", p); err != nil {
		return nil, err
	}
	if next.Completed < next.Requested {
		return map[string][]model.Payload{h.Cfg.QueueNames.ReviewGeneral: {p}}, nil
	}
	return map[string][]model.Payload{h.Cfg.QueueNames.DiagramPrep: {p}}, nil
}

// loadGuidance reads a style/cohesion artifact into a per-section map of
// "issues suggestions" text plus the artifact's global_guidance field.
func loadGuidance(ctx context.Context, st store.ObjectStore, path string, into map[string]string, global *string) {
	blob, err := st.Get(ctx, path)
	if err != nil {
		return
	}
	var rs reviewSections
	if json.Unmarshal(blob, &rs) != nil {
		return
	}
	*global = rs.GlobalGuidance
	for _, s := range rs.Sections {
		text := strings.TrimSpace(fmt.Sprintf("%s %s", s.Issues, s.Suggestions))
		if text != "" {
			into[s.SectionID] = text
		}
	}
}

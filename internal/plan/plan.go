// Package plan holds the document Plan produced by the planner stage and
// consumed by every stage downstream of it.
package plan

// DocKind selects which intake/plan-merge variant applies. Supplemental to
// spec.md: recovered from original_source/src/docwriter/agents/core_*.py,
// which show the intake and planning stages branching on document kind.
// "generic" preserves spec.md's behavior exactly.
type DocKind string

const (
	DocKindGeneric        DocKind = "generic"
	DocKindCompanyProfile DocKind = "company_profile"
	DocKindRFP            DocKind = "rfp"
)

// Section is one outline entry (spec.md §3 Plan).
type Section struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Goals        []string `json:"goals,omitempty"`
	KeyPoints    []string `json:"key_points,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// DiagramSpec is a plan-declared diagram placeholder; diagram_prep matches
// draft diagram-id comments against these specs, falling back to
// diagram_<N> when no match exists (spec.md §4.11).
type DiagramSpec struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

// Plan is spec.md §3's Plan record.
type Plan struct {
	Title        string            `json:"title"`
	Audience     string            `json:"audience"`
	LengthPages  int               `json:"length_pages"`
	Outline      []Section         `json:"outline"`
	Glossary     map[string]string `json:"glossary,omitempty"`
	GlobalStyle  string            `json:"global_style,omitempty"`
	DiagramSpecs []DiagramSpec     `json:"diagram_specs,omitempty"`
	DocKind      DocKind           `json:"doc_kind,omitempty"`
}

// MinLengthPages is the floor enforced by the plan stage (spec.md §4.7.3).
const MinLengthPages = 60

// ClampLength enforces Plan.LengthPages >= MinLengthPages in place.
func (p *Plan) ClampLength() {
	if p.LengthPages < MinLengthPages {
		p.LengthPages = MinLengthPages
	}
}

// SectionByID indexes the outline for O(1) lookups; callers must not hold
// onto the map across outline mutations.
func (p *Plan) SectionByID() map[string]Section {
	out := make(map[string]Section, len(p.Outline))
	for _, s := range p.Outline {
		out[s.ID] = s
	}
	return out
}

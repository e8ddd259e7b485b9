// Package model defines the job payload that travels on every queue
// message (spec.md §3). Every stage uses the same Payload struct; there is
// no per-stage variant type.
package model

import (
	"encoding/json"

	"github.com/azure-way/aidocwriter/internal/plan"
)

// ReviewAgentProgress is one agent's entry inside ReviewProgress (spec.md
// §4.8).
type ReviewAgentProgress struct {
	SectionsDone []string       `json:"sections_done,omitempty"`
	Done         bool           `json:"done"`
	Accumulated  map[string]any `json:"accumulated,omitempty"`
}

// ReviewProgress is the JSON shape persisted at cycle_<k>/review_progress.json.
type ReviewProgress struct {
	TokensTotal int                            `json:"tokens_total,omitempty"`
	General     ReviewAgentProgress            `json:"general"`
	Style       ReviewAgentProgress            `json:"style"`
	Cohesion    ReviewAgentProgress            `json:"cohesion"`
	Summary     ReviewAgentProgress            `json:"summary"`
}

// Agent names used throughout the review sub-scheduler and status events.
type ReviewAgent string

const (
	AgentGeneral  ReviewAgent = "general"
	AgentStyle    ReviewAgent = "style"
	AgentCohesion ReviewAgent = "cohesion"
	AgentSummary  ReviewAgent = "summary"
)

// Get returns the progress entry for agent by name (never nil). For the
// four known agents it is a pointer into rp; an unknown name gets a fresh
// entry that is not stored in rp.
func (rp *ReviewProgress) Get(agent ReviewAgent) *ReviewAgentProgress {
	switch agent {
	case AgentGeneral:
		return &rp.General
	case AgentStyle:
		return &rp.Style
	case AgentCohesion:
		return &rp.Cohesion
	case AgentSummary:
		return &rp.Summary
	default:
		return &ReviewAgentProgress{}
	}
}

// Payload is the job payload (spec.md §3). All fields but JobID/UserID are
// optional and hydrated lazily; unknown wire fields are preserved via Extra
// so pass-through semantics (spec.md §6 "unknown fields are preserved")
// hold even though this is a typed struct and not a bare map.
type Payload struct {
	JobID string `json:"job_id"`
	UserID string `json:"user_id"`

	Title    string       `json:"title,omitempty"`
	Audience string       `json:"audience,omitempty"`
	Out      string       `json:"out,omitempty"`
	DocKind  plan.DocKind `json:"doc_kind,omitempty"`

	Cycles           *int `json:"cycles,omitempty"`
	ExpectedCycles   *int `json:"expected_cycles,omitempty"`
	CyclesCompleted  *int `json:"cycles_completed,omitempty"`
	CyclesRemaining  *int `json:"cycles_remaining,omitempty"`

	Plan *plan.Plan `json:"plan,omitempty"`

	DependencySummaries map[string]string `json:"dependency_summaries,omitempty"`
	WrittenSections     []string          `json:"written_sections,omitempty"`
	RewrittenSections   []string          `json:"rewritten_sections,omitempty"`

	ReviewProgress *ReviewProgress `json:"review_progress,omitempty"`

	ReviewJSON       string `json:"review_json,omitempty"`
	StyleJSON        string `json:"style_json,omitempty"`
	CohesionJSON     string `json:"cohesion_json,omitempty"`
	ExecSummaryJSON  string `json:"exec_summary_json,omitempty"`
	VerificationJSON string `json:"verification_json,omitempty"`

	PlaceholderSections []string `json:"placeholder_sections,omitempty"`
	RequiresRewrite     bool     `json:"requires_rewrite,omitempty"`

	DiagramResults    []DiagramResult   `json:"diagram_results,omitempty"`
	DiagramCodeBlocks map[string]string `json:"diagram_code_blocks,omitempty"`

	// Extra preserves any field this struct doesn't model explicitly, so a
	// stage that doesn't understand a field still forwards it unmodified.
	Extra map[string]json.RawMessage `json:"-"`
}

// DiagramResult is one entry of diagram_results (spec.md §4.11).
type DiagramResult struct {
	DiagramID    string `json:"diagram_id"`
	BlobPath     string `json:"blob_path,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`
	CodeBlock    string `json:"code_block,omitempty"`
	Format       string `json:"format,omitempty"`
	AltText      string `json:"alt_text,omitempty"`
	Error        string `json:"error,omitempty"`
}

// knownPayloadFields lists every JSON tag handled explicitly by Payload, so
// MarshalJSON/UnmarshalJSON know which keys belong in Extra.
var knownPayloadFields = map[string]bool{
	"job_id": true, "user_id": true, "title": true, "audience": true, "out": true, "doc_kind": true,
	"cycles": true, "expected_cycles": true, "cycles_completed": true, "cycles_remaining": true,
	"plan": true, "dependency_summaries": true, "written_sections": true, "rewritten_sections": true,
	"review_progress": true, "review_json": true, "style_json": true, "cohesion_json": true,
	"exec_summary_json": true, "verification_json": true, "placeholder_sections": true,
	"requires_rewrite": true, "diagram_results": true, "diagram_code_blocks": true,
}

// MarshalJSON emits the known fields plus every preserved Extra field
// flattened back into the top-level object, matching the wire format's
// "superset JSON" contract (spec.md §6).
func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	base, err := json.Marshal(alias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, known := knownPayloadFields[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes known fields into their struct fields and stashes
// everything else in Extra, preserving unknown fields across a stage that
// doesn't understand them (spec.md §6).
func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Payload(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Extra = map[string]json.RawMessage{}
	for k, v := range raw {
		if !knownPayloadFields[k] {
			p.Extra[k] = v
		}
	}
	return nil
}

// IntOr returns *v or def if v is nil.
func IntOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// Package status implements the durable status table (spec.md §4.3) and
// the StatusEvent value type (spec.md §3 "Status event", §9 "Status event
// is a value, not a dictionary").
package status

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is spec.md's StatusEvent. JSON marshaling drops nil/zero-value
// optional fields per §9.
type Event struct {
	JobID   string   `json:"job_id"`
	Stage   string   `json:"stage"`
	TS      float64  `json:"ts"`
	Message string   `json:"message"`

	Artifact string `json:"artifact,omitempty"`
	Cycle    *int   `json:"cycle,omitempty"`

	HasContradictions   bool `json:"has_contradictions,omitempty"`
	StyleIssues         bool `json:"style_issues,omitempty"`
	CohesionIssues      bool `json:"cohesion_issues,omitempty"`
	PlaceholderSections bool `json:"placeholder_sections,omitempty"`

	Details map[string]any `json:"details,omitempty"`

	UserID string `json:"user_id,omitempty"`
}

// Now stamps TS as seconds-since-epoch (floating), matching spec.md's
// Python-derived `time.time()` convention.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Pretty title-cases a SCREAMING_SNAKE_CASE stage name: REVIEW_GENERAL ->
// "Review General" (spec.md §4.5 `pretty(stage)`).
func Pretty(stage string) string {
	parts := strings.Split(strings.ToLower(stage), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// AutoMessage builds the default message for an event whose Message is
// empty: "<pretty(stage)>[ (cycle N)]" (spec.md §4.5 publish_status).
func AutoMessage(stage string, cycle *int) string {
	msg := Pretty(stage)
	if cycle != nil {
		msg = msg + " (cycle " + itoa(*cycle) + ")"
	}
	return msg
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

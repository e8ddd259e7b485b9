// Package diagram implements the PlantUML extraction/sanitization half of
// the diagram pipeline (spec.md §4.11 diagram_prep); the renderer client
// lives in render.go.
package diagram

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/azure-way/aidocwriter/internal/plan"
)

var (
	fencedPlantUMLRe = regexp.MustCompile("(?s)```plantuml\\s*\\n(.*?)```")
	strayUMLRe       = regexp.MustCompile(`(?s)@startuml.*?@enduml`)
	diagramIDRe      = regexp.MustCompile(`(?m)^\s*(?:'|//|#)\s*diagram_id:\s*(\S+)\s*$`)
)

// Block is one extracted diagram, pre-sanitization.
type Block struct {
	RawID string // id comment as found in the source, "" if absent
	Body  string // fenced block content (or stray @startuml..@enduml region)
}

// Request is one sanitized, id-assigned diagram ready to be rendered.
type Request struct {
	DiagramID  string
	Body       string // sanitized PlantUML source
	SourcePath string
	Format     string // "png" | "svg"
	BlobPath   string
	AltText    string
	CodeBlock  string // the original fenced markdown, for finalize_payload
}

// ExtractBlocks finds every fenced ```plantuml``` block, then separately
// every stray @startuml/@enduml region not already covered by a fenced
// block (spec.md §4.11 step 1).
func ExtractBlocks(doc string) []Block {
	var blocks []Block
	fenced := fencedPlantUMLRe.FindAllStringSubmatchIndex(doc, -1)
	covered := make([]bool, len(doc)+1)
	for _, m := range fenced {
		body := doc[m[2]:m[3]]
		blocks = append(blocks, Block{RawID: extractIDComment(body), Body: body})
		for i := m[0]; i < m[1] && i < len(covered); i++ {
			covered[i] = true
		}
	}
	stray := strayUMLRe.FindAllStringIndex(doc, -1)
	for _, m := range stray {
		if covered[m[0]] {
			continue
		}
		body := doc[m[0]:m[1]]
		blocks = append(blocks, Block{RawID: extractIDComment(body), Body: body})
	}
	return blocks
}

func extractIDComment(body string) string {
	m := diagramIDRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

// AssignID picks a stable id for a block: the parsed comment if present,
// else the next unused id from the plan's diagram_specs, else a synthetic
// fallback.
func AssignID(rawID string, p *plan.Plan, used map[string]bool, ordinal int) string {
	if rawID != "" {
		return rawID
	}
	for _, spec := range p.DiagramSpecs {
		if !used[spec.ID] {
			return spec.ID
		}
	}
	return fmt.Sprintf("diagram_%d", ordinal)
}

// Sanitize strips stray markdown fences and id comments, then ensures the
// body starts with exactly one @startuml and ends with exactly one
// @enduml (spec.md §4.11 step 2).
func Sanitize(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "```plantuml" || trimmed == "```" {
			continue
		}
		if diagramIDRe.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	joined := strings.TrimSpace(strings.Join(out, "\n"))

	startIdx := strings.Index(joined, "@startuml")
	endIdx := strings.LastIndex(joined, "@enduml")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return joined
	}
	endIdx += len("@enduml")
	return strings.TrimSpace(joined[startIdx:endIdx])
}

// ValidationError names every problem found with a sanitized diagram body.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "diagram: invalid plantuml: " + strings.Join(e.Issues, "; ")
}

// Validate checks the sanitized body against spec.md §4.11 step 2's
// contract: must start with @startuml, end with @enduml, contain no
// Markdown fences or Mermaid markers, and be non-empty.
func Validate(body string) error {
	var issues []string
	if strings.TrimSpace(body) == "" {
		issues = append(issues, "empty after sanitization")
	}
	if !strings.HasPrefix(body, "@startuml") {
		issues = append(issues, "does not start with @startuml")
	}
	if !strings.HasSuffix(body, "@enduml") {
		issues = append(issues, "does not end with @enduml")
	}
	if strings.Contains(body, "```") {
		issues = append(issues, "contains a markdown fence")
	}
	if strings.Contains(body, "graph TD") || strings.Contains(body, "sequenceDiagram") {
		issues = append(issues, "contains mermaid markers")
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// Slug sanitizes a diagram id for use as a file-name component.
func Slug(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "diagram"
	}
	return b.String()
}

// Package store implements the object store binding (spec.md §4.1a): a
// path-addressed blob store keyed by job id, used for plan/section/review
// artifacts and rendered diagrams.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned by Get/Open when a key has no object.
var ErrNotFound = errors.New("store: object not found")

// ObjectStore is the minimal blob interface every stage processor needs.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Open streams an object rather than buffering it, for large artifacts
	// like rendered diagram images.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
}

// JobStoragePaths centralizes the key layout under a job's prefix
// (spec.md §4.1 "job-scoped path layout"), so every stage computes keys the
// same way instead of hand-building strings.
type JobStoragePaths struct {
	JobID string
}

func NewJobStoragePaths(jobID string) JobStoragePaths {
	return JobStoragePaths{JobID: jobID}
}

func (p JobStoragePaths) base() string {
	return fmt.Sprintf("jobs/%s", sanitizeComponent(p.JobID))
}

func (p JobStoragePaths) PlanJSON() string {
	return p.base() + "/plan.json"
}

func (p JobStoragePaths) IntakeQuestions() string     { return p.base() + "/intake/questions.json" }
func (p JobStoragePaths) IntakeContext() string        { return p.base() + "/intake/context.json" }
func (p JobStoragePaths) IntakeSampleAnswers() string  { return p.base() + "/intake/sample_answers.json" }
func (p JobStoragePaths) IntakeAnswers() string        { return p.base() + "/intake/answers.json" }

func (p JobStoragePaths) DraftMarkdown() string {
	return p.base() + "/draft.md"
}

func (p JobStoragePaths) CycleDir(cycle int) string {
	return fmt.Sprintf("%s/cycle_%d", p.base(), cycle)
}

func (p JobStoragePaths) SectionMarkdown(cycle int, sectionID string) string {
	return fmt.Sprintf("%s/sections/%s.md", p.CycleDir(cycle), sanitizeComponent(sectionID))
}

func (p JobStoragePaths) ReviewProgressJSON(cycle int) string {
	return p.CycleDir(cycle) + "/review_progress.json"
}

func (p JobStoragePaths) ReviewJSON(cycle int) string {
	return p.CycleDir(cycle) + "/review.json"
}

func (p JobStoragePaths) StyleJSON(cycle int) string {
	return p.CycleDir(cycle) + "/style.json"
}

func (p JobStoragePaths) CohesionJSON(cycle int) string {
	return p.CycleDir(cycle) + "/cohesion.json"
}

func (p JobStoragePaths) ExecSummaryJSON(cycle int) string {
	return p.CycleDir(cycle) + "/exec_summary.json"
}

func (p JobStoragePaths) VerificationJSON(cycle int) string {
	return p.CycleDir(cycle) + "/verification.json"
}

func (p JobStoragePaths) MergedMarkdown(cycle int) string {
	return p.CycleDir(cycle) + "/merged.md"
}

func (p JobStoragePaths) DiagramRequestsJSON() string {
	return p.base() + "/diagram_requests.json"
}

func (p JobStoragePaths) DiagramSource(diagramID string) string {
	return fmt.Sprintf("%s/diagrams/%s.puml", p.base(), sanitizeComponent(diagramID))
}

func (p JobStoragePaths) DiagramRendered(diagramID, format string) string {
	return fmt.Sprintf("%s/diagrams/%s.%s", p.base(), sanitizeComponent(diagramID), format)
}

func (p JobStoragePaths) FinalDocument(out string) string {
	if out == "" {
		out = "document.md"
	}
	return p.base() + "/" + sanitizeComponent(out)
}

// sanitizeComponent defends the path-safety invariant (spec.md §8 P6): no
// path-traversal, no leading slash, no embedded separators beyond what the
// caller intends as a literal file name.
func sanitizeComponent(s string) string {
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return s
}

// ListCycleArtifacts lists every artifact under a cycle directory and
// returns its contents keyed by base file name, an operator-tooling
// convenience (spec.md §9 supplemental "cycle repository convenience
// layer") used by cmd/docctl's artifacts subcommand.
func ListCycleArtifacts(ctx context.Context, st ObjectStore, paths JobStoragePaths, cycleIdx int) (map[string]string, error) {
	prefix := paths.CycleDir(cycleIdx)
	keys, err := st.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		blob, err := st.Get(ctx, key)
		if err != nil {
			continue
		}
		name := key
		if idx := strings.LastIndex(key, "/"); idx != -1 {
			name = key[idx+1:]
		}
		out[name] = string(blob)
	}
	return out, nil
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(key)
	switch {
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".md"):
		return "text/markdown; charset=utf-8"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(s, ".puml"), strings.HasSuffix(s, ".txt"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

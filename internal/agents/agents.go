// Package agents defines the opaque LLM-agent boundary every stage
// processor calls through (spec.md §4.9 "agents are opaque"): planner,
// writer, and the four review agents all share this interface, so a stage
// processor never knows or cares which model answered.
//
// Grounded on the teacher's openai.Client (internal/platform/openai/client.go):
// same GenerateJSON/GenerateText/StreamText shape, trimmed to the calls the
// pipeline actually needs and wrapped behind an interface so tests supply a
// FakeClient instead of hitting a real model.
package agents

import "context"

// Client is the model-call boundary. GenerateJSON is used whenever a stage
// needs a structured result (plan, review verdict, diagram list);
// GenerateText is used for section prose and merge passes.
type Client interface {
	GenerateJSON(ctx context.Context, system, user string, schemaName string, schema map[string]any) (map[string]any, error)
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// Agent identifies which role is calling Client, purely for logging and
// status-event annotation; it carries no behavioral difference to Client.
type Agent string

const (
	AgentPlanner  Agent = "planner"
	AgentWriter   Agent = "writer"
	AgentGeneral  Agent = "review_general"
	AgentStyle    Agent = "review_style"
	AgentCohesion Agent = "review_cohesion"
	AgentSummary  Agent = "review_summary"
	AgentVerifier Agent = "verifier"
	AgentRewriter Agent = "rewriter"
)

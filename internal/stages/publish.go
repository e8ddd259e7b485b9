package stages

import (
	"context"
	"strings"

	"github.com/azure-way/aidocwriter/internal/cycle"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/status"
)

// cycleBearingPrefixes is the set of stage name prefixes spec.md §4.5 says
// get a `cycle` field attached: "cycle = cycles_completed + 1".
var cycleBearingPrefixes = []string{"REVIEW", "VERIFY", "REWRITE"}

// PublishStageEvent implements spec.md §4.5 publish_stage_event: builds
// `<stage>_<event>`, attaches cycle for review/verify/rewrite stages, fills
// in an auto message, then publishes to the status topic and records to the
// status table.
func (d *Deps) PublishStageEvent(ctx context.Context, stageName, event string, p model.Payload, opt ...func(*status.Event)) error {
	full := stageName + "_" + event
	ev := status.Event{
		JobID:  p.JobID,
		Stage:  full,
		TS:     status.Now(),
		UserID: p.UserID,
	}
	if bearsCycle(stageName) && p.CyclesCompleted != nil {
		c := *p.CyclesCompleted + 1
		ev.Cycle = &c
	}
	for _, o := range opt {
		o(&ev)
	}
	return d.PublishStatus(ctx, ev)
}

func bearsCycle(stageName string) bool {
	upper := strings.ToUpper(stageName)
	for _, prefix := range cycleBearingPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// PublishStatus implements spec.md §4.5 publish_status: fills a missing
// message with the auto-generated one, then fans out to the topic(s) and
// the durable table.
func (d *Deps) PublishStatus(ctx context.Context, ev status.Event) error {
	if ev.Message == "" {
		ev.Message = status.AutoMessage(ev.Stage, ev.Cycle)
	}
	if err := d.Status.Record(ctx, ev); err != nil {
		return err
	}
	return d.Messages.Publish(ctx, ev)
}

func WithMessage(msg string) func(*status.Event) {
	return func(e *status.Event) { e.Message = msg }
}

func WithArtifact(artifact string) func(*status.Event) {
	return func(e *status.Event) { e.Artifact = artifact }
}

func WithDetails(details map[string]any) func(*status.Event) {
	return func(e *status.Event) { e.Details = details }
}

func WithFlags(hasContradictions, styleIssues, cohesionIssues, placeholderSections bool) func(*status.Event) {
	return func(e *status.Event) {
		e.HasContradictions = hasContradictions
		e.StyleIssues = styleIssues
		e.CohesionIssues = cohesionIssues
		e.PlaceholderSections = placeholderSections
	}
}

// Hydrate runs the cycle hydrator (spec.md §4.4) against this Deps' status
// table, the entry-point call spec.md says every stage processor makes.
func (d *Deps) Hydrate(ctx context.Context, p *model.Payload) (cycle.State, error) {
	return cycle.Hydrate(ctx, p, d.Status)
}

package cycle

import (
	"context"

	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/status"
)

// Hydrate fills in a payload's cycle fields at stage entry (spec.md §4.4
// step 1): it trusts whatever the payload already carries, and only
// consults the status table for fields the payload leaves nil. It walks
// the job's timeline newest-first and takes the first integer it finds for
// each missing field, looking both at the event's own cycle-shaped fields
// and at values nested inside Details / Details["parsed_message"].
func Hydrate(ctx context.Context, p *model.Payload, table status.Table) (State, error) {
	if p.Cycles == nil || p.CyclesCompleted == nil {
		events, err := table.Timeline(ctx, p.JobID)
		if err != nil {
			return State{}, err
		}
		for i := len(events) - 1; i >= 0; i-- {
			ev := events[i]
			if p.Cycles == nil {
				if v, ok := findInt(ev, "cycles", "expected_cycles"); ok {
					p.Cycles = &v
				}
			}
			if p.ExpectedCycles == nil {
				if v, ok := findInt(ev, "expected_cycles", "cycles"); ok {
					p.ExpectedCycles = &v
				}
			}
			if p.CyclesCompleted == nil {
				if v, ok := findInt(ev, "cycles_completed"); ok {
					p.CyclesCompleted = &v
				}
				if v := ev.Cycle; v != nil && p.CyclesCompleted == nil {
					// An event's Cycle is cycles_completed + 1.
					completed := *v - 1
					if completed < 0 {
						completed = 0
					}
					p.CyclesCompleted = &completed
				}
			}
			if p.CyclesRemaining == nil {
				if v, ok := findInt(ev, "cycles_remaining"); ok {
					p.CyclesRemaining = &v
				}
			}
			if p.Cycles != nil && p.CyclesCompleted != nil {
				break
			}
		}
	}

	st := FromPayload(p)
	st.Apply(p)
	return st, nil
}

// findInt looks for the first of keys present either directly in
// ev.Details or inside ev.Details["parsed_message"] (itself a nested
// object), coercing JSON-decoded numeric types to int.
func findInt(ev status.Event, keys ...string) (int, bool) {
	if v, ok := lookupInt(ev.Details, keys...); ok {
		return v, true
	}
	if ev.Details == nil {
		return 0, false
	}
	nested, ok := ev.Details["parsed_message"].(map[string]any)
	if !ok {
		return 0, false
	}
	return lookupInt(nested, keys...)
}

func lookupInt(m map[string]any, keys ...string) (int, bool) {
	if m == nil {
		return 0, false
	}
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}

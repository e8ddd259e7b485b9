// Package cycle implements the CycleState invariant carrier (spec.md §3
// "Cycle state", §4.4 hydrator, §9 "Cycle counter is a first-class value").
package cycle

import "github.com/azure-way/aidocwriter/internal/model"

// State is the immutable triple (requested, completed, remaining). Stage
// processors compute one at entry, never mutate it in place, and attach a
// new State to the outbound payload when cycles advance.
type State struct {
	Requested int
	Completed int
	Remaining int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FromPayload builds a State from a payload's cycle fields, applying
// spec.md §3/§4.4's rules without consulting external storage. Hydrate
// (hydrate.go) should be preferred at stage entry; FromPayload is the pure core
// Hydrate builds on, and is what the unit tests exercise directly.
func FromPayload(p *model.Payload) State {
	requested := model.IntOr(p.Cycles, 0)
	if requested == 0 {
		requested = model.IntOr(p.ExpectedCycles, 1)
	}
	if requested < 1 {
		requested = 1
	}

	var completed int
	switch {
	case p.CyclesCompleted != nil:
		completed = clamp(*p.CyclesCompleted, 0, requested)
	case p.CyclesRemaining != nil:
		remaining := clamp(*p.CyclesRemaining, 0, requested)
		completed = requested - remaining
	default:
		completed = 0
	}

	return State{
		Requested: requested,
		Completed: completed,
		Remaining: requested - completed,
	}
}

// Apply writes the state's four payload fields back (spec.md §4.4 step 3),
// satisfying P2: payload.cycles_remaining == payload.cycles - payload.cycles_completed.
func (s State) Apply(p *model.Payload) {
	cycles := s.Requested
	completed := s.Completed
	remaining := s.Remaining
	p.Cycles = &cycles
	p.ExpectedCycles = &cycles
	p.CyclesCompleted = &completed
	p.CyclesRemaining = &remaining
}

// Done reports whether every requested cycle has completed.
func (s State) Done() bool { return s.Completed >= s.Requested }

// Advance returns a new State with Completed incremented by one, capped at
// Requested (spec.md §4.7.7 rewrite stage).
func (s State) Advance() State {
	completed := s.Completed + 1
	if completed > s.Requested {
		completed = s.Requested
	}
	return State{Requested: s.Requested, Completed: completed, Remaining: s.Requested - completed}
}

package cycle

import (
	"testing"

	"github.com/azure-way/aidocwriter/internal/model"
)

func intp(n int) *int { return &n }

func TestFromPayloadDefaultsToOneRequestedCycle(t *testing.T) {
	p := &model.Payload{}
	st := FromPayload(p)
	if st.Requested != 1 || st.Completed != 0 || st.Remaining != 1 {
		t.Fatalf("got %+v, want {1 0 1}", st)
	}
}

func TestFromPayloadPrefersCyclesOverExpectedCycles(t *testing.T) {
	p := &model.Payload{Cycles: intp(3), ExpectedCycles: intp(5)}
	st := FromPayload(p)
	if st.Requested != 3 {
		t.Fatalf("Requested = %d, want 3", st.Requested)
	}
}

func TestFromPayloadDerivesCompletedFromRemaining(t *testing.T) {
	p := &model.Payload{Cycles: intp(4), CyclesRemaining: intp(1)}
	st := FromPayload(p)
	if st.Completed != 3 || st.Remaining != 1 {
		t.Fatalf("got %+v, want Completed=3 Remaining=1", st)
	}
}

func TestFromPayloadClampsCompletedToRequested(t *testing.T) {
	p := &model.Payload{Cycles: intp(2), CyclesCompleted: intp(99)}
	st := FromPayload(p)
	if st.Completed != 2 || st.Remaining != 0 {
		t.Fatalf("got %+v, want Completed=2 Remaining=0", st)
	}
}

func TestApplyWritesAllFourFields(t *testing.T) {
	st := State{Requested: 3, Completed: 1, Remaining: 2}
	p := &model.Payload{}
	st.Apply(p)

	if model.IntOr(p.Cycles, -1) != 3 || model.IntOr(p.ExpectedCycles, -1) != 3 {
		t.Fatalf("Cycles/ExpectedCycles not both set to Requested: %+v", p)
	}
	if model.IntOr(p.CyclesCompleted, -1) != 1 {
		t.Fatalf("CyclesCompleted = %v, want 1", p.CyclesCompleted)
	}
	if model.IntOr(p.CyclesRemaining, -1) != 2 {
		t.Fatalf("CyclesRemaining = %v, want 2", p.CyclesRemaining)
	}
}

func TestApplySatisfiesRemainingInvariant(t *testing.T) {
	// P2: cycles_remaining == cycles - cycles_completed, for any valid State.
	for _, st := range []State{
		{Requested: 5, Completed: 0, Remaining: 5},
		{Requested: 5, Completed: 5, Remaining: 0},
		{Requested: 5, Completed: 2, Remaining: 3},
	} {
		p := &model.Payload{}
		st.Apply(p)
		got := model.IntOr(p.Cycles, 0) - model.IntOr(p.CyclesCompleted, 0)
		if got != model.IntOr(p.CyclesRemaining, -1) {
			t.Errorf("state %+v: cycles-completed=%d != cycles_remaining=%d", st, got, model.IntOr(p.CyclesRemaining, -1))
		}
	}
}

func TestDone(t *testing.T) {
	if (State{Requested: 3, Completed: 2}).Done() {
		t.Error("expected not done at 2/3")
	}
	if !(State{Requested: 3, Completed: 3}).Done() {
		t.Error("expected done at 3/3")
	}
	if !(State{Requested: 3, Completed: 4}).Done() {
		t.Error("expected done when completed exceeds requested")
	}
}

func TestAdvanceCapsAtRequested(t *testing.T) {
	st := State{Requested: 2, Completed: 2, Remaining: 0}
	next := st.Advance()
	if next.Completed != 2 || next.Remaining != 0 {
		t.Fatalf("Advance() at cap = %+v, want unchanged at 2/0", next)
	}

	st = State{Requested: 2, Completed: 0, Remaining: 2}
	next = st.Advance()
	if next.Completed != 1 || next.Remaining != 1 {
		t.Fatalf("Advance() = %+v, want Completed=1 Remaining=1", next)
	}
}

package status

import (
	"context"
	"sort"
	"sync"
)

// MemTable is an in-process Table used by the status, cycle hydrator and
// stage-processor tests; it holds the exact same "latest + history"
// shape the durable adapters persist.
type MemTable struct {
	mu      sync.Mutex
	latest  map[string]Event
	history map[string][]Event
	byUser  map[string]map[string]DocIndexEntry // userID -> jobID -> entry
}

func NewMemTable() *MemTable {
	return &MemTable{
		latest:  map[string]Event{},
		history: map[string][]Event{},
		byUser:  map[string]map[string]DocIndexEntry{},
	}
}

func (t *MemTable) Record(_ context.Context, ev Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[ev.JobID] = ev
	t.history[ev.JobID] = append(t.history[ev.JobID], ev)
	if ev.UserID != "" {
		if t.byUser[ev.UserID] == nil {
			t.byUser[ev.UserID] = map[string]DocIndexEntry{}
		}
		cyclesRequested, cyclesCompleted := 0, 0
		if ev.Details != nil {
			if v, ok := ev.Details["cycles_requested"].(int); ok {
				cyclesRequested = v
			}
			if v, ok := ev.Details["cycles_completed"].(int); ok {
				cyclesCompleted = v
			}
		}
		t.byUser[ev.UserID][ev.JobID] = DocIndexEntry{
			JobID:           ev.JobID,
			Stage:           ev.Stage,
			Message:         ev.Message,
			Artifact:        ev.Artifact,
			Updated:         ev.TS,
			CyclesRequested: cyclesRequested,
			CyclesCompleted: cyclesCompleted,
			HasError:        ev.HasContradictions,
		}
	}
	return nil
}

func (t *MemTable) Latest(_ context.Context, jobID string) (*Event, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev, ok := t.latest[jobID]
	if !ok {
		return nil, false, nil
	}
	cp := ev
	return &cp, true, nil
}

func (t *MemTable) Timeline(_ context.Context, jobID string) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows := append([]Event(nil), t.history[jobID]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TS < rows[j].TS })
	return rows, nil
}

func (t *MemTable) ListForUser(_ context.Context, userID string) ([]DocIndexEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DocIndexEntry, 0, len(t.byUser[userID]))
	for _, e := range t.byUser[userID] {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Updated > out[j].Updated })
	return out, nil
}

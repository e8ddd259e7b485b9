// Package stages holds the stage-processor dispatch table (spec.md §4.7a):
// one Handler per named queue, looked up by the worker harness exactly the
// way the teacher's runtime.Registry maps job_type to a pipeline handler.
package stages

import (
	"context"
	"fmt"
	"sync"

	"github.com/azure-way/aidocwriter/internal/model"
)

// Handler is the contract every stage processor implements. Run receives
// the decoded payload for one queue message and returns the payload(s) that
// should be enqueued next, keyed by destination queue name; a stage that
// terminates the pipeline (or defers to a sub-scheduler that enqueues on
// its own) returns an empty map.
type Handler interface {
	Queue() string
	Run(ctx context.Context, p model.Payload) (map[string][]model.Payload, error)
}

// Registry is a concurrency-safe queue-name -> Handler map, registered once
// at process startup and looked up from every worker goroutine.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("stages: nil handler")
	}
	q := h.Queue()
	if q == "" {
		return fmt.Errorf("stages: handler Queue() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[q]; exists {
		return fmt.Errorf("stages: handler already registered for queue=%s", q)
	}
	r.handlers[q] = h
	return nil
}

func (r *Registry) Get(queue string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[queue]
	return h, ok
}

// Queues returns every registered queue name, for the worker harness to
// spawn one poll loop per queue.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for q := range r.handlers {
		out = append(out, q)
	}
	return out
}

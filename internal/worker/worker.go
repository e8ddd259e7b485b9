// Package worker implements the worker harness binding (spec.md §4.6a):
// one poll loop per named queue, claiming messages with a visibility
// timeout, dispatching to the stages.Registry, and bounding in-flight
// handler concurrency with a weighted semaphore.
//
// Grounded on the teacher's Worker (internal/jobs/worker/worker.go): same
// tick-claim-dispatch-heartbeat-panic-recover shape, generalized from one
// poll loop over a single job_run table to N poll loops, one per queue
// name, each claiming from queue.Broker instead of a fixed job_type column.
package worker

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/azure-way/aidocwriter/internal/logger"
	"github.com/azure-way/aidocwriter/internal/model"
	"github.com/azure-way/aidocwriter/internal/queue"
	"github.com/azure-way/aidocwriter/internal/stages"
)

// Pool runs one poll loop per registered queue and dispatches claimed
// messages to the matching stages.Handler.
type Pool struct {
	log      *logger.Logger
	broker   queue.Broker
	registry *stages.Registry
	sem      *semaphore.Weighted

	pollInterval       time.Duration
	claimBatch         int
	visibilityTimeout  time.Duration
	maxAttempts        int
	retryDelay         time.Duration
	heartbeatInterval  time.Duration
}

type Option func(*Pool)

func WithPollInterval(d time.Duration) Option      { return func(p *Pool) { p.pollInterval = d } }
func WithClaimBatch(n int) Option                  { return func(p *Pool) { p.claimBatch = n } }
func WithVisibilityTimeout(d time.Duration) Option { return func(p *Pool) { p.visibilityTimeout = d } }
func WithMaxAttempts(n int) Option                 { return func(p *Pool) { p.maxAttempts = n } }
func WithRetryDelay(d time.Duration) Option        { return func(p *Pool) { p.retryDelay = d } }
func WithHeartbeatInterval(d time.Duration) Option { return func(p *Pool) { p.heartbeatInterval = d } }

// NewPool wires a bounded worker pool. handlerPoolSize caps the number of
// handler invocations running concurrently across every queue; cmd/worker
// passes config.Config.HandlerPoolSize (env HANDLER_POOL_SIZE).
func NewPool(log *logger.Logger, broker queue.Broker, registry *stages.Registry, handlerPoolSize int, opts ...Option) *Pool {
	if handlerPoolSize < 1 {
		handlerPoolSize = 1
	}
	p := &Pool{
		log:               log.With("component", "WorkerPool"),
		broker:            broker,
		registry:          registry,
		sem:               semaphore.NewWeighted(int64(handlerPoolSize)),
		pollInterval:      1 * time.Second,
		claimBatch:        4,
		visibilityTimeout: 15 * time.Minute,
		maxAttempts:       5,
		retryDelay:        30 * time.Second,
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches one poll goroutine per registered queue; it returns
// immediately and stops every goroutine when ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	for _, q := range p.registry.Queues() {
		h, _ := p.registry.Get(q)
		go p.pollLoop(ctx, h)
	}
}

func (p *Pool) pollLoop(ctx context.Context, h stages.Handler) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := p.broker.Claim(ctx, h.Queue(), p.claimBatch, p.visibilityTimeout)
			if err != nil {
				p.log.Warn("claim failed", "queue", h.Queue(), "error", err)
				continue
			}
			for _, m := range msgs {
				msg := m
				if err := p.sem.Acquire(ctx, 1); err != nil {
					return
				}
				go func() {
					defer p.sem.Release(1)
					p.handle(ctx, h, msg)
				}()
			}
		}
	}
}

func (p *Pool) handle(ctx context.Context, h stages.Handler, msg queue.Message) {
	stopHB := p.startHeartbeat(ctx, msg.ID)
	defer stopHB()

	outcome := p.runHandler(ctx, h, msg)
	if outcome.err != nil {
		p.log.Error("handler failed", "queue", h.Queue(), "message_id", msg.ID, "attempt", msg.Attempts, "error", outcome.err)
		if nackErr := p.broker.Nack(ctx, msg.ID, outcome.err, p.maxAttempts, p.retryDelay); nackErr != nil {
			p.log.Error("nack failed", "message_id", msg.ID, "error", nackErr)
		}
		return
	}

	for destQueue, payloads := range outcome.next {
		for _, next := range payloads {
			if _, err := p.broker.Enqueue(ctx, destQueue, next); err != nil {
				p.log.Error("enqueue failed", "queue", destQueue, "job_id", next.JobID, "error", err)
			}
		}
	}
	if err := p.broker.Ack(ctx, msg.ID); err != nil {
		p.log.Error("ack failed", "message_id", msg.ID, "error", err)
	}
}

type handlerOutcome struct {
	next map[string][]model.Payload
	err  error
}

// runHandler recovers a handler panic into a failure, a safety net for
// stage processors that are supposed to return errors but might not.
func (p *Pool) runHandler(ctx context.Context, h stages.Handler, msg queue.Message) (outcome handlerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("handler panic", "queue", h.Queue(), "message_id", msg.ID, "panic", r)
			outcome = handlerOutcome{err: panicError{val: r}}
		}
	}()
	next, err := h.Run(ctx, msg.Payload)
	return handlerOutcome{next: next, err: err}
}

func (p *Pool) startHeartbeat(ctx context.Context, messageID string) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(p.heartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = p.broker.Heartbeat(ctx, messageID)
			}
		}
	}()
	return func() { close(done) }
}

type panicError struct{ val any }

func (e panicError) Error() string { return "worker: handler panic" }

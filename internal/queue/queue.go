// Package queue implements the named-queue broker binding (spec.md §4.2a):
// at-least-once delivery with visibility-timeout locks and bounded retry,
// generalized from the teacher's single job_run table (keyed by job_type)
// to many independently-pollable queues keyed by (queue_name, status).
package queue

import (
	"context"
	"time"

	"github.com/azure-way/aidocwriter/internal/model"
)

// Message is one enqueued unit of work: a queue name plus the job payload
// it carries (spec.md §3).
type Message struct {
	ID       string
	Queue    string
	Payload  model.Payload
	Attempts int
}

// Broker is the at-least-once queue contract every stage processor and the
// worker harness depend on. Claim must honor SELECT ... FOR UPDATE SKIP
// LOCKED semantics (or an equivalent) so concurrent workers never double
// -claim the same message (spec.md §8 P9 "at-least-once, never silently
// dropped").
type Broker interface {
	Enqueue(ctx context.Context, queue string, p model.Payload) (string, error)
	// Claim locks up to n visible messages on queue, marking them running
	// with a heartbeat deadline of visibilityTimeout. Returns fewer than n
	// if the queue is short.
	Claim(ctx context.Context, queue string, n int, visibilityTimeout time.Duration) ([]Message, error)
	Heartbeat(ctx context.Context, messageID string) error
	Ack(ctx context.Context, messageID string) error
	// Nack returns a message to the queue for retry, recording err. If
	// attempts has reached maxAttempts the message is marked dead instead
	// and is never claimed again; it stays under the same queue name.
	Nack(ctx context.Context, messageID string, err error, maxAttempts int, retryDelay time.Duration) error
	// ReclaimStale requeues messages whose heartbeat has gone silent past
	// staleAfter, for the (rare) case a worker died mid-handler.
	ReclaimStale(ctx context.Context, queue string, staleAfter time.Duration) (int, error)
}

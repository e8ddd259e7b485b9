package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azure-way/aidocwriter/internal/model"
)

type memMessage struct {
	msg         Message
	status      string
	heartbeatAt time.Time
}

// MemBroker is an in-process Broker used by stage-processor and worker
// harness tests; it keeps PGBroker's queued/running/failed/dead states
// without a database. Unlike PGBroker.Claim, a failed message is claimable
// again at once: there is no retry delay and no DefaultMaxAttempts check.
type MemBroker struct {
	mu    sync.Mutex
	queue map[string][]*memMessage // queue name -> FIFO order
}

func NewMemBroker() *MemBroker {
	return &MemBroker{queue: map[string][]*memMessage{}}
}

func (b *MemBroker) Enqueue(_ context.Context, queue string, p model.Payload) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New().String()
	b.queue[queue] = append(b.queue[queue], &memMessage{
		msg:    Message{ID: id, Queue: queue, Payload: p},
		status: statusQueued,
	})
	return id, nil
}

func (b *MemBroker) Claim(_ context.Context, queue string, n int, visibilityTimeout time.Duration) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	var out []Message
	for _, m := range b.queue[queue] {
		if len(out) >= n {
			break
		}
		eligible := m.status == statusQueued ||
			m.status == statusFailed ||
			(m.status == statusRunning && now.Sub(m.heartbeatAt) > visibilityTimeout)
		if !eligible {
			continue
		}
		m.status = statusRunning
		m.heartbeatAt = now
		m.msg.Attempts++
		out = append(out, m.msg)
	}
	return out, nil
}

func (b *MemBroker) find(messageID string) *memMessage {
	for _, msgs := range b.queue {
		for _, m := range msgs {
			if m.msg.ID == messageID {
				return m
			}
		}
	}
	return nil
}

func (b *MemBroker) Heartbeat(_ context.Context, messageID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m := b.find(messageID); m != nil && m.status == statusRunning {
		m.heartbeatAt = time.Now()
	}
	return nil
}

func (b *MemBroker) Ack(_ context.Context, messageID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for q, msgs := range b.queue {
		for i, m := range msgs {
			if m.msg.ID == messageID {
				b.queue[q] = append(msgs[:i], msgs[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (b *MemBroker) Nack(_ context.Context, messageID string, _ error, maxAttempts int, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.find(messageID)
	if m == nil {
		return nil
	}
	if m.msg.Attempts >= maxAttempts {
		m.status = statusDead
		return nil
	}
	m.status = statusFailed
	return nil
}

func (b *MemBroker) ReclaimStale(_ context.Context, queue string, staleAfter time.Duration) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	n := 0
	for _, m := range b.queue[queue] {
		if m.status == statusRunning && now.Sub(m.heartbeatAt) > staleAfter {
			m.status = statusQueued
			n++
		}
	}
	return n, nil
}

// Package messaging implements the status-topic fan-out facade (spec.md
// §4.5a), grounded on the teacher's Redis SSE bus
// (internal/platform/redis/sse_bus.go) generalized from a single fixed
// channel to the ordered multi-topic fallback spec.md §6 requires: publish
// to each configured topic name in order, stop at the first success, and
// only surface an error if every topic failed.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/azure-way/aidocwriter/internal/logger"
	"github.com/azure-way/aidocwriter/internal/status"
)

// Facade is the status-event publisher every stage processor calls after
// writing to the durable status.Table.
type Facade interface {
	Publish(ctx context.Context, ev status.Event) error
	Close() error
}

// RedisFacade publishes to a priority-ordered list of Redis pub/sub
// channels, stopping at the first one that accepts the publish.
type RedisFacade struct {
	log    *logger.Logger
	rdb    *goredis.Client
	topics []string
}

func NewRedisFacade(log *logger.Logger, addr string, topics []string) (*RedisFacade, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("messaging: at least one status topic is required")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("messaging: redis ping: %w", err)
	}

	return &RedisFacade{log: log.With("component", "RedisFacade"), rdb: rdb, topics: topics}, nil
}

func (f *RedisFacade) Publish(ctx context.Context, ev status.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var lastErr error
	for _, topic := range f.topics {
		if err := f.rdb.Publish(ctx, topic, raw).Err(); err != nil {
			lastErr = err
			f.log.Warn("status topic publish failed, trying next", "topic", topic, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("messaging: all status topics failed, last error: %w", lastErr)
}

func (f *RedisFacade) Close() error {
	return f.rdb.Close()
}

// NopFacade drops every event; cmd/worker falls back to it when the Redis
// facade cannot be created.
type NopFacade struct{}

func (NopFacade) Publish(context.Context, status.Event) error { return nil }
func (NopFacade) Close() error                                 { return nil }

// RecordingFacade buffers events in memory, for tests that assert on what
// would have been published.
type RecordingFacade struct {
	Events []status.Event
}

func (f *RecordingFacade) Publish(_ context.Context, ev status.Event) error {
	f.Events = append(f.Events, ev)
	return nil
}

func (f *RecordingFacade) Close() error { return nil }

// Package redisrecorder persists audit events to Redis lists, one list
// per pipeline, trimmed to a bounded length.
package redisrecorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/conduit/audit"
)

// Recorder writes audit events to Redis.
type Recorder struct {
	client redis.UniversalClient
	prefix string
	maxLen int64
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPrefix overrides the key prefix (default "conduit:audit").
func WithPrefix(prefix string) Option {
	return func(r *Recorder) { r.prefix = prefix }
}

// WithMaxLen bounds each pipeline's event list (default 10000).
// Zero disables trimming.
func WithMaxLen(n int64) Option {
	return func(r *Recorder) { r.maxLen = n }
}

// New creates a Recorder on an existing Redis client.
func New(client redis.UniversalClient, opts ...Option) *Recorder {
	r := &Recorder{
		client: client,
		prefix: "conduit:audit",
		maxLen: 10000,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements audit.Recorder. The event is pushed to the head of
// its pipeline's list so recent events read first.
func (r *Recorder) Record(ctx context.Context, ev audit.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	key := r.key(ev.Pipeline)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	if r.maxLen > 0 {
		pipe.LTrim(ctx, key, 0, r.maxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record audit event for %q: %w", ev.Pipeline, err)
	}
	return nil
}

// Recent returns up to n most recent events for a pipeline.
func (r *Recorder) Recent(ctx context.Context, pipeline string, n int64) ([]audit.Event, error) {
	raws, err := r.client.LRange(ctx, r.key(pipeline), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit events for %q: %w", pipeline, err)
	}

	events := make([]audit.Event, 0, len(raws))
	for _, raw := range raws {
		var ev audit.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r *Recorder) key(pipeline string) string {
	return r.prefix + ":" + pipeline
}

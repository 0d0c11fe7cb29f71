package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultStream is the Redis stream events are appended to.
	DefaultStream = "consensus:events"

	// DefaultDedupTTL bounds how long an idempotency key is remembered.
	DefaultDedupTTL = 24 * time.Hour

	dedupKeyPrefix = "consensus:event:"
)

// appendOnce marks the idempotency key and appends the envelope to the stream
// in one step, so a retried emission can never append twice.
// Returns 1 when appended and 0 when the key was already seen.
//
// KEYS[1] = dedup key
// KEYS[2] = stream
// ARGV[1] = dedup TTL in seconds
// ARGV[2] = event type
// ARGV[3] = idempotency key
// ARGV[4] = envelope JSON.
const appendOnce = `
	local marked = redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1])
	if not marked then
		return 0
	end
	redis.call('XADD', KEYS[2], '*', 'type', ARGV[2], 'idempotency_key', ARGV[3], 'envelope', ARGV[4])
	return 1
`

// ErrEmptyIdempotencyKey is returned for envelopes that cannot be deduplicated.
var ErrEmptyIdempotencyKey = errors.New("envelope has no idempotency key")

// evaler is the part of a Redis client RedisSink needs.
type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisSink appends events to a Redis stream, once per idempotency key.
type RedisSink struct {
	client   evaler
	stream   string
	dedupTTL time.Duration
}

// NewRedisSink returns a sink writing to stream through client. Empty stream
// and non-positive TTL select the defaults.
func NewRedisSink(client *redis.Client, stream string, dedupTTL time.Duration) *RedisSink {
	return newRedisSink(client, stream, dedupTTL)
}

func newRedisSink(client evaler, stream string, dedupTTL time.Duration) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	if dedupTTL <= 0 {
		dedupTTL = DefaultDedupTTL
	}
	return &RedisSink{client: client, stream: stream, dedupTTL: dedupTTL}
}

// Append implements EventSink.
func (s *RedisSink) Append(ctx context.Context, envelope Envelope) error {
	if envelope.IdempotencyKey == "" {
		return ErrEmptyIdempotencyKey
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", envelope.Type, err)
	}

	keys := []string{dedupKeyPrefix + envelope.IdempotencyKey, s.stream}
	ttl := max(int64(s.dedupTTL/time.Second), 1)
	if err := s.client.Eval(ctx, appendOnce, keys, ttl, envelope.Type, envelope.IdempotencyKey, string(raw)).Err(); err != nil {
		return fmt.Errorf("append %s event to %s: %w", envelope.Type, s.stream, err)
	}
	return nil
}

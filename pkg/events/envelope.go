// Package events provides the generic event infrastructure for domain event emission.
// It defines the Envelope type that carries consensus events to downstream
// consumers and the EventSink interface those consumers implement.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Envelope wraps a domain event with routing and deduplication metadata.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing, e.g. "ConsensusEstimated".
	Type string `json:"type"`

	// Source identifies the emitting component, e.g. "estimation-activity".
	Source string `json:"source"`

	// Version is the payload schema version ("1.0.0").
	Version string `json:"version"`

	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is derived deterministically so retries emit the same key.
	IdempotencyKey string `json:"idempotency_key"`

	TenantID   string `json:"tenant_id"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// Payload contains the domain-specific event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// EventSink receives emitted events. Implementations treat a repeated
// idempotency key as a no-op. Errors are reported to the emitter but never
// fail the operation that produced the event.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.Append with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// SlogSink writes each event as one structured log record, once per
// idempotency key.
type SlogSink struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSlogSink returns a sink logging to logger, or slog.Default() when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (s *SlogSink) Append(ctx context.Context, envelope Envelope) error {
	s.mu.Lock()
	if _, dup := s.seen[envelope.IdempotencyKey]; dup {
		s.mu.Unlock()
		return nil
	}
	s.seen[envelope.IdempotencyKey] = struct{}{}
	s.mu.Unlock()

	s.logger.LogAttrs(ctx, slog.LevelInfo, "event",
		slog.String("type", envelope.Type),
		slog.String("source", envelope.Source),
		slog.String("idempotency_key", envelope.IdempotencyKey),
		slog.String("workflow_id", envelope.WorkflowID),
		slog.String("run_id", envelope.RunID),
		slog.String("payload", string(envelope.Payload)))
	return nil
}

// MemorySink keeps events in memory, once per idempotency key. It backs
// in-process projections and tests.
type MemorySink struct {
	mu     sync.RWMutex
	events []Envelope
	seen   map[string]struct{}
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (m *MemorySink) Append(_ context.Context, envelope Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[envelope.IdempotencyKey]; dup {
		return nil
	}
	m.seen[envelope.IdempotencyKey] = struct{}{}
	m.events = append(m.events, envelope)
	return nil
}

// Events returns a copy of the stored events in arrival order.
func (m *MemorySink) Events() []Envelope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Envelope, len(m.events))
	copy(out, m.events)
	return out
}

// EventsByType returns the stored events of one type.
func (m *MemorySink) EventsByType(eventType string) []Envelope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Envelope
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

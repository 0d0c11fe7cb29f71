// Package activity provides common infrastructure for Temporal activity implementations:
// workflow context extraction, logging that works inside and outside an
// activity, heartbeats, and best-effort event emission.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-crowd/pkg/events"
)

// TestTenantID is the tenant reported outside a Temporal activity context.
const TestTenantID = "550e8400-e29b-41d4-a716-446655440000"

// WorkflowContext contains metadata extracted from the Temporal activity context.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	TenantID   string
	ActivityID string
}

// BaseActivities provides common infrastructure for all activity types.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities creates a new BaseActivities instance with the provided event sink.
// A nil sink disables event emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext extracts workflow execution details from ctx. Outside
// an activity (activity.GetInfo panics) it returns fixed test identifiers.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	var wfCtx WorkflowContext

	func() {
		defer func() {
			if r := recover(); r != nil {
				wfCtx.WorkflowID = "consensus-local"
				wfCtx.RunID = "local-run-" + uuid.New().String()[:8]
				wfCtx.TenantID = TestTenantID
				wfCtx.ActivityID = "local-activity"
			}
		}()

		info := activity.GetInfo(ctx)
		wfCtx.WorkflowID = info.WorkflowExecution.ID
		wfCtx.RunID = info.WorkflowExecution.RunID
		wfCtx.ActivityID = info.ActivityID
		wfCtx.TenantID = "default"
	}()

	return wfCtx
}

// EmitEventSafe emits an event with a short retry. Failures are logged and
// never returned: events do not decide the outcome of an activity.
func (b *BaseActivities) EmitEventSafe(
	ctx context.Context,
	envelope events.Envelope,
	description string,
) {
	if b.eventSink == nil {
		return
	}

	const maxAttempts = 2
	const retryDelay = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, fmt.Sprintf("Event emission cancelled: %s", description),
					"event_type", envelope.Type)
				return
			}
		}

		if err := b.eventSink.Append(ctx, envelope); err != nil {
			lastErr = err
			continue
		}

		SafeLog(ctx, fmt.Sprintf("Event emitted: %s", description),
			"event_type", envelope.Type,
			"idempotency_key", envelope.IdempotencyKey)
		return
	}

	SafeLogError(ctx, fmt.Sprintf("Failed to emit %s after %d attempts", description, maxAttempts),
		"event_type", envelope.Type,
		"error", lastErr)
}

// RecordHeartbeat records a heartbeat; ignored outside an activity context.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at INFO through the activity logger, falling back to slog
// outside an activity context.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	if logger, ok := activityLogger(ctx); ok {
		logger.Info(msg, keyvals...)
		return
	}
	slog.InfoContext(ctx, msg, keyvals...)
}

// SafeLogError logs at ERROR through the activity logger, falling back to
// slog outside an activity context.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	if logger, ok := activityLogger(ctx); ok {
		logger.Error(msg, keyvals...)
		return
	}
	slog.ErrorContext(ctx, msg, keyvals...)
}

// activityLogger returns the activity logger if ctx is an activity context.
func activityLogger(ctx context.Context) (logger interface {
	Info(string, ...any)
	Error(string, ...any)
}, ok bool,
) {
	defer func() {
		if recover() != nil {
			logger, ok = nil, false
		}
	}()
	return activity.GetLogger(ctx), true
}

// RecordHeartbeat records activity heartbeat details; ignored outside an activity context.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() {
		if recover() != nil {
			// Not an activity context, ignore
		}
	}()
	activity.RecordHeartbeat(ctx, details...)
}

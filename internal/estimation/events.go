package estimation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ahrav/go-crowd/internal/domain"
	"github.com/ahrav/go-crowd/pkg/activity"
	"github.com/ahrav/go-crowd/pkg/events"
)

// EventEmitter creates and emits ingestion and estimation events.
// Emission is best-effort; failures are logged and never fail an activity.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter creates a new EventEmitter with the provided base activities.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitAnnotationsIngested emits an AnnotationsIngested event for a merged batch.
func (e *EventEmitter) EmitAnnotationsIngested(
	ctx context.Context,
	task string,
	output *domain.IngestAnnotationsOutput,
	wfCtx activity.WorkflowContext,
	clientIdemKey string,
) {
	tenantID, err := parseUUID(wfCtx.TenantID, "tenant")
	if err != nil {
		activity.SafeLogError(ctx, "Failed to parse tenant ID for AnnotationsIngested event",
			"tenant_id", wfCtx.TenantID,
			"error", err)
		return
	}

	payload := domain.AnnotationsIngestedPayload{
		Task:                  task,
		Accepted:              output.Accepted,
		Rejected:              len(output.Rejections),
		NewSubjects:           output.NewSubjects,
		AppendedAnnotations:   output.AppendedAnnotations,
		DuplicateAnnotations:  output.DuplicateAnnotations,
		PopulationSubjects:    output.PopulationSubjects,
		PopulationAnnotations: output.PopulationAnnotations,
	}
	domainEvent, err := domain.NewAnnotationsIngestedEvent(
		tenantID,
		wfCtx.WorkflowID,
		wfCtx.RunID,
		payload,
		clientIdemKey,
	)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to create AnnotationsIngested event",
			"task", task,
			"error", err)
		return
	}

	e.base.EmitEventSafe(ctx, convertDomainEventToEnvelope(domainEvent),
		fmt.Sprintf("AnnotationsIngested[%s]", task))
}

// EmitConsensusEstimated emits a ConsensusEstimated event for a completed round.
func (e *EventEmitter) EmitConsensusEstimated(
	ctx context.Context,
	result *domain.RoundResult,
	wfCtx activity.WorkflowContext,
	clientIdemKey string,
) {
	tenantID, err := parseUUID(wfCtx.TenantID, "tenant")
	if err != nil {
		activity.SafeLogError(ctx, "Failed to parse tenant ID for ConsensusEstimated event",
			"tenant_id", wfCtx.TenantID,
			"error", err)
		return
	}

	domainEvent, err := domain.NewConsensusEstimatedEvent(
		tenantID,
		wfCtx.WorkflowID,
		wfCtx.RunID,
		result,
		clientIdemKey,
	)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to create ConsensusEstimated event",
			"error", err)
		return
	}

	e.base.EmitEventSafe(ctx, convertDomainEventToEnvelope(domainEvent),
		fmt.Sprintf("ConsensusEstimated[%s]", result.RoundID))
}

// parseUUID parses input as a UUID. "default", used outside a tenant-aware
// deployment, maps to a fixed tenant.
func parseUUID(input, context string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(input)
	if err != nil {
		if input == "default" {
			return uuid.MustParse(activity.TestTenantID), nil
		}
		return uuid.Nil, fmt.Errorf("invalid %s UUID '%s': %w", context, input, err)
	}
	return parsed, nil
}

// convertDomainEventToEnvelope maps a domain.EventEnvelope onto the generic events.Envelope.
func convertDomainEventToEnvelope(domainEvent domain.EventEnvelope) events.Envelope {
	return events.Envelope{
		ID:             domainEvent.IdempotencyKey,
		Type:           string(domainEvent.EventType),
		Source:         domainEvent.Producer,
		Version:        fmt.Sprintf("%d.0.0", domainEvent.Version),
		Timestamp:      domainEvent.OccurredAt,
		IdempotencyKey: domainEvent.IdempotencyKey,
		TenantID:       domainEvent.TenantID.String(),
		WorkflowID:     domainEvent.WorkflowID,
		RunID:          domainEvent.RunID,
		Payload:        domainEvent.Payload,
	}
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event emitted by the system.
type EventType string

const (
	// EventTypeAnnotationsIngested is emitted once per merged annotation batch.
	EventTypeAnnotationsIngested EventType = "AnnotationsIngested"

	// EventTypeConsensusEstimated is emitted once per completed estimation round.
	EventTypeConsensusEstimated EventType = "ConsensusEstimated"
)

// EventEnvelope wraps all events with consistent metadata for projection processing.
type EventEnvelope struct {
	// IdempotencyKey ensures events are processed exactly once during retries.
	IdempotencyKey string `json:"idempotency_key" validate:"required"`

	EventType EventType `json:"event_type" validate:"required"`

	// Version enables event schema evolution. Starts at 1.
	Version int `json:"version" validate:"required,min=1"`

	OccurredAt time.Time `json:"occurred_at" validate:"required"`
	TenantID   uuid.UUID `json:"tenant_id" validate:"required"`
	WorkflowID string    `json:"workflow_id" validate:"required"`
	RunID      string    `json:"run_id" validate:"required"`

	// Payload contains the event-specific data as JSON.
	Payload json.RawMessage `json:"payload" validate:"required"`

	// Producer identifies the component that emitted this event.
	Producer string `json:"producer" validate:"required"`
}

// Validate checks if the event envelope meets all requirements.
func (e *EventEnvelope) Validate() error { return validate.Struct(e) }

// AnnotationsIngestedPayload contains the data for AnnotationsIngested events.
type AnnotationsIngestedPayload struct {
	Task                  string `json:"task" validate:"required"`
	Accepted              int    `json:"accepted" validate:"min=0"`
	Rejected              int    `json:"rejected" validate:"min=0"`
	NewSubjects           int    `json:"new_subjects" validate:"min=0"`
	AppendedAnnotations   int    `json:"appended_annotations" validate:"min=0"`
	DuplicateAnnotations  int    `json:"duplicate_annotations" validate:"min=0"`
	PopulationSubjects    int    `json:"population_subjects" validate:"min=0"`
	PopulationAnnotations int    `json:"population_annotations" validate:"min=0"`
}

// Validate checks if the payload meets all requirements.
func (p *AnnotationsIngestedPayload) Validate() error { return validate.Struct(p) }

// ConsensusEstimatedPayload contains the data for ConsensusEstimated events.
type ConsensusEstimatedPayload struct {
	RoundID         string  `json:"round_id" validate:"required"`
	InitMode        bool    `json:"init_mode"`
	ClassifierCount int     `json:"classifier_count" validate:"min=0"`
	SubjectCount    int     `json:"subject_count" validate:"min=0"`
	UnassessedCount int     `json:"unassessed_count" validate:"min=0"`
	MeanRisk        float64 `json:"mean_risk" validate:"min=0"`
	MaxRisk         float64 `json:"max_risk" validate:"min=0"`
}

// Validate checks if the payload meets all requirements.
func (p *ConsensusEstimatedPayload) Validate() error { return validate.Struct(p) }

// NewEventEnvelope creates a new EventEnvelope with required fields populated.
func NewEventEnvelope(
	eventType EventType,
	tenantID uuid.UUID,
	workflowID, runID string,
	payload json.RawMessage,
	producer string,
) EventEnvelope {
	return EventEnvelope{
		EventType:  eventType,
		Version:    1,
		TenantID:   tenantID,
		WorkflowID: workflowID,
		RunID:      runID,
		Payload:    payload,
		Producer:   producer,
		OccurredAt: time.Now(),
	}
}

// GenerateIdempotencyKey creates a deterministic key for event deduplication:
// H(client_idem_key || suffix).
func GenerateIdempotencyKey(clientIdempotencyKey, eventSuffix string) string {
	hasher := sha256.New()
	hasher.Write([]byte(clientIdempotencyKey + eventSuffix))
	return hex.EncodeToString(hasher.Sum(nil))
}

// AnnotationsIngestedIdempotencyKey generates the key H(client_idem_key || ":ingest:1").
func AnnotationsIngestedIdempotencyKey(clientIdempotencyKey string) string {
	return GenerateIdempotencyKey(clientIdempotencyKey, ":ingest:1")
}

// ConsensusEstimatedIdempotencyKey generates the key H(client_idem_key || ":estimate:1").
func ConsensusEstimatedIdempotencyKey(clientIdempotencyKey string) string {
	return GenerateIdempotencyKey(clientIdempotencyKey, ":estimate:1")
}

// NewAnnotationsIngestedEvent creates an AnnotationsIngested event envelope.
func NewAnnotationsIngestedEvent(
	tenantID uuid.UUID,
	workflowID, runID string,
	payload AnnotationsIngestedPayload,
	clientIdempotencyKey string,
) (EventEnvelope, error) {
	if err := payload.Validate(); err != nil {
		return EventEnvelope{}, fmt.Errorf("invalid AnnotationsIngested payload: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("failed to marshal AnnotationsIngested payload: %w", err)
	}
	env := NewEventEnvelope(EventTypeAnnotationsIngested, tenantID, workflowID, runID, raw, "ingest-activity")
	env.IdempotencyKey = AnnotationsIngestedIdempotencyKey(clientIdempotencyKey)
	return env, env.Validate()
}

// NewConsensusEstimatedEvent creates a ConsensusEstimated event envelope from a round result.
func NewConsensusEstimatedEvent(
	tenantID uuid.UUID,
	workflowID, runID string,
	result *RoundResult,
	clientIdempotencyKey string,
) (EventEnvelope, error) {
	if result == nil {
		return EventEnvelope{}, fmt.Errorf("%w: nil round result", ErrInvalidArgument)
	}
	payload := ConsensusEstimatedPayload{
		RoundID:         result.RoundID,
		InitMode:        result.InitMode,
		ClassifierCount: len(result.Classifiers),
		SubjectCount:    len(result.Subjects),
		UnassessedCount: len(result.Unassessed),
		MeanRisk:        result.MeanRisk(),
	}
	for _, s := range result.Subjects {
		payload.MaxRisk = max(payload.MaxRisk, s.Risk)
	}
	if err := payload.Validate(); err != nil {
		return EventEnvelope{}, fmt.Errorf("invalid ConsensusEstimated payload: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("failed to marshal ConsensusEstimated payload: %w", err)
	}
	env := NewEventEnvelope(EventTypeConsensusEstimated, tenantID, workflowID, runID, raw, "estimation-activity")
	env.IdempotencyKey = ConsensusEstimatedIdempotencyKey(clientIdempotencyKey)
	return env, env.Validate()
}

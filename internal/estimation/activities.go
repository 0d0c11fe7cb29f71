// Package estimation implements the Temporal activities that feed annotation
// batches into the shared population and run consensus rounds over it.
package estimation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.temporal.io/sdk/temporal"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-crowd/internal/consensus"
	"github.com/ahrav/go-crowd/internal/domain"
	"github.com/ahrav/go-crowd/internal/ingest"
	"github.com/ahrav/go-crowd/pkg/activity"
)

// heartbeatInterval spaces heartbeats while a large batch is being built.
const heartbeatInterval = 5 * time.Second

// ErrNilPopulation is returned when activities are built without a population.
var ErrNilPopulation = errors.New("population is required")

// Activities handles ingestion and estimation against one population.
type Activities struct {
	activity.BaseActivities
	population *consensus.Population
	events     *EventEmitter
	logger     *slog.Logger
}

// NewActivities creates estimation activities over population. A nil logger
// means slog.Default().
func NewActivities(
	base activity.BaseActivities,
	population *consensus.Population,
	logger *slog.Logger,
) (*Activities, error) {
	if population == nil {
		return nil, ErrNilPopulation
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		BaseActivities: base,
		population:     population,
		events:         NewEventEmitter(base),
		logger:         logger,
	}, nil
}

// Population returns the population the activities operate on.
func (a *Activities) Population() *consensus.Population { return a.population }

// IngestAnnotations maps records into a subject batch and merges it into the
// population. Individually invalid records are reported as rejections; an
// invalid input as a whole fails without retry. Re-delivering the same batch
// is harmless: annotations already known by ID are counted as duplicates.
func (a *Activities) IngestAnnotations(
	ctx context.Context,
	input domain.IngestAnnotationsInput,
) (*domain.IngestAnnotationsOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("IngestAnnotations", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting IngestAnnotations activity",
		"workflow_id", wfCtx.WorkflowID,
		"activity_id", wfCtx.ActivityID,
		"records", len(input.Records),
		"task", input.Task)

	heartbeat := &rate.Sometimes{First: 1, Interval: heartbeatInterval}
	batch, err := ingest.BuildBatch(input.Records, input.Task, input.Mapping, a.population,
		ingest.WithProgress(func(processed int) {
			heartbeat.Do(func() { a.RecordHeartbeat(ctx, "building batch", processed) })
		}))
	if err != nil {
		return nil, nonRetryable("IngestAnnotations", err, "build batch failed")
	}
	a.RecordHeartbeat(ctx, "batch built", batch.Accepted)

	stats, err := a.population.Ingest(batch.Subjects)
	if err != nil {
		return nil, nonRetryable("IngestAnnotations", err, "merge failed")
	}
	subjects, annotations := a.population.Size()

	output := &domain.IngestAnnotationsOutput{
		MergeStats:            stats,
		Accepted:              batch.Accepted,
		Rejections:            batch.Rejections,
		PopulationSubjects:    subjects,
		PopulationAnnotations: annotations,
	}

	a.events.EmitAnnotationsIngested(ctx, input.Task, output, wfCtx, input.ClientIdempotencyKey)

	activity.SafeLog(ctx, "IngestAnnotations completed",
		"accepted", output.Accepted,
		"rejected", len(output.Rejections),
		"new_subjects", stats.NewSubjects,
		"duplicates", stats.DuplicateAnnotations,
		"population_subjects", subjects)

	return output, nil
}

// EstimateRound runs one consensus round over a snapshot of the population
// and publishes the result. The workflow ID doubles as the round ID so a
// retried activity reports the same round.
func (a *Activities) EstimateRound(
	ctx context.Context,
	input domain.EstimateRoundInput,
) (*domain.EstimateRoundOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable("EstimateRound", err, "invalid input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting EstimateRound activity",
		"workflow_id", wfCtx.WorkflowID,
		"activity_id", wfCtx.ActivityID,
		"init_mode", input.InitMode)

	support, err := consensus.SupportFor(input.RiskSupport)
	if err != nil {
		return nil, nonRetryable("EstimateRound", err, "invalid risk support")
	}
	engine, err := consensus.NewBinaryEngine(input.Estimator, input.Loss, input.LabelPrior,
		consensus.WithLogger(a.logger),
		consensus.WithRiskSupport(support))
	if err != nil {
		return nil, nonRetryable("EstimateRound", err, "invalid estimator configuration")
	}

	result, err := a.population.Estimate(engine, consensus.RoundOptions{
		InitMode: input.InitMode,
		RoundID:  wfCtx.WorkflowID + "/" + wfCtx.RunID,
	})
	if err != nil {
		return nil, nonRetryable("EstimateRound", err, "estimation failed")
	}

	a.events.EmitConsensusEstimated(ctx, result, wfCtx, input.ClientIdempotencyKey)

	activity.SafeLog(ctx, "EstimateRound completed",
		"round_id", result.RoundID,
		"classifiers", len(result.Classifiers),
		"assessed", len(result.Subjects),
		"unassessed", len(result.Unassessed),
		"mean_risk", result.MeanRisk())

	return &domain.EstimateRoundOutput{RoundResult: *result}, nil
}

// Error helpers - wrap errors as Temporal application errors

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

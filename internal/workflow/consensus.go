package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-crowd/internal/domain"
	"github.com/ahrav/go-crowd/internal/estimation"
)

// ConsensusRoundWorkflow ingests a batch of annotations and then runs one
// estimation round. Both activities are idempotent, so retries after a
// partial failure do not double-count annotations.
func ConsensusRoundWorkflow(
	ctx workflow.Context,
	req domain.ConsensusRoundRequest,
) (*domain.ConsensusRoundResult, error) {
	// Version gate enables safe evolution and backward compatibility.
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "consensus_round.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid consensus round request",
			"Validation",
			err,
		)
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(req.ActivityTimeoutSeconds) * time.Second,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var a *estimation.Activities
	result := &domain.ConsensusRoundResult{}

	if err := workflow.ExecuteActivity(ctx, a.IngestAnnotations, req.Ingest).Get(ctx, &result.Ingest); err != nil {
		return nil, err
	}
	logger.Info("annotations ingested",
		"accepted", result.Ingest.Accepted,
		"rejected", len(result.Ingest.Rejections),
		"population_subjects", result.Ingest.PopulationSubjects)

	if err := workflow.ExecuteActivity(ctx, a.EstimateRound, req.Estimate).Get(ctx, &result.Estimate); err != nil {
		return nil, err
	}
	logger.Info("consensus estimated",
		"round_id", result.Estimate.RoundID,
		"assessed", len(result.Estimate.Subjects))

	return result, nil
}

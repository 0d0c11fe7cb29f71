// Package worker exposes helpers to register workflows/activities with a Temporal worker.
//
// The population the activities read and write lives in the worker process.
// Run exactly one worker per task queue: a second poller would ingest into
// and estimate from a population of its own.
package worker

import (
	"fmt"
	"log/slog"

	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-crowd/internal/consensus"
	"github.com/ahrav/go-crowd/internal/estimation"
	"github.com/ahrav/go-crowd/internal/workflow"
	"github.com/ahrav/go-crowd/pkg/activity"
	"github.com/ahrav/go-crowd/pkg/events"
)

// Registrar is the subset of a Temporal worker used for registration.
// sdkworker.Worker and the test workflow environment both satisfy it.
type Registrar interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

var _ Registrar = (sdkworker.Worker)(nil)

// RegisterAll registers the consensus workflow and its activities, all bound
// to population. It must be called once, before the worker starts.
func RegisterAll(
	w Registrar,
	population *consensus.Population,
	sink events.EventSink,
	logger *slog.Logger,
) (*estimation.Activities, error) {
	base := activity.NewBaseActivities(sink)

	activities, err := estimation.NewActivities(base, population, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimation activities: %w", err)
	}

	w.RegisterWorkflow(workflow.ConsensusRoundWorkflow)

	w.RegisterActivity(activities.IngestAnnotations)
	w.RegisterActivity(activities.EstimateRound)
	return activities, nil
}

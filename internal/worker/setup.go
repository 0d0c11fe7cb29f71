// Package worker provides initialization and setup utilities for Temporal workers.
// This package contains initialization logic that should be executed during
// worker startup, keeping activity packages focused on pure activity logic.
package worker

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-crowd/internal/config"
	"github.com/ahrav/go-crowd/internal/consensus"
	"github.com/ahrav/go-crowd/pkg/events"
)

const redisPoolSize = 10

// InitializeEventSink returns the sink consensus events are written to: a
// Redis stream when cfg names a Redis address, the structured log otherwise.
// The returned close function releases the Redis client.
func InitializeEventSink(cfg config.EventsConfig, logger *slog.Logger) (events.EventSink, func() error) {
	if cfg.RedisAddr == "" {
		return events.NewSlogSink(logger), func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: redisPoolSize,
	})
	return events.NewRedisSink(client, cfg.Stream, cfg.DedupTTL), client.Close
}

// InitializePopulation returns the empty in-memory population the worker's
// activities share. It is not shared across processes, so the task queue
// must have a single worker.
func InitializePopulation() *consensus.Population {
	return consensus.NewPopulation()
}

// Run dials Temporal, registers everything on cfg.TaskQueue and blocks until
// the process is interrupted.
func Run(cfg *config.Config, logger *slog.Logger) error {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("failed to dial temporal at %s: %w", cfg.HostPort, err)
	}
	defer c.Close()

	sink, closeSink := InitializeEventSink(cfg.Events, logger)
	defer func() {
		if err := closeSink(); err != nil {
			logger.Warn("failed to close event sink", "error", err)
		}
	}()

	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{})
	if _, err := RegisterAll(w, InitializePopulation(), sink, logger); err != nil {
		return err
	}

	logger.Info("consensus worker starting",
		"task_queue", cfg.TaskQueue,
		"namespace", cfg.Namespace,
		"task", cfg.Task,
		"redis_events", cfg.Events.RedisAddr != "",
		"population", "in-process")
	if err := w.Run(sdkworker.InterruptCh()); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}

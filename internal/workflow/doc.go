// Package workflow implements the Temporal workflow that drives consensus rounds.
//
// A round ingests one batch of annotation records into the shared population
// and then re-estimates classifier skills, true labels and risks over a
// snapshot of it. Scheduling of rounds (how often, after how many new
// annotations) is left to the caller starting the workflow.
//
// Workflows should not contain any non-deterministic operations
// such as random number generation, system time access, or external I/O.
// Such operations are delegated to activities.
package workflow

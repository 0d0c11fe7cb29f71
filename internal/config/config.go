// Package config loads estimation configuration from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-crowd/internal/domain"
	"github.com/ahrav/go-crowd/pkg/events"
)

// Defaults for the worker-facing settings.
const (
	DefaultTaskQueue       = "consensus-rounds"
	DefaultTask            = "T0"
	DefaultTrueValue       = "1"
	DefaultFalseValue      = "0"
	DefaultActivityTimeout = 60 * time.Second
	DefaultHostPort        = "localhost:7233"
	DefaultNamespace       = "default"
)

// Config holds everything needed to run estimation rounds.
type Config struct {
	// Estimator tunes the classifier skill estimator.
	Estimator domain.EstimatorConfig `yaml:"estimator"`

	// Loss sets the false positive/negative penalties used by risk.
	Loss domain.LossConfig `yaml:"loss"`

	// LabelPrior sets the prior probability of a true label.
	LabelPrior domain.LabelPriorConfig `yaml:"label_prior"`

	// RiskSupport selects the labels risk is computed over.
	RiskSupport domain.RiskSupport `yaml:"risk_support" validate:"oneof=empirical domain"`

	// Task is the upstream task whose annotations are ingested.
	Task string `yaml:"task" validate:"required"`

	// Mapping resolves the task's raw values into labels.
	Mapping domain.BinaryValueMapping `yaml:"mapping"`

	// HostPort is the Temporal frontend address.
	HostPort string `yaml:"host_port" validate:"required,hostname_port"`

	// Namespace is the Temporal namespace the worker polls in.
	Namespace string `yaml:"namespace" validate:"required"`

	// TaskQueue is the Temporal task queue the worker polls.
	TaskQueue string `yaml:"task_queue" validate:"required"`

	// ActivityTimeout bounds each activity execution.
	ActivityTimeout time.Duration `yaml:"activity_timeout" validate:"gte=1s,lte=1h"`

	// Events selects where consensus events are written.
	Events EventsConfig `yaml:"events"`
}

// EventsConfig selects the event sink. Without a Redis address events are
// written to the structured log.
type EventsConfig struct {
	RedisAddr string        `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	Stream    string        `yaml:"stream" validate:"required"`
	DedupTTL  time.Duration `yaml:"dedup_ttl" validate:"gte=1s"`
}

// Default returns a configuration with the documented estimator defaults and
// symmetric unit losses.
func Default() *Config {
	return &Config{
		Estimator:   domain.DefaultEstimatorConfig(),
		Loss:        domain.DefaultLossConfig(),
		LabelPrior:  domain.DefaultLabelPriorConfig(),
		RiskSupport: domain.RiskSupportEmpirical,
		Task:        DefaultTask,
		Mapping: domain.BinaryValueMapping{
			TrueValue:  DefaultTrueValue,
			FalseValue: DefaultFalseValue,
		},
		HostPort:        DefaultHostPort,
		Namespace:       DefaultNamespace,
		TaskQueue:       DefaultTaskQueue,
		ActivityTimeout: DefaultActivityTimeout,
		Events: EventsConfig{
			Stream:   events.DefaultStream,
			DedupTTL: events.DefaultDedupTTL,
		},
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := domain.Validator().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}

// Parse decodes YAML on top of Default and validates the result. Fields
// absent from the document keep their defaults; unknown fields are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !isEmptyDocument(err) {
		return nil, fmt.Errorf("%w: decode yaml: %w", domain.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// EstimateInput builds the EstimateRound contract for this configuration.
func (c *Config) EstimateInput(clientIdempotencyKey string, initMode bool) domain.EstimateRoundInput {
	return domain.EstimateRoundInput{
		Estimator:            c.Estimator,
		Loss:                 c.Loss,
		LabelPrior:           c.LabelPrior,
		RiskSupport:          c.RiskSupport,
		InitMode:             initMode,
		ClientIdempotencyKey: clientIdempotencyKey,
	}
}

// RoundRequest builds a ConsensusRoundWorkflow request for one batch of records.
func (c *Config) RoundRequest(
	records []domain.AnnotationRecord,
	clientIdempotencyKey string,
	initMode bool,
) domain.ConsensusRoundRequest {
	return domain.ConsensusRoundRequest{
		Ingest:                 c.IngestInput(records, clientIdempotencyKey),
		Estimate:               c.EstimateInput(clientIdempotencyKey, initMode),
		ActivityTimeoutSeconds: int(c.ActivityTimeout / time.Second),
	}
}

// IngestInput builds the IngestAnnotations contract for this configuration.
func (c *Config) IngestInput(records []domain.AnnotationRecord, clientIdempotencyKey string) domain.IngestAnnotationsInput {
	return domain.IngestAnnotationsInput{
		Records:              records,
		Task:                 c.Task,
		Mapping:              c.Mapping,
		ClientIdempotencyKey: clientIdempotencyKey,
	}
}

func isEmptyDocument(err error) bool { return errors.Is(err, io.EOF) }

// Package domain estimation provides the configuration and operation
// contracts for consensus estimation rounds.
//
// Estimation Round Architecture:
//   - IngestAnnotations: parsed annotation records merged into the population
//   - EstimateRound: classifier skills, true labels and risks over a snapshot
//   - ConsensusRoundRequest: one ingest followed by one estimate
//
// All contracts carry validation tags; validation failures are permanent.
package domain

import "time"

// Estimator defaults for the Beta-Bernoulli shrinkage estimator.
const (
	// DefaultNBeta is the pseudo-count strength of the skill prior.
	DefaultNBeta = 5.0

	// DefaultLowCountProb is the probability the population prior shrinks toward.
	DefaultLowCountProb = 0.8

	// DefaultLowCountThreshold is accepted for compatibility and not read by
	// the estimator arithmetic.
	DefaultLowCountThreshold = 2

	// DefaultSuccessProb is the default prior probability of a true label.
	DefaultSuccessProb = 0.5
)

// EstimatorConfig tunes the classifier skill estimator.
type EstimatorConfig struct {
	// NBeta is the prior strength: the prior dominates until roughly NBeta
	// annotations have been seen, the history dominates after.
	NBeta float64 `json:"n_beta" yaml:"n_beta" validate:"finite,gt=0"`

	// LowCountProb is the skill the population prior converges to without evidence.
	LowCountProb float64 `json:"low_count_prob" yaml:"low_count_prob" validate:"min=0,max=1"`

	// LowCountThreshold is reserved. The shrinkage formula does not read it.
	LowCountThreshold int `json:"low_count_threshold" yaml:"low_count_threshold" validate:"min=0"`
}

// DefaultEstimatorConfig returns the documented estimator defaults.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		NBeta:             DefaultNBeta,
		LowCountProb:      DefaultLowCountProb,
		LowCountThreshold: DefaultLowCountThreshold,
	}
}

// Validate checks the estimator configuration.
func (c *EstimatorConfig) Validate() error { return validate.Struct(c) }

// LossConfig sets the penalties of the binary loss model. Losses are finite
// so a zero posterior never turns risk into NaN.
type LossConfig struct {
	// FalsePosLoss is charged for predicting true when the label is false.
	FalsePosLoss float64 `json:"false_pos_loss" yaml:"false_pos_loss" validate:"finite,min=0"`

	// FalseNegLoss is charged for predicting false when the label is true.
	FalseNegLoss float64 `json:"false_neg_loss" yaml:"false_neg_loss" validate:"finite,min=0"`
}

// DefaultLossConfig returns symmetric unit losses.
func DefaultLossConfig() LossConfig { return LossConfig{FalsePosLoss: 1, FalseNegLoss: 1} }

// Validate checks the loss configuration.
func (c *LossConfig) Validate() error { return validate.Struct(c) }

// RiskSupport selects which candidate labels the risk posterior ranges over.
type RiskSupport string

const (
	// RiskSupportEmpirical uses the labels observed on the subject.
	RiskSupportEmpirical RiskSupport = "empirical"

	// RiskSupportDomain uses every label of the task's label domain, so
	// unanimous subjects still carry the risk of the unobserved label.
	RiskSupportDomain RiskSupport = "domain"
)

// LabelPriorConfig sets the binary label prior.
type LabelPriorConfig struct {
	SuccessProb float64 `json:"success_prob" yaml:"success_prob" validate:"min=0,max=1"`
}

// DefaultLabelPriorConfig returns a uniform binary prior.
func DefaultLabelPriorConfig() LabelPriorConfig {
	return LabelPriorConfig{SuccessProb: DefaultSuccessProb}
}

// AnnotationRecord is one parsed annotation as delivered by the transport
// layer: already resolved to identifiers and a task-scoped raw value.
// Records are checked one at a time during ingestion, so a record with a
// missing identifier is rejected on its own.
type AnnotationRecord struct {
	AnnotationID string `json:"annotation_id"`
	ClassifierID string `json:"classifier_id"`
	SubjectID    string `json:"subject_id"`
	Task         string `json:"task"`
	RawValue     string `json:"raw_value"`
}

// RecordRejection explains why one record did not become an annotation.
type RecordRejection struct {
	AnnotationID string `json:"annotation_id"`
	SubjectID    string `json:"subject_id"`
	Reason       string `json:"reason"`
}

// IngestAnnotationsInput represents the input for the IngestAnnotations operation.
type IngestAnnotationsInput struct {
	// Records are the parsed annotations to merge.
	Records []AnnotationRecord `json:"records" validate:"required,min=1"`

	// Task selects which task's records are ingested; others are rejected.
	Task string `json:"task" validate:"required"`

	// Mapping resolves raw values into binary labels.
	Mapping BinaryValueMapping `json:"mapping" validate:"required"`

	// ClientIdempotencyKey enables deterministic event generation.
	ClientIdempotencyKey string `json:"client_idempotency_key" validate:"required"`
}

// Validate checks the ingest input.
func (i *IngestAnnotationsInput) Validate() error { return validate.Struct(i) }

// IngestAnnotationsOutput reports how a batch changed the population.
type IngestAnnotationsOutput struct {
	MergeStats

	// Accepted counts records that became annotations in the batch.
	Accepted int `json:"accepted" validate:"min=0"`

	// Rejections lists records that were not ingested.
	Rejections []RecordRejection `json:"rejections,omitempty"`

	// PopulationSubjects is the number of known subjects after the merge.
	PopulationSubjects int `json:"population_subjects" validate:"min=0"`

	// PopulationAnnotations is the number of known annotations after the merge.
	PopulationAnnotations int `json:"population_annotations" validate:"min=0"`
}

// EstimateRoundInput represents the input for the EstimateRound operation.
type EstimateRoundInput struct {
	Estimator  EstimatorConfig  `json:"estimator" validate:"required"`
	Loss       LossConfig       `json:"loss"`
	LabelPrior LabelPriorConfig `json:"label_prior"`

	// RiskSupport selects the risk posterior's candidates; empty means empirical.
	RiskSupport RiskSupport `json:"risk_support,omitempty" validate:"omitempty,oneof=empirical domain"`

	// InitMode forces the uniform bootstrap skill model.
	InitMode bool `json:"init_mode"`

	// ClientIdempotencyKey enables deterministic event generation.
	ClientIdempotencyKey string `json:"client_idempotency_key" validate:"required"`
}

// Validate checks the estimate input.
func (i *EstimateRoundInput) Validate() error { return validate.Struct(i) }

// ClassifierSkill is the published skill estimate of one classifier.
type ClassifierSkill struct {
	ClassifierID string             `json:"classifier_id"`
	Skills       []LabelProbability `json:"skills"`
	SkillPriors  []LabelProbability `json:"skill_priors"`
}

// LabelProbability pairs a label with a probability.
type LabelProbability struct {
	Label       Label   `json:"label"`
	Probability float64 `json:"probability"`
}

// SubjectAssessment is the published consensus for one subject.
type SubjectAssessment struct {
	SubjectID       string          `json:"subject_id"`
	TrueLabel       Label           `json:"true_label"`
	Source          TrueLabelSource `json:"source"`
	Risk            float64         `json:"risk"`
	AnnotationCount int             `json:"annotation_count"`
}

// RoundResult is the output of one estimation round.
type RoundResult struct {
	RoundID     string              `json:"round_id"`
	InitMode    bool                `json:"init_mode"`
	Estimator   EstimatorConfig     `json:"estimator"`
	Classifiers []ClassifierSkill   `json:"classifiers"`
	Subjects    []SubjectAssessment `json:"subjects"`

	// Unassessed lists subjects skipped because they have no annotations.
	Unassessed  []string  `json:"unassessed,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Assessment returns the assessment of the subject, if it was assessed.
func (r *RoundResult) Assessment(subjectID string) (SubjectAssessment, bool) {
	for _, a := range r.Subjects {
		if a.SubjectID == subjectID {
			return a, true
		}
	}
	return SubjectAssessment{}, false
}

// Skill returns the published skill of the classifier for a true label.
func (r *RoundResult) Skill(classifierID string, l Label) (float64, bool) {
	for _, c := range r.Classifiers {
		if c.ClassifierID != classifierID {
			continue
		}
		for _, s := range c.Skills {
			if s.Label == l {
				return s.Probability, true
			}
		}
	}
	return 0, false
}

// MeanRisk returns the average risk across assessed subjects, 0 when none.
func (r *RoundResult) MeanRisk() float64 {
	if len(r.Subjects) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.Subjects {
		sum += s.Risk
	}
	return sum / float64(len(r.Subjects))
}

// EstimateRoundOutput represents the output of the EstimateRound operation.
type EstimateRoundOutput struct {
	RoundResult
}

// ConsensusRoundRequest drives one round: ingest a batch, then estimate.
type ConsensusRoundRequest struct {
	Ingest   IngestAnnotationsInput `json:"ingest" validate:"required"`
	Estimate EstimateRoundInput     `json:"estimate" validate:"required"`

	// ActivityTimeoutSeconds bounds each activity execution.
	ActivityTimeoutSeconds int `json:"activity_timeout_seconds" validate:"min=1,max=3600"`
}

// Validate checks the round request.
func (r *ConsensusRoundRequest) Validate() error { return validate.Struct(r) }

// ConsensusRoundResult is the workflow result of one round.
type ConsensusRoundResult struct {
	Ingest   IngestAnnotationsOutput `json:"ingest"`
	Estimate EstimateRoundOutput     `json:"estimate"`
}

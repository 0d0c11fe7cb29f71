package consensus

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-crowd/internal/domain"
)

// Engine runs estimation rounds with injected models.
type Engine struct {
	estimator *SkillEstimator
	model     AnnotationModel
	prior     LabelPrior
	loss      LossModel
	support   Support
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRiskSupport sets the candidates risk posteriors range over. The
// default is EmpiricalSupport.
func WithRiskSupport(s Support) Option {
	return func(e *Engine) {
		if s != nil {
			e.support = s
		}
	}
}

// WithClock sets the clock used to stamp round results.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine returns an engine using the given strategies.
func NewEngine(
	estimator *SkillEstimator,
	model AnnotationModel,
	prior LabelPrior,
	loss LossModel,
	opts ...Option,
) (*Engine, error) {
	if estimator == nil || model == nil || prior == nil || loss == nil {
		return nil, fmt.Errorf("%w: estimator, annotation model, label prior and loss model are required",
			domain.ErrInvalidArgument)
	}
	e := &Engine{
		estimator: estimator,
		model:     model,
		prior:     prior,
		loss:      loss,
		support:   EmpiricalSupport{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if ds, ok := e.support.(DomainSupport); ok {
		labels, err := ds.enumerate()
		if err != nil {
			return nil, err
		}
		// Risk over the whole domain needs a skill for every label in it.
		e.estimator = &SkillEstimator{cfg: estimator.cfg, cover: append(slices.Clone(estimator.cover), labels...)}
	}
	return e, nil
}

// NewBinaryEngine builds the binary-task engine from configuration.
func NewBinaryEngine(
	est domain.EstimatorConfig,
	lossCfg domain.LossConfig,
	priorCfg domain.LabelPriorConfig,
	opts ...Option,
) (*Engine, error) {
	estimator, err := NewSkillEstimator(est)
	if err != nil {
		return nil, err
	}
	loss, err := NewBinaryLoss(lossCfg)
	if err != nil {
		return nil, err
	}
	prior, err := NewBinaryLabelPrior(priorCfg.SuccessProb)
	if err != nil {
		return nil, fmt.Errorf("%w: label prior: %w", domain.ErrInvalidConfig, err)
	}
	return NewEngine(estimator, BinaryAnnotationModel{}, prior, loss, opts...)
}

// RoundOptions controls one estimation round.
type RoundOptions struct {
	// InitMode forces the uniform bootstrap skill model. Rounds over a
	// population without any true labels bootstrap regardless.
	InitMode bool

	// RoundID identifies the round in the result; generated when empty.
	RoundID string
}

// Run executes skills → true labels → risks over subjects, mutating the
// computed state of subjects and their classifiers, and returns the
// published result. Subjects without annotations are skipped and listed as
// unassessed. Any other failure aborts the round.
func (e *Engine) Run(subjects *domain.Subjects, opts RoundOptions) (*domain.RoundResult, error) {
	if subjects == nil {
		return nil, fmt.Errorf("%w: nil subjects", domain.ErrInvalidArgument)
	}
	roundID := opts.RoundID
	if roundID == "" {
		roundID = uuid.NewString()
	}
	initMode := opts.InitMode || !subjects.HasTrueLabels()
	start := e.now()

	logger := e.logger.With("round_id", roundID)
	logger.Debug("estimation round started",
		"subjects", subjects.Len(),
		"annotations", subjects.AnnotationCount(),
		"init_mode", initMode)

	classifiers, err := e.estimator.ComputeAll(subjects, initMode)
	if err != nil {
		return nil, fmt.Errorf("round %s: skills: %w", roundID, err)
	}

	result := &domain.RoundResult{
		RoundID:   roundID,
		InitMode:  initMode,
		Estimator: e.estimator.Config(),
	}
	for _, c := range classifiers.Items() {
		result.Classifiers = append(result.Classifiers, publishSkill(c))
	}

	for _, s := range subjects.Items() {
		label, err := InferTrueLabel(s, e.model, e.prior)
		if errors.Is(err, domain.ErrNoAnnotations) {
			result.Unassessed = append(result.Unassessed, s.ID())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("round %s: true label: %w", roundID, err)
		}
		risk, err := RiskOver(s, e.support, e.model, e.prior, e.loss)
		if err != nil {
			return nil, fmt.Errorf("round %s: risk: %w", roundID, err)
		}
		result.Subjects = append(result.Subjects, domain.SubjectAssessment{
			SubjectID:       s.ID(),
			TrueLabel:       label,
			Source:          s.TrueLabelSource(),
			Risk:            risk,
			AnnotationCount: s.Annotations().Len(),
		})
	}
	result.CompletedAt = e.now()

	logger.Info("estimation round completed",
		"classifiers", len(result.Classifiers),
		"assessed", len(result.Subjects),
		"unassessed", len(result.Unassessed),
		"mean_risk", result.MeanRisk(),
		"duration", result.CompletedAt.Sub(start))
	return result, nil
}

// publishSkill copies a classifier's computed state into the result shape.
// Both maps are set by ComputeAll, so errors cannot occur here.
func publishSkill(c *domain.Classifier) domain.ClassifierSkill {
	skills, _ := c.Skills()
	priors, _ := c.SkillPriors()
	out := domain.ClassifierSkill{ClassifierID: c.ID()}
	for _, l := range skills.Labels() {
		out.Skills = append(out.Skills, domain.LabelProbability{Label: l, Probability: skills[l]})
	}
	for _, l := range priors.Labels() {
		out.SkillPriors = append(out.SkillPriors, domain.LabelProbability{Label: l, Probability: priors[l]})
	}
	return out
}

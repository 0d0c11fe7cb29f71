package consensus

import (
	"fmt"

	"github.com/ahrav/go-crowd/internal/domain"
)

// LossModel returns the loss of predicting predicted when trueLabel is the
// true label. Correct predictions are included and usually cost nothing.
type LossModel interface {
	Loss(trueLabel, predicted domain.Label) (float64, error)
}

// BinaryLoss charges FalseNeg for missing a true label and FalsePos for
// predicting true on a false one.
type BinaryLoss struct {
	FalsePos float64
	FalseNeg float64
}

// NewBinaryLoss returns the loss model configured by cfg.
func NewBinaryLoss(cfg domain.LossConfig) (BinaryLoss, error) {
	if err := cfg.Validate(); err != nil {
		return BinaryLoss{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return BinaryLoss{FalsePos: cfg.FalsePosLoss, FalseNeg: cfg.FalseNegLoss}, nil
}

// Loss implements LossModel.
func (m BinaryLoss) Loss(trueLabel, predicted domain.Label) (float64, error) {
	t, ok := trueLabel.Bool()
	if !ok {
		return 0, fmt.Errorf("%w: binary loss got %s true label", domain.ErrLabelOutOfDomain, trueLabel.Kind())
	}
	p, ok := predicted.Bool()
	if !ok {
		return 0, fmt.Errorf("%w: binary loss got %s prediction", domain.ErrLabelOutOfDomain, predicted.Kind())
	}
	switch {
	case t && !p:
		return m.FalseNeg, nil
	case p && !t:
		return m.FalsePos, nil
	default:
		return 0, nil
	}
}

// ZeroOneLoss charges 1 for any wrong prediction, for any label kind.
type ZeroOneLoss struct{}

// Loss implements LossModel.
func (ZeroOneLoss) Loss(trueLabel, predicted domain.Label) (float64, error) {
	if trueLabel.Kind() != predicted.Kind() {
		return 0, fmt.Errorf("%w: %s vs %s", domain.ErrLabelDomainMismatch, trueLabel.Kind(), predicted.Kind())
	}
	if trueLabel == predicted {
		return 0, nil
	}
	return 1, nil
}

// Risk returns the expected loss of committing to the subject's current true
// label under its posterior over the empirical label support:
//
//	Σ_L loss(L, point) * post(L) / Σ_L post(L)
//
// The subject's true label must already be set. The computed value is also
// stored on the subject.
func Risk(subject *domain.Subject, model AnnotationModel, prior LabelPrior, loss LossModel) (float64, error) {
	return RiskOver(subject, EmpiricalSupport{}, model, prior, loss)
}

// RiskOver is Risk with the posterior ranging over the candidates of sup.
func RiskOver(
	subject *domain.Subject,
	sup Support,
	model AnnotationModel,
	prior LabelPrior,
	loss LossModel,
) (float64, error) {
	if subject == nil {
		return 0, fmt.Errorf("%w: nil subject", domain.ErrInvalidArgument)
	}
	if loss == nil {
		return 0, fmt.Errorf("%w: loss model is required", domain.ErrInvalidArgument)
	}
	point, ok := subject.TrueLabel()
	if !ok {
		return 0, fmt.Errorf("%w: true label of subject %s", domain.ErrNotComputed, subject.ID())
	}
	posterior, err := PosteriorOver(subject, sup, model, prior)
	if err != nil {
		return 0, err
	}

	var risk, mass float64
	for _, p := range posterior {
		l, err := loss.Loss(p.Label, point)
		if err != nil {
			return 0, fmt.Errorf("subject %q: %w", subject.ID(), err)
		}
		risk += l * p.Probability
		mass += p.Probability
	}
	risk /= mass
	subject.SetRisk(risk)
	return risk, nil
}

package consensus

import (
	"fmt"

	"github.com/ahrav/go-crowd/internal/domain"
)

// AnnotationModel returns the probability that the annotation's classifier
// emits the annotation's label when trueLabel is the true label.
// Classifier skills must be computed first.
type AnnotationModel interface {
	Likelihood(trueLabel domain.Label, a *domain.Annotation) (float64, error)
}

// BinaryAnnotationModel is the Bernoulli model: skill[true] on agreement,
// 1-skill[true] on disagreement.
type BinaryAnnotationModel struct{}

// Likelihood implements AnnotationModel.
func (BinaryAnnotationModel) Likelihood(trueLabel domain.Label, a *domain.Annotation) (float64, error) {
	if a == nil {
		return 0, fmt.Errorf("%w: nil annotation", domain.ErrInvalidArgument)
	}
	if _, ok := trueLabel.Bool(); !ok {
		return 0, fmt.Errorf("%w: binary model got %s hypothesis", domain.ErrLabelOutOfDomain, trueLabel.Kind())
	}
	if _, ok := a.Label().Bool(); !ok {
		return 0, fmt.Errorf("%w: binary model got %s annotation %q",
			domain.ErrLabelOutOfDomain, a.Label().Kind(), a.ID())
	}
	skill, err := skillFor(trueLabel, a)
	if err != nil {
		return 0, err
	}
	if a.Label() == trueLabel {
		return skill, nil
	}
	return 1 - skill, nil
}

// SymmetricAnnotationModel generalizes the binary model to K labels: the
// classifier is right with probability skill[true] and spreads the remaining
// mass evenly over the other K-1 labels.
type SymmetricAnnotationModel struct {
	Domain domain.LabelDomain

	// Observed supplies the labels for domains whose size depends on the data.
	Observed []domain.Label
}

// Likelihood implements AnnotationModel.
func (m SymmetricAnnotationModel) Likelihood(trueLabel domain.Label, a *domain.Annotation) (float64, error) {
	if a == nil {
		return 0, fmt.Errorf("%w: nil annotation", domain.ErrInvalidArgument)
	}
	if m.Domain == nil {
		return 0, fmt.Errorf("%w: symmetric model has no label domain", domain.ErrInvalidArgument)
	}
	if !m.Domain.Contains(trueLabel) || !m.Domain.Contains(a.Label()) {
		return 0, fmt.Errorf("%w: %s/%s outside %s domain",
			domain.ErrLabelOutOfDomain, trueLabel, a.Label(), m.Domain.Kind())
	}
	k := m.Domain.Cardinality(m.Observed)
	if k < 2 {
		return 0, fmt.Errorf("%w: symmetric model needs at least two labels (cardinality %d)",
			domain.ErrInvalidArgument, k)
	}
	skill, err := skillFor(trueLabel, a)
	if err != nil {
		return 0, err
	}
	if a.Label() == trueLabel {
		return skill, nil
	}
	return (1 - skill) / float64(k-1), nil
}

func skillFor(trueLabel domain.Label, a *domain.Annotation) (float64, error) {
	skills, err := a.Classifier().Skills()
	if err != nil {
		return 0, err
	}
	skill, ok := skills[trueLabel]
	if !ok {
		return 0, fmt.Errorf("%w: classifier %q has no skill for %s",
			domain.ErrLabelOutOfDomain, a.Classifier().ID(), trueLabel)
	}
	return skill, nil
}

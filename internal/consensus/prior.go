package consensus

import (
	"fmt"
	"math"

	"github.com/ahrav/go-crowd/internal/domain"
)

// LabelPrior returns the prior probability that a subject's true label is l,
// independent of any classifier.
type LabelPrior interface {
	Prior(l domain.Label) (float64, error)
}

// BinaryLabelPrior is a Bernoulli prior over {true, false}. Only the success
// probability is stored; the failure probability is always its complement.
type BinaryLabelPrior struct {
	successProb float64
}

// NewBinaryLabelPrior returns a prior with P(true) = successProb.
func NewBinaryLabelPrior(successProb float64) (*BinaryLabelPrior, error) {
	p := &BinaryLabelPrior{}
	if err := p.SetSuccessProb(successProb); err != nil {
		return nil, err
	}
	return p, nil
}

// SuccessProb returns P(true).
func (p *BinaryLabelPrior) SuccessProb() float64 { return p.successProb }

// FailureProb returns P(false).
func (p *BinaryLabelPrior) FailureProb() float64 { return 1 - p.successProb }

// SetSuccessProb sets P(true); P(false) follows.
func (p *BinaryLabelPrior) SetSuccessProb(prob float64) error {
	if err := checkProbability(prob); err != nil {
		return err
	}
	p.successProb = prob
	return nil
}

// SetFailureProb sets P(false); P(true) follows.
func (p *BinaryLabelPrior) SetFailureProb(prob float64) error {
	if err := checkProbability(prob); err != nil {
		return err
	}
	p.successProb = 1 - prob
	return nil
}

// Prior returns P(l) for a binary label and ErrLabelOutOfDomain otherwise.
func (p *BinaryLabelPrior) Prior(l domain.Label) (float64, error) {
	v, ok := l.Bool()
	if !ok {
		return 0, fmt.Errorf("%w: binary prior got %s label %s", domain.ErrLabelOutOfDomain, l.Kind(), l)
	}
	if v {
		return p.SuccessProb(), nil
	}
	return p.FailureProb(), nil
}

// UniformLabelPrior assigns equal probability to every label of a finite domain.
type UniformLabelPrior struct {
	Domain domain.LabelDomain

	// Observed supplies the labels for domains whose size depends on the data.
	Observed []domain.Label
}

// Prior returns 1/|domain| for members and ErrLabelOutOfDomain otherwise.
func (p UniformLabelPrior) Prior(l domain.Label) (float64, error) {
	if p.Domain == nil {
		return 0, fmt.Errorf("%w: uniform prior has no label domain", domain.ErrInvalidArgument)
	}
	if !p.Domain.Contains(l) {
		return 0, fmt.Errorf("%w: %s label %s", domain.ErrLabelOutOfDomain, l.Kind(), l)
	}
	n := p.Domain.Cardinality(p.Observed)
	if n <= 0 {
		return 0, fmt.Errorf("%w: uniform prior needs a finite, non-empty domain (cardinality %d)",
			domain.ErrInvalidArgument, n)
	}
	return 1 / float64(n), nil
}

func checkProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: got %v", domain.ErrInvalidProbability, p)
	}
	return nil
}

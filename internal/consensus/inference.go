package consensus

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-crowd/internal/domain"
)

// Support chooses the candidate true labels posterior quantities range over.
type Support interface {
	Candidates(subject *domain.Subject) ([]domain.Label, error)
}

// EmpiricalSupport restricts candidates to the labels observed among the
// subject's own annotations, in ascending label order. MAP inference always
// uses it.
type EmpiricalSupport struct{}

// Candidates implements Support.
func (EmpiricalSupport) Candidates(subject *domain.Subject) ([]domain.Label, error) {
	if subject == nil {
		return nil, fmt.Errorf("%w: nil subject", domain.ErrInvalidArgument)
	}
	labels := subject.Annotations().UniqueLabels()
	if len(labels) == 0 {
		return nil, fmt.Errorf("subject %q: %w", subject.ID(), domain.ErrNoAnnotations)
	}
	return labels, nil
}

// DomainSupport ranges over every label of a finite domain, including labels
// no classifier has used on the subject yet.
type DomainSupport struct {
	Domain domain.LabelDomain

	// Labels enumerates the domain. It is required for domains other than
	// BoolDomain and must match the domain's cardinality.
	Labels []domain.Label
}

// Candidates implements Support.
func (s DomainSupport) Candidates(subject *domain.Subject) ([]domain.Label, error) {
	if subject == nil {
		return nil, fmt.Errorf("%w: nil subject", domain.ErrInvalidArgument)
	}
	if subject.Annotations().Len() == 0 {
		return nil, fmt.Errorf("subject %q: %w", subject.ID(), domain.ErrNoAnnotations)
	}
	return s.enumerate()
}

// enumerate returns the domain's labels in ascending order.
func (s DomainSupport) enumerate() ([]domain.Label, error) {
	if s.Domain == nil {
		return nil, fmt.Errorf("%w: domain support has no label domain", domain.ErrInvalidArgument)
	}
	labels := s.Labels
	if _, ok := s.Domain.(domain.BoolDomain); ok && len(labels) == 0 {
		labels = []domain.Label{domain.BoolLabel(false), domain.BoolLabel(true)}
	}
	if n := s.Domain.Cardinality(labels); n <= 0 || n != len(labels) {
		return nil, fmt.Errorf("%w: domain support needs an enumerated finite domain (cardinality %d, %d labels)",
			domain.ErrInvalidArgument, n, len(labels))
	}
	out := make([]domain.Label, 0, len(labels))
	for _, l := range labels {
		if !s.Domain.Contains(l) {
			return nil, fmt.Errorf("%w: %s not in %s domain", domain.ErrLabelOutOfDomain, l, s.Domain.Kind())
		}
		out = append(out, l)
	}
	slices.SortFunc(out, domain.Label.Compare)
	return out, nil
}

// SupportFor returns the binary-task support for mode. The empty mode is empirical.
func SupportFor(mode domain.RiskSupport) (Support, error) {
	switch mode {
	case "", domain.RiskSupportEmpirical:
		return EmpiricalSupport{}, nil
	case domain.RiskSupportDomain:
		return DomainSupport{Domain: domain.BoolDomain{}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown risk support %q", domain.ErrInvalidConfig, mode)
	}
}

// Posterior returns the normalized posterior over the subject's empirical
// label support, in ascending label order. It fails with
// ErrZeroPosteriorMass when every candidate has zero probability.
func Posterior(subject *domain.Subject, model AnnotationModel, prior LabelPrior) ([]domain.LabelProbability, error) {
	return PosteriorOver(subject, EmpiricalSupport{}, model, prior)
}

// PosteriorOver is Posterior with the candidate labels chosen by sup.
func PosteriorOver(
	subject *domain.Subject,
	sup Support,
	model AnnotationModel,
	prior LabelPrior,
) ([]domain.LabelProbability, error) {
	if sup == nil {
		return nil, fmt.Errorf("%w: support is required", domain.ErrInvalidArgument)
	}
	candidates, err := sup.Candidates(subject)
	if err != nil {
		return nil, err
	}
	scores, err := logJoint(subject, candidates, model, prior)
	if err != nil {
		return nil, err
	}

	peak := math.Inf(-1)
	for _, s := range scores {
		peak = max(peak, s)
	}
	if math.IsInf(peak, -1) {
		return nil, fmt.Errorf("subject %q: %w", subject.ID(), domain.ErrZeroPosteriorMass)
	}

	var total float64
	weights := make([]float64, len(scores))
	for i, s := range scores {
		weights[i] = math.Exp(s - peak)
		total += weights[i]
	}
	out := make([]domain.LabelProbability, len(candidates))
	for i, l := range candidates {
		out[i] = domain.LabelProbability{Label: l, Probability: weights[i] / total}
	}
	return out, nil
}

// MAPLabel returns the label of the subject's empirical support maximizing
// prior(L) * Π_a likelihood(L, a). Ties go to the lowest label.
func MAPLabel(subject *domain.Subject, model AnnotationModel, prior LabelPrior) (domain.Label, error) {
	candidates, err := EmpiricalSupport{}.Candidates(subject)
	if err != nil {
		return domain.Label{}, err
	}
	scores, err := logJoint(subject, candidates, model, prior)
	if err != nil {
		return domain.Label{}, err
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return candidates[best], nil
}

// InferTrueLabel sets the subject's true label to its MAP label and returns
// it. Ground truth is never overwritten; it is returned as is.
func InferTrueLabel(subject *domain.Subject, model AnnotationModel, prior LabelPrior) (domain.Label, error) {
	if subject == nil {
		return domain.Label{}, fmt.Errorf("%w: nil subject", domain.ErrInvalidArgument)
	}
	if subject.Annotations().Len() == 0 {
		return domain.Label{}, fmt.Errorf("subject %q: %w", subject.ID(), domain.ErrNoAnnotations)
	}
	if subject.HasGroundTruth() {
		l, _ := subject.TrueLabel()
		return l, nil
	}
	l, err := MAPLabel(subject, model, prior)
	if err != nil {
		return domain.Label{}, err
	}
	subject.SetInferredLabel(l)
	return l, nil
}

// logJoint returns log prior(L) + Σ_a log likelihood(L, a) per candidate.
// Zero factors give -Inf rather than an error.
func logJoint(
	subject *domain.Subject,
	candidates []domain.Label,
	model AnnotationModel,
	prior LabelPrior,
) ([]float64, error) {
	if model == nil || prior == nil {
		return nil, fmt.Errorf("%w: annotation model and label prior are required", domain.ErrInvalidArgument)
	}
	annotations := subject.Annotations().Items()
	scores := make([]float64, len(candidates))
	for i, l := range candidates {
		p, err := prior.Prior(l)
		if err != nil {
			return nil, err
		}
		score := math.Log(p)
		for _, a := range annotations {
			lik, err := model.Likelihood(l, a)
			if err != nil {
				return nil, fmt.Errorf("subject %q: %w", subject.ID(), err)
			}
			score += math.Log(lik)
		}
		scores[i] = score
	}
	return scores, nil
}

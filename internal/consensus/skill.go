package consensus

import (
	"fmt"
	"slices"

	"github.com/ahrav/go-crowd/internal/domain"
)

// counts tallies annotations on subjects sharing one true label.
type counts struct {
	correct int
	total   int
}

// shrink returns the Beta posterior mean (nBeta*target + correct) / (nBeta + total).
// With no evidence it returns target exactly.
func (c counts) shrink(nBeta, target float64) float64 {
	if c.total == 0 {
		return target
	}
	return (nBeta*target + float64(c.correct)) / (nBeta + float64(c.total))
}

// labelTally holds the counts for one candidate true label, for the whole
// population and per classifier.
type labelTally struct {
	population   counts
	byClassifier map[string]counts
}

// tallyLabel counts annotations on subjects whose current true label is l.
func tallyLabel(subjects *domain.Subjects, l domain.Label) labelTally {
	t := labelTally{byClassifier: make(map[string]counts)}
	matching := subjects.Subset(domain.SubjectFilter{TrueLabel: domain.Some(l)})
	for _, s := range matching.Items() {
		for _, a := range s.Annotations().Items() {
			id := a.Classifier().ID()
			c := t.byClassifier[id]
			c.total++
			t.population.total++
			if a.Label() == l {
				c.correct++
				t.population.correct++
			}
			t.byClassifier[id] = c
		}
	}
	return t
}

// SkillEstimator is the two-stage Beta-Bernoulli shrinkage estimator of
// classifier skill.
type SkillEstimator struct {
	cfg domain.EstimatorConfig

	// cover lists labels estimated even when no annotation carries them.
	cover []domain.Label
}

// NewSkillEstimator validates cfg and returns an estimator. Skills are
// estimated for every observed label plus any label in cover.
func NewSkillEstimator(cfg domain.EstimatorConfig, cover ...domain.Label) (*SkillEstimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	for _, l := range cover {
		if l.IsZero() {
			return nil, fmt.Errorf("%w: unset label in estimator cover", domain.ErrInvalidArgument)
		}
	}
	return &SkillEstimator{cfg: cfg, cover: slices.Clone(cover)}, nil
}

// labels returns the observed labels of subjects merged with the cover, in
// ascending label order.
func (e *SkillEstimator) labels(subjects *domain.Subjects) []domain.Label {
	labels := subjects.UniqueLabels()
	for _, l := range e.cover {
		if !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}
	slices.SortFunc(labels, domain.Label.Compare)
	return labels
}

// Config returns the estimator configuration.
func (e *SkillEstimator) Config() domain.EstimatorConfig { return e.cfg }

// Prior computes the population skill prior over every label observed in
// subjects and every covered label. For each label L it pools all
// annotations on subjects whose true label is L and shrinks their accuracy
// toward LowCountProb. In init mode it returns a uniform distribution over
// the same labels.
func (e *SkillEstimator) Prior(subjects *domain.Subjects, initMode bool) (domain.SkillMap, error) {
	if subjects == nil {
		return nil, fmt.Errorf("%w: nil subjects", domain.ErrInvalidArgument)
	}
	labels := e.labels(subjects)
	prior := make(domain.SkillMap, len(labels))
	if initMode {
		for _, l := range labels {
			prior[l] = 1 / float64(len(labels))
		}
		return prior, nil
	}
	for _, l := range labels {
		prior[l] = tallyLabel(subjects, l).population.shrink(e.cfg.NBeta, e.cfg.LowCountProb)
	}
	return prior, nil
}

// Skills computes one classifier's skill for every label of prior, shrinking
// the classifier's own accuracy on subjects whose true label is L toward
// prior[L]. In init mode the prior is returned unchanged.
func (e *SkillEstimator) Skills(
	classifier *domain.Classifier,
	subjects *domain.Subjects,
	prior domain.SkillMap,
	initMode bool,
) (domain.SkillMap, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: nil classifier", domain.ErrInvalidArgument)
	}
	if subjects == nil {
		return nil, fmt.Errorf("%w: nil subjects", domain.ErrInvalidArgument)
	}
	if initMode {
		return prior.Clone(), nil
	}
	skills := make(domain.SkillMap, len(prior))
	for _, l := range prior.Labels() {
		c := tallyLabel(subjects, l).byClassifier[classifier.ID()]
		skills[l] = c.shrink(e.cfg.NBeta, prior[l])
	}
	return skills, nil
}

// ComputeAll computes the population prior once and stores the prior and
// the classifier's skill on every classifier referenced by subjects.
// It returns the classifiers it updated.
func (e *SkillEstimator) ComputeAll(subjects *domain.Subjects, initMode bool) (*domain.Classifiers, error) {
	prior, err := e.Prior(subjects, initMode)
	if err != nil {
		return nil, err
	}

	tallies := make(map[domain.Label]labelTally, len(prior))
	if !initMode {
		for _, l := range prior.Labels() {
			tallies[l] = tallyLabel(subjects, l)
		}
	}

	classifiers := subjects.Classifiers()
	for _, c := range classifiers.Items() {
		skills := prior.Clone()
		if !initMode {
			for l, t := range tallies {
				skills[l] = t.byClassifier[c.ID()].shrink(e.cfg.NBeta, prior[l])
			}
		}
		if err := c.SetSkillPriors(prior); err != nil {
			return nil, err
		}
		if err := c.SetSkills(skills); err != nil {
			return nil, err
		}
	}
	return classifiers, nil
}

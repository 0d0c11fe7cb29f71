package consensus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-crowd/internal/domain"
)

var (
	labelTrue  = domain.BoolLabel(true)
	labelFalse = domain.BoolLabel(false)
)

// vote is one annotation in a test population: classifier id and label.
type vote struct {
	classifier string
	label      domain.Label
}

// populationBuilder creates subjects that share classifier instances by id.
type populationBuilder struct {
	t           testing.TB
	classifiers *domain.Classifiers
	subjects    *domain.Subjects
	nextID      int
}

func newPopulationBuilder(t testing.TB) *populationBuilder {
	t.Helper()
	return &populationBuilder{
		t:           t,
		classifiers: &domain.Classifiers{},
		subjects:    &domain.Subjects{},
	}
}

func (b *populationBuilder) classifier(id string) *domain.Classifier {
	b.t.Helper()
	c, err := b.classifiers.GetOrCreate(id)
	require.NoError(b.t, err)
	return c
}

// subject adds a subject with the given votes; annotation ids are unique
// across the builder.
func (b *populationBuilder) subject(id string, votes ...vote) *domain.Subject {
	b.t.Helper()
	s, err := domain.NewSubject(id)
	require.NoError(b.t, err)
	for _, v := range votes {
		b.nextID++
		a, err := domain.NewLabeledAnnotation(fmt.Sprintf("%s-a%d", id, b.nextID), b.classifier(v.classifier), v.label)
		require.NoError(b.t, err)
		_, err = s.AddAnnotation(a)
		require.NoError(b.t, err)
	}
	require.True(b.t, b.subjects.Append(s), "duplicate subject %s", id)
	return s
}

// goldSubject adds a subject carrying ground truth.
func (b *populationBuilder) goldSubject(id string, truth domain.Label, votes ...vote) *domain.Subject {
	b.t.Helper()
	s := b.subject(id, votes...)
	require.NoError(b.t, s.SetGroundTruth(truth))
	return s
}

func (b *populationBuilder) build() *domain.Subjects { return b.subjects }

// withSkills sets the same skill map on the classifier as both skill and prior.
func withSkills(t testing.TB, c *domain.Classifier, skills domain.SkillMap) {
	t.Helper()
	require.NoError(t, c.SetSkills(skills))
	require.NoError(t, c.SetSkillPriors(skills))
}

func uniformPrior(t testing.TB) *BinaryLabelPrior {
	t.Helper()
	p, err := NewBinaryLabelPrior(0.5)
	require.NoError(t, err)
	return p
}

func unitLoss() BinaryLoss { return BinaryLoss{FalsePos: 1, FalseNeg: 1} }

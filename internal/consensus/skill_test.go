package consensus

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-crowd/internal/domain"
)

func newEstimator(t testing.TB) *SkillEstimator {
	t.Helper()
	e, err := NewSkillEstimator(domain.DefaultEstimatorConfig())
	require.NoError(t, err)
	return e
}

// TestSkillEstimator_ShrinkageScenario: three of four annotations on
// true-labeled subjects are correct, and C1 is right on its only one.
func TestSkillEstimator_ShrinkageScenario(t *testing.T) {
	b := newPopulationBuilder(t)
	b.goldSubject("s1", labelTrue, vote{"c1", labelTrue})
	b.goldSubject("s2", labelTrue, vote{"c2", labelTrue})
	b.goldSubject("s3", labelTrue, vote{"c2", labelTrue})
	b.goldSubject("s4", labelTrue, vote{"c3", labelFalse})
	subjects := b.build()

	est := newEstimator(t)
	prior, err := est.Prior(subjects, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.7778, prior[labelTrue], 1e-4)
	assert.InDelta(t, 7.0/9, prior[labelTrue], 1e-12)
	assert.InDelta(t, 0.8, prior[labelFalse], 1e-12, "no false-labeled subjects: prior is lowCountProb")

	classifiers, err := est.ComputeAll(subjects, false)
	require.NoError(t, err)
	assert.Equal(t, 3, classifiers.Len())

	skills, err := b.classifier("c1").Skills()
	require.NoError(t, err)
	assert.InDelta(t, 0.8148, skills[labelTrue], 1e-4)
	assert.InDelta(t, 44.0/54, skills[labelTrue], 1e-12)

	skills, err = b.classifier("c3").Skills()
	require.NoError(t, err)
	assert.InDelta(t, 35.0/54, skills[labelTrue], 1e-12, "one wrong out of one")

	priors, err := b.classifier("c2").SkillPriors()
	require.NoError(t, err)
	assert.Equal(t, prior, priors)
}

// Property: a classifier without annotations on subjects of a true label
// keeps skill[L] == skillPrior[L] exactly.
func TestProperty_NoEvidenceSkillEqualsPrior(t *testing.T) {
	property := func(nBetaRaw, lowRaw uint16, correct, wrong uint8) bool {
		cfg := domain.EstimatorConfig{
			NBeta:        1 + float64(nBetaRaw%50),
			LowCountProb: float64(lowRaw) / math.MaxUint16,
		}
		est, err := NewSkillEstimator(cfg)
		if err != nil {
			return false
		}

		b := newPopulationBuilder(t)
		// c1 only ever annotates true-labeled subjects, c2 only false-labeled ones.
		for i := 0; i < int(correct%10)+1; i++ {
			b.goldSubject("t"+string(rune('a'+i)), labelTrue, vote{"c1", labelTrue})
		}
		for i := 0; i < int(wrong%10)+1; i++ {
			b.goldSubject("f"+string(rune('a'+i)), labelFalse, vote{"c2", labelFalse})
		}

		if _, err := est.ComputeAll(b.build(), false); err != nil {
			return false
		}
		c1Skills, _ := b.classifier("c1").Skills()
		c1Priors, _ := b.classifier("c1").SkillPriors()
		c2Skills, _ := b.classifier("c2").Skills()
		c2Priors, _ := b.classifier("c2").SkillPriors()
		if _, ok := c1Skills[labelFalse]; !ok {
			return false
		}
		return c1Skills[labelFalse] == c1Priors[labelFalse] &&
			c2Skills[labelTrue] == c2Priors[labelTrue]
	}

	require.NoError(t, quick.Check(property, nil))
}

func TestSkillEstimator_InitMode(t *testing.T) {
	b := newPopulationBuilder(t)
	b.goldSubject("s1", labelTrue, vote{"c1", labelTrue}, vote{"c2", labelFalse})
	subjects := b.build()

	est := newEstimator(t)
	prior, err := est.Prior(subjects, true)
	require.NoError(t, err)
	assert.Equal(t, domain.SkillMap{labelFalse: 0.5, labelTrue: 0.5}, prior)

	skills, err := est.Skills(b.classifier("c1"), subjects, prior, true)
	require.NoError(t, err)
	assert.Equal(t, prior, skills, "init mode echoes the prior")

	_, err = est.ComputeAll(subjects, true)
	require.NoError(t, err)
	got, err := b.classifier("c2").Skills()
	require.NoError(t, err)
	assert.Equal(t, prior, got)
}

func TestSkillEstimator_Skills(t *testing.T) {
	b := newPopulationBuilder(t)
	b.goldSubject("s1", labelTrue, vote{"c1", labelTrue}, vote{"c2", labelTrue})
	b.goldSubject("s2", labelFalse, vote{"c1", labelTrue}, vote{"c2", labelFalse})
	subjects := b.build()

	est := newEstimator(t)
	prior, err := est.Prior(subjects, false)
	require.NoError(t, err)

	skills, err := est.Skills(b.classifier("c1"), subjects, prior, false)
	require.NoError(t, err)
	// True subjects: 2/2 correct overall, c1 1/1. False subjects: 1/2 overall, c1 0/1.
	wantPriorTrue := (5*0.8 + 2) / 7
	wantPriorFalse := (5*0.8 + 1) / 7
	assert.InDelta(t, wantPriorTrue, prior[labelTrue], 1e-12)
	assert.InDelta(t, wantPriorFalse, prior[labelFalse], 1e-12)
	assert.InDelta(t, (5*wantPriorTrue+1)/6, skills[labelTrue], 1e-12)
	assert.InDelta(t, (5*wantPriorFalse+0)/6, skills[labelFalse], 1e-12)

	_, err = est.Skills(nil, subjects, prior, false)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = est.Skills(b.classifier("c1"), nil, prior, false)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSkillEstimator_UnlabeledSubjectsContributeNothing(t *testing.T) {
	b := newPopulationBuilder(t)
	b.subject("s1", vote{"c1", labelTrue}, vote{"c2", labelFalse})
	subjects := b.build()

	prior, err := newEstimator(t).Prior(subjects, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SkillMap{labelFalse: 0.8, labelTrue: 0.8}, prior)
}

func TestSkillEstimator_Cover(t *testing.T) {
	b := newPopulationBuilder(t)
	b.goldSubject("s1", labelTrue, vote{"c1", labelTrue})

	est, err := NewSkillEstimator(domain.DefaultEstimatorConfig(), labelFalse, labelTrue)
	require.NoError(t, err)

	prior, err := est.Prior(b.build(), false)
	require.NoError(t, err)
	assert.Equal(t, []domain.Label{labelFalse, labelTrue}, prior.Labels())
	assert.InDelta(t, 0.8, prior[labelFalse], 1e-12)

	_, err = NewSkillEstimator(domain.DefaultEstimatorConfig(), domain.Label{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewSkillEstimator_InvalidConfig(t *testing.T) {
	_, err := NewSkillEstimator(domain.EstimatorConfig{NBeta: 0, LowCountProb: 0.8})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = newEstimator(t).Prior(nil, false)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCountsShrink(t *testing.T) {
	assert.InDelta(t, 0.3, counts{}.shrink(5, 0.3), 0, "no evidence returns the target exactly")
	assert.InDelta(t, (5*0.5+4)/9, counts{correct: 4, total: 4}.shrink(5, 0.5), 1e-12)
}

package consensus

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-crowd/internal/domain"
)

// batchOf builds a one-subject batch whose annotations use the population's
// classifier instances. Annotation ids are subject/classifier.
func batchOf(t testing.TB, p *Population, subjectID string, votes ...vote) *domain.Subjects {
	t.Helper()
	anns := make([]*domain.Annotation, 0, len(votes))
	for _, v := range votes {
		c, err := p.Classifier(v.classifier)
		require.NoError(t, err)
		a, err := domain.NewLabeledAnnotation(subjectID+"/"+v.classifier, c, v.label)
		require.NoError(t, err)
		anns = append(anns, a)
	}
	s, err := domain.NewSubject(subjectID, anns...)
	require.NoError(t, err)
	batch, err := domain.NewSubjects(s)
	require.NoError(t, err)
	return batch
}

func seedPopulation(t testing.TB) *Population {
	t.Helper()
	p := NewPopulation()
	for _, batch := range []*domain.Subjects{
		batchOf(t, p, "s1", vote{"c1", labelTrue}, vote{"c2", labelTrue}, vote{"c3", labelTrue}),
		batchOf(t, p, "s2", vote{"c1", labelFalse}, vote{"c2", labelFalse}, vote{"c3", labelTrue}),
		batchOf(t, p, "s3", vote{"c1", labelTrue}, vote{"c2", labelTrue}, vote{"c3", labelFalse}),
	} {
		_, err := p.Ingest(batch)
		require.NoError(t, err)
	}
	return p
}

func TestPopulation_IngestAndEstimate(t *testing.T) {
	p := seedPopulation(t)
	assert.Nil(t, p.Latest())

	subjects, annotations := p.Size()
	assert.Equal(t, 3, subjects)
	assert.Equal(t, 9, annotations)

	r, err := p.Estimate(newTestEngine(t), RoundOptions{RoundID: "r1"})
	require.NoError(t, err)
	assert.Same(t, r, p.Latest())
	assertAssessment(t, r, "s1", labelTrue, 0)

	snap := p.Snapshot()
	s2, ok := snap.Get("s2")
	require.True(t, ok)
	l, ok := s2.TrueLabel()
	require.True(t, ok, "inferred label is published")
	assert.Equal(t, labelFalse, l)
	risk, err := s2.Risk()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, risk, 1e-12)

	c1, err := p.Classifier("c1")
	require.NoError(t, err)
	skills, err := c1.Skills()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, skills[labelTrue], 1e-12)

	r2, err := p.Estimate(newTestEngine(t), RoundOptions{RoundID: "r2"})
	require.NoError(t, err)
	assert.False(t, r2.InitMode, "second round uses the published labels")
	assert.Same(t, r2, p.Latest())
}

func TestPopulation_IngestIsIdempotent(t *testing.T) {
	p := seedPopulation(t)
	again := batchOf(t, p, "s1", vote{"c1", labelTrue}, vote{"c2", labelTrue}, vote{"c3", labelTrue})

	stats, err := p.Ingest(again)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeStats{DuplicateAnnotations: 3}, stats)

	_, annotations := p.Size()
	assert.Equal(t, 9, annotations)

	stats, err = p.Ingest(batchOf(t, p, "s1", vote{"c4", labelFalse}))
	require.NoError(t, err)
	assert.Equal(t, domain.MergeStats{AppendedAnnotations: 1}, stats)
}

func TestPopulation_SnapshotIsIndependent(t *testing.T) {
	p := seedPopulation(t)
	before := p.Snapshot()

	_, err := p.Estimate(newTestEngine(t), RoundOptions{})
	require.NoError(t, err)
	_, err = p.Ingest(batchOf(t, p, "s1", vote{"c4", labelTrue}))
	require.NoError(t, err)

	s1, ok := before.Get("s1")
	require.True(t, ok)
	_, ok = s1.TrueLabel()
	assert.False(t, ok, "estimation does not write to earlier snapshots")
	assert.Equal(t, 3, s1.Annotations().Len(), "ingestion does not write to earlier snapshots")
}

func TestPopulation_LaterSubjectsStayUnlabeled(t *testing.T) {
	p := seedPopulation(t)
	_, err := p.Estimate(newTestEngine(t), RoundOptions{})
	require.NoError(t, err)

	_, err = p.Ingest(batchOf(t, p, "s9", vote{"c1", labelTrue}))
	require.NoError(t, err)

	snap := p.Snapshot()
	s9, ok := snap.Get("s9")
	require.True(t, ok)
	_, ok = s9.TrueLabel()
	assert.False(t, ok)
	s1, ok := snap.Get("s1")
	require.True(t, ok)
	l, ok := s1.TrueLabel()
	require.True(t, ok)
	assert.Equal(t, labelTrue, l)
}

func TestPopulation_Errors(t *testing.T) {
	p := NewPopulation()

	_, err := p.Ingest(nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = p.Estimate(nil, RoundOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = p.Classifier("")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestPopulation_RejectedBatchLeavesPopulationUnchanged(t *testing.T) {
	p := seedPopulation(t)
	subjects, annotations := p.Size()

	stranger, err := domain.NewClassifier("c9")
	require.NoError(t, err)
	fresh, err := domain.NewLabeledAnnotation("s9/c9", stranger, labelTrue)
	require.NoError(t, err)
	counted, err := domain.NewLabeledAnnotation("s1/c9", stranger, domain.IntLabel(3))
	require.NoError(t, err)
	s9, err := domain.NewSubject("s9", fresh)
	require.NoError(t, err)
	s1, err := domain.NewSubject("s1", counted)
	require.NoError(t, err)
	batch, err := domain.NewSubjects(s9, s1)
	require.NoError(t, err)

	_, err = p.Ingest(batch)
	require.ErrorIs(t, err, domain.ErrLabelDomainMismatch)

	gotSubjects, gotAnnotations := p.Size()
	assert.Equal(t, subjects, gotSubjects)
	assert.Equal(t, annotations, gotAnnotations)

	c9, err := p.Classifier("c9")
	require.NoError(t, err)
	assert.NotSame(t, stranger, c9, "classifiers of a rejected batch are not registered")
}

func TestPopulation_ConcurrentIngestAndEstimate(t *testing.T) {
	p := seedPopulation(t)
	engine := newTestEngine(t)

	const (
		writers   = 4
		perWriter = 25
		rounds    = 5
	)

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter+rounds)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("w%d-s%d", w, i)
				batch := batchOf(t, p, id, vote{"c1", domain.BoolLabel(i%2 == 0)}, vote{"c2", labelTrue})
				if _, err := p.Ingest(batch); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := p.Estimate(engine, RoundOptions{}); err != nil {
				errs <- err
			}
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	subjects, annotations := p.Size()
	assert.Equal(t, 3+writers*perWriter, subjects)
	assert.Equal(t, 9+2*writers*perWriter, annotations)
	require.NotNil(t, p.Latest())
}

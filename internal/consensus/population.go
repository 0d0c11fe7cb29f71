package consensus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-crowd/internal/domain"
)

// Population is the known, ever-growing subject population shared by
// concurrent ingestion and estimation.
//
// Estimate freezes a snapshot under the lock, runs the engine on the
// snapshot without holding the lock, then publishes the result and the
// snapshot's computed labels and skills in one step. Ingestion during an
// in-flight round never touches the snapshot being read.
type Population struct {
	mu          sync.Mutex
	subjects    *domain.Subjects
	classifiers *domain.Classifiers
	latest      atomic.Pointer[domain.RoundResult]

	// estimating serializes rounds so results publish in order.
	estimating sync.Mutex
}

// NewPopulation returns an empty population.
func NewPopulation() *Population {
	return &Population{
		subjects:    &domain.Subjects{},
		classifiers: &domain.Classifiers{},
	}
}

// Classifier returns the population's classifier for id, creating it on
// first sight. Batches should be built with these instances so every
// annotation of a classifier references the same value.
func (p *Population) Classifier(id string) (*domain.Classifier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.classifiers.GetOrCreate(id)
}

// Ingest merges a batch of subjects into the population.
func (p *Population) Ingest(batch *domain.Subjects) (domain.MergeStats, error) {
	if batch == nil {
		return domain.MergeStats{}, fmt.Errorf("%w: nil batch", domain.ErrInvalidArgument)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	stats, err := p.subjects.Merge(batch)
	if err != nil {
		return stats, err
	}
	for _, c := range batch.Classifiers().Items() {
		p.classifiers.Append(c)
	}
	return stats, nil
}

// Size returns the number of known subjects and annotations.
func (p *Population) Size() (subjects, annotations int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subjects.Len(), p.subjects.AnnotationCount()
}

// Snapshot returns a deep copy of the current population.
func (p *Population) Snapshot() *domain.Subjects {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subjects.Clone()
}

// Estimate runs one round over a snapshot and publishes its result.
func (p *Population) Estimate(engine *Engine, opts RoundOptions) (*domain.RoundResult, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil engine", domain.ErrInvalidArgument)
	}
	p.estimating.Lock()
	defer p.estimating.Unlock()

	snapshot := p.Snapshot()
	result, err := engine.Run(snapshot, opts)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.publish(snapshot)
	p.latest.Store(result)
	p.mu.Unlock()
	return result, nil
}

// Latest returns the most recently published round result, nil before the first round.
func (p *Population) Latest() *domain.RoundResult { return p.latest.Load() }

// publish copies the computed state of the snapshot back onto the live
// population. Subjects ingested after the snapshot was taken are untouched.
// Callers hold p.mu.
func (p *Population) publish(snapshot *domain.Subjects) {
	for _, s := range snapshot.Items() {
		live, ok := p.subjects.Get(s.ID())
		if !ok {
			continue
		}
		if l, ok := s.TrueLabel(); ok && s.TrueLabelSource() == domain.TrueLabelInferred {
			live.SetInferredLabel(l)
		}
		if r, err := s.Risk(); err == nil {
			live.SetRisk(r)
		}
	}
	for _, c := range snapshot.Classifiers().Items() {
		live, ok := p.classifiers.Get(c.ID())
		if !ok {
			continue
		}
		if m, err := c.SkillPriors(); err == nil {
			_ = live.SetSkillPriors(m) // validated when computed
		}
		if m, err := c.Skills(); err == nil {
			_ = live.SetSkills(m)
		}
	}
}

package domain

import (
	"fmt"
	"maps"
	"slices"
)

// SkillMap maps a true label to the probability that a classifier assigns
// that label when it is the true label.
type SkillMap map[Label]float64

// Labels returns the keys of the map in ascending label order.
func (m SkillMap) Labels() []Label {
	labels := slices.Collect(maps.Keys(m))
	slices.SortFunc(labels, Label.Compare)
	return labels
}

// Clone returns a copy of the map.
func (m SkillMap) Clone() SkillMap {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Validate checks every probability lies in [0, 1].
func (m SkillMap) Validate() error {
	for _, l := range m.Labels() {
		if err := checkProbability("skill["+l.String()+"]", m[l]); err != nil {
			return err
		}
	}
	return nil
}

// Classifier is a labeling agent, human or automated. Its skill and skill
// prior are computed on demand from the full annotation history and must not
// be read before they have been computed.
type Classifier struct {
	id          string
	skills      Lazy[SkillMap]
	skillPriors Lazy[SkillMap]
}

// NewClassifier returns a classifier with no computed state.
func NewClassifier(id string) (*Classifier, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty classifier id", ErrInvalidArgument)
	}
	return &Classifier{id: id}, nil
}

// ID returns the classifier identifier.
func (c *Classifier) ID() string { return c.id }

// Equal reports whether both classifiers share an identifier.
func (c *Classifier) Equal(other *Classifier) bool {
	return c != nil && other != nil && c.id == other.id
}

// Skills returns the computed skill map or ErrNotComputed.
func (c *Classifier) Skills() (SkillMap, error) {
	return c.skills.Get("skills of classifier " + c.id)
}

// SkillPriors returns the computed skill prior map or ErrNotComputed.
func (c *Classifier) SkillPriors() (SkillMap, error) {
	return c.skillPriors.Get("skill priors of classifier " + c.id)
}

// HasSkills reports whether the skill map has been computed.
func (c *Classifier) HasSkills() bool { return c.skills.Computed() }

// SetSkills stores a computed skill map after validating it.
func (c *Classifier) SetSkills(m SkillMap) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("classifier %q: %w", c.id, err)
	}
	c.skills.Set(m.Clone())
	return nil
}

// SetSkillPriors stores a computed skill prior map after validating it.
func (c *Classifier) SetSkillPriors(m SkillMap) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("classifier %q: %w", c.id, err)
	}
	c.skillPriors.Set(m.Clone())
	return nil
}

// clone copies the classifier including any computed state.
func (c *Classifier) clone() *Classifier {
	out := &Classifier{id: c.id}
	if m, err := c.Skills(); err == nil {
		out.skills.Set(m.Clone())
	}
	if m, err := c.SkillPriors(); err == nil {
		out.skillPriors.Set(m.Clone())
	}
	return out
}

// Classifiers is an ordered collection of classifiers, duplicate-free by identifier.
type Classifiers struct {
	items []*Classifier
	byID  map[string]*Classifier
}

// NewClassifiers returns a collection holding the given classifiers.
// Later duplicates of an identifier are dropped.
func NewClassifiers(items ...*Classifier) *Classifiers {
	c := &Classifiers{}
	for _, cl := range items {
		c.Append(cl)
	}
	return c
}

// Append adds the classifier and reports whether it was new.
func (c *Classifiers) Append(cl *Classifier) bool {
	if cl == nil {
		return false
	}
	if c.byID == nil {
		c.byID = make(map[string]*Classifier)
	}
	if _, ok := c.byID[cl.id]; ok {
		return false
	}
	c.byID[cl.id] = cl
	c.items = append(c.items, cl)
	return true
}

// Get returns the classifier with the identifier.
func (c *Classifiers) Get(id string) (*Classifier, bool) {
	if c == nil {
		return nil, false
	}
	cl, ok := c.byID[id]
	return cl, ok
}

// GetOrCreate returns the known classifier for id, creating it on first sight.
func (c *Classifiers) GetOrCreate(id string) (*Classifier, error) {
	if cl, ok := c.Get(id); ok {
		return cl, nil
	}
	cl, err := NewClassifier(id)
	if err != nil {
		return nil, err
	}
	c.Append(cl)
	return cl, nil
}

// Len returns the number of classifiers.
func (c *Classifiers) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items returns the classifiers in insertion order. The slice must not be modified.
func (c *Classifiers) Items() []*Classifier {
	if c == nil {
		return nil
	}
	return c.items
}

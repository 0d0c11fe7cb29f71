// Package domain provides the core types of crowd-consensus estimation:
// subjects, their annotations and the classifiers that produced them.
package domain

import (
	"fmt"
	"slices"
)

// TrueLabelSource records where a subject's true label came from.
type TrueLabelSource string

const (
	// TrueLabelInferred marks a consensus estimate produced by inference.
	TrueLabelInferred TrueLabelSource = "inferred"

	// TrueLabelGroundTruth marks a label supplied from outside (gold standard).
	TrueLabelGroundTruth TrueLabelSource = "ground_truth"
)

// Subject is an item being labeled. It owns its annotation history, which
// only ever grows.
type Subject struct {
	id          string
	annotations *Annotations
	trueLabel   Optional[Label]
	source      TrueLabelSource
	risk        Lazy[float64]

	// Difficulty is reserved for subject-difficulty modeling and is not read
	// by estimation.
	Difficulty Optional[float64]
}

// NewSubject returns a subject holding the given annotations.
func NewSubject(id string, annotations ...*Annotation) (*Subject, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty subject id", ErrInvalidArgument)
	}
	coll, err := NewAnnotations(annotations...)
	if err != nil {
		return nil, fmt.Errorf("subject %q: %w", id, err)
	}
	return &Subject{id: id, annotations: coll}, nil
}

// ID returns the subject identifier.
func (s *Subject) ID() string { return s.id }

// Annotations returns the subject's annotation history.
func (s *Subject) Annotations() *Annotations { return s.annotations }

// AddAnnotation appends an annotation and reports whether it was new.
func (s *Subject) AddAnnotation(a *Annotation) (bool, error) {
	ok, err := s.annotations.Append(a)
	if err != nil {
		return false, fmt.Errorf("subject %q: %w", s.id, err)
	}
	return ok, nil
}

// TrueLabel returns the current best-estimate or ground-truth label.
func (s *Subject) TrueLabel() (Label, bool) { return s.trueLabel.Get() }

// TrueLabelSource returns where the current true label came from, empty when unset.
func (s *Subject) TrueLabelSource() TrueLabelSource { return s.source }

// HasGroundTruth reports whether the true label was supplied externally.
func (s *Subject) HasGroundTruth() bool { return s.source == TrueLabelGroundTruth }

// SetGroundTruth supplies a known true label. Inference never overwrites it.
func (s *Subject) SetGroundTruth(l Label) error {
	if l.IsZero() {
		return fmt.Errorf("%w: subject %q ground truth has no label", ErrInvalidArgument, s.id)
	}
	if k := s.annotations.Kind(); k != "" && k != l.Kind() {
		return fmt.Errorf("%w: subject %q ground truth is %s, annotations are %s",
			ErrLabelDomainMismatch, s.id, l.Kind(), k)
	}
	s.trueLabel = Some(l)
	s.source = TrueLabelGroundTruth
	return nil
}

// SetInferredLabel stores a consensus estimate. It reports false and leaves
// the subject unchanged when the subject carries ground truth.
func (s *Subject) SetInferredLabel(l Label) bool {
	if s.HasGroundTruth() {
		return false
	}
	s.trueLabel = Some(l)
	s.source = TrueLabelInferred
	return true
}

// Risk returns the computed risk or ErrNotComputed.
func (s *Subject) Risk() (float64, error) { return s.risk.Get("risk of subject " + s.id) }

// SetRisk stores the computed risk.
func (s *Subject) SetRisk(r float64) { s.risk.Set(r) }

// SubjectFilter selects subjects. Absent fields place no constraint; a
// present TrueLabel never matches a subject without a true label.
type SubjectFilter struct {
	ID        Optional[string]
	TrueLabel Optional[Label]
}

func (f SubjectFilter) matches(s *Subject) bool {
	if !f.ID.Matches(s.id) {
		return false
	}
	if !f.TrueLabel.IsSet() {
		return true
	}
	l, ok := s.TrueLabel()
	return ok && f.TrueLabel.Matches(l)
}

// MergeStats summarizes a Merge.
type MergeStats struct {
	NewSubjects          int `json:"new_subjects"`
	AppendedAnnotations  int `json:"appended_annotations"`
	DuplicateAnnotations int `json:"duplicate_annotations"`
}

// Subjects is an ordered collection of subjects, duplicate-free by identifier.
type Subjects struct {
	items []*Subject
	byID  map[string]*Subject
}

// NewSubjects returns a collection holding the given subjects. Subjects
// sharing an identifier are merged.
func NewSubjects(items ...*Subject) (*Subjects, error) {
	c := &Subjects{}
	for _, s := range items {
		if _, err := c.mergeOne(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append adds a subject with an unknown identifier and reports whether it was added.
func (c *Subjects) Append(s *Subject) bool {
	if s == nil {
		return false
	}
	if c.byID == nil {
		c.byID = make(map[string]*Subject)
	}
	if _, ok := c.byID[s.id]; ok {
		return false
	}
	c.byID[s.id] = s
	c.items = append(c.items, s)
	return true
}

// Get returns the subject with the identifier.
func (c *Subjects) Get(id string) (*Subject, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.byID[id]
	return s, ok
}

// Len returns the number of subjects.
func (c *Subjects) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items returns the subjects in insertion order. The slice must not be modified.
func (c *Subjects) Items() []*Subject {
	if c == nil {
		return nil
	}
	return c.items
}

// Merge consolidates a batch into the collection. Known subjects get the
// incoming annotations appended to their history; unknown subjects are added.
// Annotations already known by identifier are not counted twice, so merging
// the same batch again changes nothing. A batch that would mix label kinds is
// rejected before anything is merged.
func (c *Subjects) Merge(batch *Subjects) (MergeStats, error) {
	if err := c.checkMerge(batch); err != nil {
		return MergeStats{}, err
	}
	var stats MergeStats
	for _, in := range batch.Items() {
		st, err := c.mergeOne(in)
		stats.NewSubjects += st.NewSubjects
		stats.AppendedAnnotations += st.AppendedAnnotations
		stats.DuplicateAnnotations += st.DuplicateAnnotations
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// checkMerge reports whether Merge would accept batch without changing c.
func (c *Subjects) checkMerge(batch *Subjects) error {
	for _, in := range batch.Items() {
		if in == nil || in.annotations == nil {
			return fmt.Errorf("%w: nil subject", ErrInvalidArgument)
		}
		kind := in.annotations.Kind()
		if known, ok := c.Get(in.id); ok {
			if k := known.annotations.Kind(); k != "" {
				if kind != "" && kind != k {
					return fmt.Errorf("%w: subject %q has %s annotations, batch carries %s",
						ErrLabelDomainMismatch, in.id, k, kind)
				}
				kind = k
			}
			if known.HasGroundTruth() {
				continue
			}
		}
		if l, ok := in.TrueLabel(); ok && in.HasGroundTruth() && kind != "" && l.Kind() != kind {
			return fmt.Errorf("%w: subject %q ground truth is %s, annotations are %s",
				ErrLabelDomainMismatch, in.id, l.Kind(), kind)
		}
	}
	return nil
}

func (c *Subjects) mergeOne(in *Subject) (MergeStats, error) {
	var stats MergeStats
	if in == nil || in.annotations == nil {
		return stats, fmt.Errorf("%w: nil subject", ErrInvalidArgument)
	}
	known, ok := c.Get(in.id)
	if !ok {
		// Copy so later merges into the population never alias the batch.
		s, err := NewSubject(in.id, in.annotations.Items()...)
		if err != nil {
			return stats, err
		}
		s.trueLabel = in.trueLabel
		s.source = in.source
		s.risk = in.risk
		s.Difficulty = in.Difficulty
		c.Append(s)
		stats.NewSubjects = 1
		stats.AppendedAnnotations = s.annotations.Len()
		stats.DuplicateAnnotations = in.annotations.Len() - s.annotations.Len()
		return stats, nil
	}
	added, err := known.annotations.Extend(in.annotations)
	if err != nil {
		return stats, fmt.Errorf("subject %q: %w", in.id, err)
	}
	stats.AppendedAnnotations = added
	stats.DuplicateAnnotations = in.annotations.Len() - added
	if l, ok := in.TrueLabel(); ok && in.HasGroundTruth() && !known.HasGroundTruth() {
		if err := known.SetGroundTruth(l); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Subset returns the subjects that satisfy the filter. The returned
// collection shares subject pointers with c.
func (c *Subjects) Subset(f SubjectFilter) *Subjects {
	out := &Subjects{}
	for _, s := range c.Items() {
		if f.matches(s) {
			out.Append(s)
		}
	}
	return out
}

// UniqueLabels returns the distinct annotation labels across all subjects in
// ascending label order.
func (c *Subjects) UniqueLabels() []Label {
	seen := make(map[Label]struct{})
	var labels []Label
	for _, s := range c.Items() {
		for _, a := range s.annotations.Items() {
			if _, ok := seen[a.label]; ok {
				continue
			}
			seen[a.label] = struct{}{}
			labels = append(labels, a.label)
		}
	}
	slices.SortFunc(labels, Label.Compare)
	return labels
}

// Classifiers returns the distinct classifiers referenced by any annotation,
// in order of first appearance.
func (c *Subjects) Classifiers() *Classifiers {
	out := &Classifiers{}
	for _, s := range c.Items() {
		for _, a := range s.annotations.Items() {
			out.Append(a.classifier)
		}
	}
	return out
}

// HasTrueLabels reports whether any subject carries a true label.
func (c *Subjects) HasTrueLabels() bool {
	for _, s := range c.Items() {
		if s.trueLabel.IsSet() {
			return true
		}
	}
	return false
}

// AnnotationCount returns the total number of annotations across subjects.
func (c *Subjects) AnnotationCount() int {
	n := 0
	for _, s := range c.Items() {
		n += s.annotations.Len()
	}
	return n
}

// Clone returns a deep snapshot of the collection. Annotations in the
// snapshot reference cloned classifiers, so estimation on the snapshot never
// writes to the originals. Computed classifier and subject state is copied.
func (c *Subjects) Clone() *Subjects {
	classifiers := make(map[string]*Classifier)
	out := &Subjects{}
	for _, s := range c.Items() {
		cp := &Subject{
			id:          s.id,
			annotations: &Annotations{kind: s.annotations.kind},
			trueLabel:   s.trueLabel,
			source:      s.source,
			risk:        s.risk,
			Difficulty:  s.Difficulty,
		}
		for _, a := range s.annotations.Items() {
			cl, ok := classifiers[a.classifier.id]
			if !ok {
				cl = a.classifier.clone()
				classifiers[cl.id] = cl
			}
			_, _ = cp.annotations.Append(&Annotation{id: a.id, classifier: cl, label: a.label})
		}
		out.Append(cp)
	}
	return out
}

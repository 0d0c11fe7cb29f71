package domain

import (
	"fmt"
	"slices"
)

// LabelMapper resolves a task-scoped raw value into a label.
// Implementations must be pure: the same raw value always maps to the same label.
type LabelMapper interface {
	MapValue(raw string) (Label, error)
}

// BinaryValueMapping maps the raw values of a yes/no task onto binary labels.
type BinaryValueMapping struct {
	// TrueValue is the raw value meaning "true" (e.g. "1").
	TrueValue string `json:"true_value" yaml:"true_value" validate:"required"`

	// FalseValue is the raw value meaning "false" (e.g. "0").
	FalseValue string `json:"false_value" yaml:"false_value" validate:"required,nefield=TrueValue"`
}

// Validate checks that both raw values are set and distinct.
func (m BinaryValueMapping) Validate() error { return validate.Struct(m) }

// MapValue returns BoolLabel(true) or BoolLabel(false) for the configured raw
// values and ErrUnmappedValue for anything else.
func (m BinaryValueMapping) MapValue(raw string) (Label, error) {
	switch raw {
	case m.TrueValue:
		return BoolLabel(true), nil
	case m.FalseValue:
		return BoolLabel(false), nil
	default:
		return Label{}, fmt.Errorf("%w: %q", ErrUnmappedValue, raw)
	}
}

// CategoricalValueMapping maps raw values onto category names.
type CategoricalValueMapping struct {
	Values map[string]string `json:"values" yaml:"values" validate:"required,min=1"`
}

// MapValue returns the category label for raw or ErrUnmappedValue.
func (m CategoricalValueMapping) MapValue(raw string) (Label, error) {
	name, ok := m.Values[raw]
	if !ok {
		return Label{}, fmt.Errorf("%w: %q", ErrUnmappedValue, raw)
	}
	return CategoryLabel(name), nil
}

// Annotation is one classifier's judgment about one subject. The subject is
// implied by the collection the annotation lives in. The label is fixed at
// construction.
type Annotation struct {
	id         string
	classifier *Classifier
	label      Label
}

// NewAnnotation extracts the label of raw through mapper and returns the annotation.
func NewAnnotation(id string, classifier *Classifier, raw string, mapper LabelMapper) (*Annotation, error) {
	if mapper == nil {
		return nil, fmt.Errorf("%w: nil label mapper for annotation %q", ErrInvalidArgument, id)
	}
	label, err := mapper.MapValue(raw)
	if err != nil {
		return nil, fmt.Errorf("annotation %q: %w", id, err)
	}
	return NewLabeledAnnotation(id, classifier, label)
}

// NewLabeledAnnotation returns an annotation whose label is already resolved.
func NewLabeledAnnotation(id string, classifier *Classifier, label Label) (*Annotation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty annotation id", ErrInvalidArgument)
	}
	if classifier == nil {
		return nil, fmt.Errorf("%w: annotation %q has no classifier", ErrInvalidArgument, id)
	}
	if label.IsZero() {
		return nil, fmt.Errorf("%w: annotation %q has no label", ErrInvalidArgument, id)
	}
	return &Annotation{id: id, classifier: classifier, label: label}, nil
}

// ID returns the annotation identifier.
func (a *Annotation) ID() string { return a.id }

// Classifier returns the classifier that produced the annotation.
func (a *Annotation) Classifier() *Classifier { return a.classifier }

// Label returns the emitted label.
func (a *Annotation) Label() Label { return a.label }

// AnnotationFilter selects annotations. Absent fields place no constraint.
type AnnotationFilter struct {
	ClassifierID Optional[string]
	Label        Optional[Label]
}

// Annotations is an ordered collection of annotations, duplicate-free by
// annotation identifier and restricted to a single label kind.
type Annotations struct {
	items []*Annotation
	ids   map[string]struct{}
	kind  LabelKind
}

// NewAnnotations returns a collection holding the given annotations.
// Duplicates by identifier are dropped.
func NewAnnotations(items ...*Annotation) (*Annotations, error) {
	c := &Annotations{}
	for _, a := range items {
		if _, err := c.Append(a); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append adds the annotation and reports whether it was new. Re-appending a
// known identifier is a no-op.
func (c *Annotations) Append(a *Annotation) (bool, error) {
	if a == nil {
		return false, fmt.Errorf("%w: nil annotation", ErrInvalidArgument)
	}
	if c.kind != "" && a.label.Kind() != c.kind {
		return false, fmt.Errorf("%w: annotation %q is %s, collection holds %s",
			ErrLabelDomainMismatch, a.id, a.label.Kind(), c.kind)
	}
	if c.ids == nil {
		c.ids = make(map[string]struct{})
	}
	if _, dup := c.ids[a.id]; dup {
		return false, nil
	}
	c.ids[a.id] = struct{}{}
	c.items = append(c.items, a)
	c.kind = a.label.Kind()
	return true, nil
}

// Extend appends every annotation of other and returns how many were new.
func (c *Annotations) Extend(other *Annotations) (int, error) {
	if other == nil {
		return 0, nil
	}
	added := 0
	for _, a := range other.items {
		ok, err := c.Append(a)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Len returns the number of annotations.
func (c *Annotations) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Contains reports whether an annotation with the identifier is present.
func (c *Annotations) Contains(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.ids[id]
	return ok
}

// Kind returns the label kind of the collection, empty when it has no annotations.
func (c *Annotations) Kind() LabelKind { return c.kind }

// Items returns the annotations in insertion order. The slice must not be modified.
func (c *Annotations) Items() []*Annotation {
	if c == nil {
		return nil
	}
	return c.items
}

// Subset returns the annotations that satisfy the filter.
func (c *Annotations) Subset(f AnnotationFilter) *Annotations {
	out := &Annotations{}
	for _, a := range c.Items() {
		if f.ClassifierID.Matches(a.classifier.ID()) && f.Label.Matches(a.label) {
			_, _ = out.Append(a) // same kind and unique ids by construction
		}
	}
	return out
}

// UniqueLabels returns the distinct labels in ascending label order.
func (c *Annotations) UniqueLabels() []Label {
	seen := make(map[Label]struct{})
	var labels []Label
	for _, a := range c.Items() {
		if _, ok := seen[a.label]; ok {
			continue
		}
		seen[a.label] = struct{}{}
		labels = append(labels, a.label)
	}
	slices.SortFunc(labels, Label.Compare)
	return labels
}

// CountLabel returns how many annotations carry the label.
func (c *Annotations) CountLabel(l Label) int {
	n := 0
	for _, a := range c.Items() {
		if a.label == l {
			n++
		}
	}
	return n
}

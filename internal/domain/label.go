// Package domain label provides the label value type and the closed set of
// label domains that consensus estimation operates over.
//
// Label Architecture:
//   - Label is a small comparable value usable directly as a map key
//   - A kind tag keeps labels from different domains from ever comparing equal
//   - Labels are totally ordered so that label supports iterate deterministically
//   - Domains are a sealed set of variants resolved at construction time
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// LabelKind identifies which label domain a label value belongs to.
type LabelKind string

const (
	// LabelKindBool is the binary true/false label domain.
	LabelKindBool LabelKind = "bool"

	// LabelKindInt is a bounded integer label domain (ordered classes).
	LabelKindInt LabelKind = "int"

	// LabelKindCategorical is an unordered set of named categories.
	LabelKindCategorical LabelKind = "categorical"

	// LabelKindReal is a real-valued label domain.
	LabelKindReal LabelKind = "real"
)

// String returns the string representation of the label kind.
func (k LabelKind) String() string { return string(k) }

// IsValidLabelKind reports whether the kind is one of the supported label kinds.
func IsValidLabelKind(k LabelKind) bool {
	switch k {
	case LabelKindBool, LabelKindInt, LabelKindCategorical, LabelKindReal:
		return true
	default:
		return false
	}
}

// kindRank fixes the ordering between kinds so Less is total.
func kindRank(k LabelKind) int {
	switch k {
	case LabelKindBool:
		return 1
	case LabelKindInt:
		return 2
	case LabelKindCategorical:
		return 3
	case LabelKindReal:
		return 4
	default:
		return 0
	}
}

// Label is an opaque, hashable and comparable label value.
// The zero Label has no kind and is not a member of any domain.
type Label struct {
	kind LabelKind
	b    bool
	i    int64
	s    string
	f    float64
}

// BoolLabel returns the label for a binary judgment.
func BoolLabel(v bool) Label { return Label{kind: LabelKindBool, b: v} }

// IntLabel returns the label for an ordered integer class.
func IntLabel(v int64) Label { return Label{kind: LabelKindInt, i: v} }

// CategoryLabel returns the label for a named category.
func CategoryLabel(name string) Label { return Label{kind: LabelKindCategorical, s: name} }

// RealLabel returns a real-valued label. NaN is rejected because it never
// compares equal to itself and would break map lookups.
func RealLabel(v float64) (Label, error) {
	if math.IsNaN(v) {
		return Label{}, fmt.Errorf("%w: real label cannot be NaN", ErrInvalidArgument)
	}
	return Label{kind: LabelKindReal, f: v}, nil
}

// Kind returns the label's domain kind.
func (l Label) Kind() LabelKind { return l.kind }

// IsZero reports whether the label was never assigned.
func (l Label) IsZero() bool { return l.kind == "" }

// Bool returns the value of a binary label and whether the label is binary.
func (l Label) Bool() (bool, bool) { return l.b, l.kind == LabelKindBool }

// Int returns the value of an integer label and whether the label is an integer.
func (l Label) Int() (int64, bool) { return l.i, l.kind == LabelKindInt }

// Category returns the category name and whether the label is categorical.
func (l Label) Category() (string, bool) { return l.s, l.kind == LabelKindCategorical }

// Real returns the value of a real label and whether the label is real-valued.
func (l Label) Real() (float64, bool) { return l.f, l.kind == LabelKindReal }

// Less orders labels by kind first and value second. Within the binary
// domain false sorts before true.
func (l Label) Less(other Label) bool {
	if l.kind != other.kind {
		return kindRank(l.kind) < kindRank(other.kind)
	}
	switch l.kind {
	case LabelKindBool:
		return !l.b && other.b
	case LabelKindInt:
		return l.i < other.i
	case LabelKindCategorical:
		return l.s < other.s
	case LabelKindReal:
		return l.f < other.f
	default:
		return false
	}
}

// Compare returns -1, 0 or +1 following Less. It is suitable for slices.SortFunc.
func (l Label) Compare(other Label) int {
	switch {
	case l == other:
		return 0
	case l.Less(other):
		return -1
	default:
		return 1
	}
}

// String renders the label value without its kind.
func (l Label) String() string {
	switch l.kind {
	case LabelKindBool:
		return strconv.FormatBool(l.b)
	case LabelKindInt:
		return strconv.FormatInt(l.i, 10)
	case LabelKindCategorical:
		return l.s
	case LabelKindReal:
		return strconv.FormatFloat(l.f, 'g', -1, 64)
	default:
		return "<unset>"
	}
}

// labelJSON is the wire shape of a Label.
type labelJSON struct {
	Kind  LabelKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the label as {"kind": ..., "value": ...}.
func (l Label) MarshalJSON() ([]byte, error) {
	var value any
	switch l.kind {
	case LabelKindBool:
		value = l.b
	case LabelKindInt:
		value = l.i
	case LabelKindCategorical:
		value = l.s
	case LabelKindReal:
		value = l.f
	default:
		return []byte("null"), nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(labelJSON{Kind: l.kind, Value: raw})
}

// UnmarshalJSON decodes a label produced by MarshalJSON.
func (l *Label) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Label{}
		return nil
	}
	var wire labelJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case LabelKindBool:
		var v bool
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return err
		}
		*l = BoolLabel(v)
	case LabelKindInt:
		var v int64
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return err
		}
		*l = IntLabel(v)
	case LabelKindCategorical:
		var v string
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return err
		}
		*l = CategoryLabel(v)
	case LabelKindReal:
		var v float64
		if err := json.Unmarshal(wire.Value, &v); err != nil {
			return err
		}
		rl, err := RealLabel(v)
		if err != nil {
			return err
		}
		*l = rl
	default:
		return fmt.Errorf("%w: unknown label kind %q", ErrInvalidArgument, wire.Kind)
	}
	return nil
}

// UnboundedCardinality is reported by domains with infinitely many labels.
const UnboundedCardinality = -1

// LabelDomain describes the set of valid labels for a task.
// The set of implementations is closed; new domains are added here.
type LabelDomain interface {
	// Kind returns the label kind every member of the domain carries.
	Kind() LabelKind

	// Contains reports whether the label is a member of the domain.
	Contains(l Label) bool

	// Cardinality returns the number of labels in the domain. Domains whose
	// size depends on the data use the observed labels; unbounded domains
	// return UnboundedCardinality.
	Cardinality(observed []Label) int

	sealed()
}

// BoolDomain is the binary label domain {false, true}.
type BoolDomain struct{}

func (BoolDomain) Kind() LabelKind { return LabelKindBool }

func (BoolDomain) Contains(l Label) bool { return l.kind == LabelKindBool }

func (BoolDomain) Cardinality([]Label) int { return 2 }

func (BoolDomain) sealed() {}

// IntDomain is the bounded integer domain [Min, Max].
type IntDomain struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

func (IntDomain) Kind() LabelKind { return LabelKindInt }

func (d IntDomain) Contains(l Label) bool {
	return l.kind == LabelKindInt && l.i >= d.Min && l.i <= d.Max
}

func (d IntDomain) Cardinality([]Label) int {
	if d.Max < d.Min {
		return 0
	}
	return int(d.Max-d.Min) + 1
}

func (IntDomain) sealed() {}

// CategoricalDomain is an unordered set of categories. With no configured
// categories any categorical label is accepted and the cardinality is the
// number of distinct observed categories.
type CategoricalDomain struct {
	Categories []string `json:"categories,omitempty" yaml:"categories"`
}

func (CategoricalDomain) Kind() LabelKind { return LabelKindCategorical }

func (d CategoricalDomain) Contains(l Label) bool {
	if l.kind != LabelKindCategorical {
		return false
	}
	if len(d.Categories) == 0 {
		return true
	}
	for _, c := range d.Categories {
		if c == l.s {
			return true
		}
	}
	return false
}

func (d CategoricalDomain) Cardinality(observed []Label) int {
	if len(d.Categories) > 0 {
		return len(d.Categories)
	}
	seen := make(map[Label]struct{}, len(observed))
	for _, l := range observed {
		if l.kind == LabelKindCategorical {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}

func (CategoricalDomain) sealed() {}

// RealDomain is the real-valued label domain.
type RealDomain struct{}

func (RealDomain) Kind() LabelKind { return LabelKindReal }

func (RealDomain) Contains(l Label) bool { return l.kind == LabelKindReal }

func (RealDomain) Cardinality([]Label) int { return UnboundedCardinality }

func (RealDomain) sealed() {}

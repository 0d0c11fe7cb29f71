package domain

import "fmt"

// Optional holds a value that may be absent. The zero Optional is absent.
// As a filter, an absent Optional places no constraint on the candidate.
type Optional[T comparable] struct {
	value T
	set   bool
}

// Some returns an Optional holding v.
func Some[T comparable](v T) Optional[T] { return Optional[T]{value: v, set: true} }

// None returns an absent Optional.
func None[T comparable]() Optional[T] { return Optional[T]{} }

// Get returns the held value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.set }

// IsSet reports whether a value is present.
func (o Optional[T]) IsSet() bool { return o.set }

// Matches reports whether candidate satisfies the constraint: an absent
// Optional matches everything, a present one matches only an equal value.
func (o Optional[T]) Matches(candidate T) bool {
	return !o.set || o.value == candidate
}

// Lazy holds state that is computed on demand. Reading it before it has been
// computed is an error rather than a silent default.
type Lazy[T any] struct {
	value    T
	computed bool
}

// Set stores a computed value.
func (l *Lazy[T]) Set(v T) {
	l.value = v
	l.computed = true
}

// Reset returns the state to "not yet computed".
func (l *Lazy[T]) Reset() {
	var zero T
	l.value = zero
	l.computed = false
}

// Computed reports whether Set has been called since the last Reset.
func (l *Lazy[T]) Computed() bool { return l.computed }

// Get returns the computed value, or ErrNotComputed naming the field.
func (l *Lazy[T]) Get(field string) (T, error) {
	if !l.computed {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrNotComputed, field)
	}
	return l.value, nil
}

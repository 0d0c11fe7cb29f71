package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument indicates a precondition violation by the caller, such as
// a nil collection where one is required.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNotComputed indicates lazily computed state was read before it was computed.
var ErrNotComputed = errors.New("value has not been computed")

// ErrLabelOutOfDomain indicates a label outside the valid label set of a
// model. It is an ErrInvalidArgument.
var ErrLabelOutOfDomain = fmt.Errorf("%w: label outside valid label set", ErrInvalidArgument)

// ErrLabelDomainMismatch indicates annotations of different label kinds were
// mixed in one collection.
var ErrLabelDomainMismatch = errors.New("label domain mismatch")

// ErrInvalidProbability indicates a probability outside [0, 1].
var ErrInvalidProbability = errors.New("probability must be within [0, 1]")

// ErrZeroPosteriorMass indicates every candidate label has zero posterior
// probability, i.e. the evidence is contradictory.
var ErrZeroPosteriorMass = errors.New("posterior mass vanished for all labels")

// ErrNoAnnotations indicates a subject has no annotations to infer from.
var ErrNoAnnotations = errors.New("subject has no annotations")

// ErrUnmappedValue indicates a raw annotation value has no label mapping.
var ErrUnmappedValue = errors.New("raw value has no label mapping")

// ErrInvalidConfig indicates that the estimation configuration is invalid.
var ErrInvalidConfig = errors.New("invalid estimation configuration")

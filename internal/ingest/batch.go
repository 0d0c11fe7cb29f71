// Package ingest turns parsed annotation records into subject batches ready
// to merge into the known population.
package ingest

import (
	"fmt"

	"github.com/ahrav/go-crowd/internal/domain"
)

// ClassifierSource resolves classifier identifiers to shared instances.
// consensus.Population and Registry satisfy it.
type ClassifierSource interface {
	Classifier(id string) (*domain.Classifier, error)
}

// Registry adapts a domain.Classifiers collection to ClassifierSource.
type Registry struct {
	*domain.Classifiers
}

// NewRegistry returns a registry backed by a new collection.
func NewRegistry() Registry { return Registry{Classifiers: &domain.Classifiers{}} }

// Classifier implements ClassifierSource.
func (r Registry) Classifier(id string) (*domain.Classifier, error) {
	return r.GetOrCreate(id)
}

// Batch is the result of building subjects from records.
type Batch struct {
	Subjects   *domain.Subjects
	Accepted   int
	Rejections []domain.RecordRejection
}

// Option configures BuildBatch.
type Option func(*options)

type options struct {
	progress func(processed int)
}

// WithProgress calls fn after each record with the number of records
// processed so far, accepted or not.
func WithProgress(fn func(processed int)) Option {
	return func(o *options) { o.progress = fn }
}

// BuildBatch groups the records of task by subject. Records for another task,
// with an unmapped raw value, or with missing identifiers are rejected and
// reported individually; the rest of the batch is still built.
func BuildBatch(
	records []domain.AnnotationRecord,
	task string,
	mapper domain.LabelMapper,
	classifiers ClassifierSource,
	opts ...Option,
) (*Batch, error) {
	if mapper == nil || classifiers == nil {
		return nil, fmt.Errorf("%w: label mapper and classifier source are required", domain.ErrInvalidArgument)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	out := &Batch{Subjects: &domain.Subjects{}}
	reject := func(r domain.AnnotationRecord, reason string) {
		out.Rejections = append(out.Rejections, domain.RecordRejection{
			AnnotationID: r.AnnotationID,
			SubjectID:    r.SubjectID,
			Reason:       reason,
		})
	}

	for i, r := range records {
		if o.progress != nil && i > 0 {
			o.progress(i)
		}
		if r.Task != task {
			reject(r, fmt.Sprintf("task %q does not match %q", r.Task, task))
			continue
		}
		if r.AnnotationID == "" {
			reject(r, "empty annotation id")
			continue
		}
		if r.ClassifierID == "" {
			reject(r, "empty classifier id")
			continue
		}
		if r.SubjectID == "" {
			reject(r, "missing subject id")
			continue
		}
		classifier, err := classifiers.Classifier(r.ClassifierID)
		if err != nil {
			reject(r, err.Error())
			continue
		}
		annotation, err := domain.NewAnnotation(r.AnnotationID, classifier, r.RawValue, mapper)
		if err != nil {
			reject(r, err.Error())
			continue
		}

		subject, ok := out.Subjects.Get(r.SubjectID)
		if !ok {
			subject, err = domain.NewSubject(r.SubjectID)
			if err != nil {
				reject(r, err.Error())
				continue
			}
			out.Subjects.Append(subject)
		}
		added, err := subject.AddAnnotation(annotation)
		if err != nil {
			reject(r, err.Error())
			continue
		}
		if !added {
			reject(r, "duplicate annotation id in batch")
			continue
		}
		out.Accepted++
	}
	if o.progress != nil && len(records) > 0 {
		o.progress(len(records))
	}
	return out, nil
}

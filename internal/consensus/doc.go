// Package consensus implements the crowd-consensus estimation engine.
//
// A round runs over a fully materialized snapshot of the subject population:
//
//  1. SkillEstimator computes the population skill prior and then each
//     classifier's skill with Beta-Bernoulli shrinkage toward that prior.
//  2. InferTrueLabel picks, per subject, the maximum-a-posteriori label among
//     the labels observed on that subject.
//  3. Risk computes the normalized expected loss of committing to that label,
//     by default over the same observed labels. DomainSupport widens the
//     risk posterior to the whole label domain.
//
// The models (LabelPrior, AnnotationModel, LossModel) are plain injected
// strategies with no shared global state. Everything in this package except
// Population is synchronous and must not be called concurrently on the same
// Subjects; Population provides the snapshot-and-publish discipline for
// concurrent ingestion.
package consensus

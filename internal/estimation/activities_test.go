package estimation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-crowd/internal/consensus"
	"github.com/ahrav/go-crowd/internal/domain"
	"github.com/ahrav/go-crowd/pkg/activity"
	"github.com/ahrav/go-crowd/pkg/events"
)

func newTestActivities(t *testing.T) (*Activities, *events.MemorySink) {
	t.Helper()
	sink := events.NewMemorySink()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	acts, err := NewActivities(activity.NewBaseActivities(sink), consensus.NewPopulation(), logger)
	require.NoError(t, err)
	return acts, sink
}

func rec(annotationID, classifierID, subjectID, raw string) domain.AnnotationRecord {
	return domain.AnnotationRecord{
		AnnotationID: annotationID,
		ClassifierID: classifierID,
		SubjectID:    subjectID,
		Task:         "T0",
		RawValue:     raw,
	}
}

func ingestInput(key string, records ...domain.AnnotationRecord) domain.IngestAnnotationsInput {
	return domain.IngestAnnotationsInput{
		Records:              records,
		Task:                 "T0",
		Mapping:              domain.BinaryValueMapping{TrueValue: "1", FalseValue: "0"},
		ClientIdempotencyKey: key,
	}
}

func estimateInput(key string) domain.EstimateRoundInput {
	return domain.EstimateRoundInput{
		Estimator:            domain.DefaultEstimatorConfig(),
		Loss:                 domain.DefaultLossConfig(),
		LabelPrior:           domain.DefaultLabelPriorConfig(),
		ClientIdempotencyKey: key,
	}
}

func sampleRecords() []domain.AnnotationRecord {
	return []domain.AnnotationRecord{
		rec("a1", "c1", "s1", "1"),
		rec("a2", "c2", "s1", "1"),
		rec("a3", "c1", "s2", "0"),
		rec("a4", "c2", "s2", "1"),
		rec("a5", "c2", "s3", "unknown"),
	}
}

func TestNewActivities_RequiresPopulation(t *testing.T) {
	_, err := NewActivities(activity.NewBaseActivities(nil), nil, nil)
	require.ErrorIs(t, err, ErrNilPopulation)
}

func TestIngestAnnotations(t *testing.T) {
	acts, sink := newTestActivities(t)
	ctx := context.Background()

	out, err := acts.IngestAnnotations(ctx, ingestInput("batch-1", sampleRecords()...))
	require.NoError(t, err)
	assert.Equal(t, 4, out.Accepted)
	require.Len(t, out.Rejections, 1)
	assert.Equal(t, "a5", out.Rejections[0].AnnotationID)
	assert.Equal(t, domain.MergeStats{NewSubjects: 2, AppendedAnnotations: 4}, out.MergeStats)
	assert.Equal(t, 2, out.PopulationSubjects)
	assert.Equal(t, 4, out.PopulationAnnotations)

	evts := sink.EventsByType(string(domain.EventTypeAnnotationsIngested))
	require.Len(t, evts, 1)
	assert.Equal(t, domain.AnnotationsIngestedIdempotencyKey("batch-1"), evts[0].IdempotencyKey)
	assert.Equal(t, activity.TestTenantID, evts[0].TenantID)
	assert.Equal(t, "consensus-local", evts[0].WorkflowID)

	var payload domain.AnnotationsIngestedPayload
	require.NoError(t, json.Unmarshal(evts[0].Payload, &payload))
	assert.Equal(t, domain.AnnotationsIngestedPayload{
		Task:                  "T0",
		Accepted:              4,
		Rejected:              1,
		NewSubjects:           2,
		AppendedAnnotations:   4,
		PopulationSubjects:    2,
		PopulationAnnotations: 4,
	}, payload)
}

func TestIngestAnnotations_Redelivery(t *testing.T) {
	acts, sink := newTestActivities(t)
	ctx := context.Background()
	input := ingestInput("batch-1", sampleRecords()...)

	_, err := acts.IngestAnnotations(ctx, input)
	require.NoError(t, err)
	out, err := acts.IngestAnnotations(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, domain.MergeStats{DuplicateAnnotations: 4}, out.MergeStats)
	assert.Equal(t, 4, out.PopulationAnnotations)
	assert.Len(t, sink.Events(), 1, "the retried event carries the same idempotency key")
}

func TestIngestAnnotations_InvalidInput(t *testing.T) {
	acts, sink := newTestActivities(t)

	tests := []struct {
		name  string
		input domain.IngestAnnotationsInput
	}{
		{"no records", ingestInput("k")},
		{"missing key", ingestInput("", rec("a1", "c1", "s1", "1"))},
		{"same mapping values", func() domain.IngestAnnotationsInput {
			in := ingestInput("k", rec("a1", "c1", "s1", "1"))
			in.Mapping.FalseValue = "1"
			return in
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := acts.IngestAnnotations(context.Background(), tt.input)
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "IngestAnnotations", appErr.Type())
			assert.True(t, appErr.NonRetryable())
		})
	}
	assert.Empty(t, sink.Events())
}

func TestIngestAnnotations_MalformedRecordsRejectedIndividually(t *testing.T) {
	acts, sink := newTestActivities(t)

	out, err := acts.IngestAnnotations(context.Background(), ingestInput("batch-1",
		rec("a1", "c1", "s1", "1"),
		rec("a2", "c1", "", "1"),
		rec("", "c2", "s1", "0"),
		rec("a4", "", "s2", "0"),
		rec("a5", "c2", "s2", "0"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, out.Accepted)
	assert.Equal(t, domain.MergeStats{NewSubjects: 2, AppendedAnnotations: 2}, out.MergeStats)
	assert.Equal(t, 2, out.PopulationSubjects)
	assert.Equal(t, 2, out.PopulationAnnotations)

	reasons := make([]string, 0, len(out.Rejections))
	for _, r := range out.Rejections {
		reasons = append(reasons, r.Reason)
	}
	assert.Equal(t, []string{"missing subject id", "empty annotation id", "empty classifier id"}, reasons)
	assert.Len(t, sink.EventsByType(string(domain.EventTypeAnnotationsIngested)), 1)

}

func TestEstimateRound(t *testing.T) {
	acts, sink := newTestActivities(t)
	ctx := context.Background()

	_, err := acts.IngestAnnotations(ctx, ingestInput("batch-1", sampleRecords()...))
	require.NoError(t, err)

	out, err := acts.EstimateRound(ctx, estimateInput("round-1"))
	require.NoError(t, err)
	assert.True(t, out.InitMode)
	assert.True(t, strings.HasPrefix(out.RoundID, "consensus-local/"), out.RoundID)
	require.Len(t, out.Subjects, 2)
	require.Len(t, out.Classifiers, 2)

	s1, ok := out.Assessment("s1")
	require.True(t, ok)
	assert.Equal(t, domain.BoolLabel(true), s1.TrueLabel)
	assert.Zero(t, s1.Risk)

	s2, ok := out.Assessment("s2")
	require.True(t, ok)
	assert.Equal(t, domain.BoolLabel(false), s2.TrueLabel, "ties go to false")
	assert.InDelta(t, 0.5, s2.Risk, 1e-12)

	latest := acts.Population().Latest()
	require.NotNil(t, latest)
	assert.Equal(t, out.RoundID, latest.RoundID)

	evts := sink.EventsByType(string(domain.EventTypeConsensusEstimated))
	require.Len(t, evts, 1)
	assert.Equal(t, domain.ConsensusEstimatedIdempotencyKey("round-1"), evts[0].IdempotencyKey)

	var payload domain.ConsensusEstimatedPayload
	require.NoError(t, json.Unmarshal(evts[0].Payload, &payload))
	assert.Equal(t, out.RoundID, payload.RoundID)
	assert.Equal(t, 2, payload.SubjectCount)
	assert.InDelta(t, 0.25, payload.MeanRisk, 1e-12)
	assert.InDelta(t, 0.5, payload.MaxRisk, 1e-12)
}

func TestEstimateRound_DomainRiskSupport(t *testing.T) {
	acts, _ := newTestActivities(t)
	ctx := context.Background()

	_, err := acts.IngestAnnotations(ctx, ingestInput("batch-1",
		rec("a1", "c1", "s1", "1"),
		rec("a2", "c2", "s1", "1")))
	require.NoError(t, err)

	input := estimateInput("round-1")
	input.RiskSupport = domain.RiskSupportDomain
	out, err := acts.EstimateRound(ctx, input)
	require.NoError(t, err)

	s1, ok := out.Assessment("s1")
	require.True(t, ok)
	assert.InDelta(t, 0.5, s1.Risk, 1e-12, "the unobserved label keeps bootstrap mass")
}

func TestEstimateRound_InvalidInput(t *testing.T) {
	acts, sink := newTestActivities(t)

	bad := estimateInput("round-1")
	bad.Estimator.NBeta = 0
	_, err := acts.EstimateRound(context.Background(), bad)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "EstimateRound", appErr.Type())
	assert.True(t, appErr.NonRetryable())

	bad = estimateInput("round-1")
	bad.RiskSupport = "everywhere"
	_, err = acts.EstimateRound(context.Background(), bad)
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())

	assert.Empty(t, sink.Events())
}

// TestActivitiesInTemporalEnvironment runs both activities through the SDK
// test environment, which supplies real activity info.
func TestActivitiesInTemporalEnvironment(t *testing.T) {
	acts, sink := newTestActivities(t)

	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(acts.IngestAnnotations)
	env.RegisterActivity(acts.EstimateRound)

	val, err := env.ExecuteActivity(acts.IngestAnnotations, ingestInput("batch-1", sampleRecords()...))
	require.NoError(t, err)
	var ingested domain.IngestAnnotationsOutput
	require.NoError(t, val.Get(&ingested))
	assert.Equal(t, 4, ingested.Accepted)

	val, err = env.ExecuteActivity(acts.EstimateRound, estimateInput("round-1"))
	require.NoError(t, err)
	var estimated domain.EstimateRoundOutput
	require.NoError(t, val.Get(&estimated))
	assert.Len(t, estimated.Subjects, 2)

	evts := sink.Events()
	require.Len(t, evts, 2)
	for _, e := range evts {
		assert.Equal(t, activity.TestTenantID, e.TenantID, "the default tenant maps to the fixed tenant")
		assert.NotEmpty(t, e.WorkflowID)
	}
	assert.Equal(t, estimated.RoundID, evts[1].WorkflowID+"/"+evts[1].RunID)
}

func TestParseUUID(t *testing.T) {
	id, err := parseUUID("default", "tenant")
	require.NoError(t, err)
	assert.Equal(t, activity.TestTenantID, id.String())

	id, err = parseUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8", "tenant")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())

	_, err = parseUUID("not-a-uuid", "tenant")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tenant UUID")
}

package metrics

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/internal/observability/statsd"
)

func TestEmitJobFinished(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitJobFinished(rec, JobMetric{
		Outcome:     OutcomeFailed,
		FailedStage: "CLASSIFY",
		Delivery:    true,
		Duration:    time.Second,
		Err:         errors.New("boom"),
	})

	finished := rec.Named("job.finished")
	require.Len(t, finished, 1)
	assert.Equal(t, map[string]string{
		"outcome":      "failed",
		"delivery":     "true",
		"failed_stage": "CLASSIFY",
		"error_class":  "errors_errorstring",
	}, finished[0].Tags)

	durations := rec.Named("job.duration")
	require.Len(t, durations, 1)
	assert.Equal(t, map[string]string{"outcome": "failed"}, durations[0].Tags)

	EmitJobFinished(nil, JobMetric{})
}

func TestEmitJobFinished_CompletedIgnoresErr(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitJobFinished(rec, JobMetric{Outcome: OutcomeCompleted, Err: errors.New("tolerated DOC_API failure")})

	finished := rec.Named("job.finished")
	require.Len(t, finished, 1)
	assert.NotContains(t, finished[0].Tags, "error_class")
	assert.Empty(t, rec.Named("job.duration"))
}

func TestEmitStageTransition(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitStageTransition(rec, StageMetric{
		Stage:    "DOC_API",
		Kind:     "noncritical",
		Status:   "skipped",
		Duration: time.Millisecond,
		Err:      &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist},
	})

	counts := rec.Named("stage.transition")
	require.Len(t, counts, 1)
	assert.Equal(t, "skipped", counts[0].Tags["status"])
	assert.Equal(t, "not_exist", counts[0].Tags["error_class"])

	timings := rec.Named("stage.duration")
	require.Len(t, timings, 1)
	assert.Equal(t, map[string]string{"stage": "DOC_API", "status": "skipped"}, timings[0].Tags)
}

func TestEmitDeletionAndDequeued(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitDeletion(rec, DeletionMetric{Result: ResultSuccess, KilledPIDs: 2, Fallbacks: 1, UsedBottomUp: true, Duration: time.Millisecond})
	EmitDequeued(rec, 3*time.Second, 4)
	EmitDequeued(rec, 0, 0)

	attempts := rec.Named("delete.attempt")
	require.Len(t, attempts, 1)
	assert.Equal(t, "bottom_up", attempts[0].Tags["path"])
	assert.Equal(t, float64(2), rec.Named("delete.killed_processes")[0].Value)

	depth := rec.Named("queue.depth")
	require.Len(t, depth, 2)
	assert.Equal(t, float64(4), depth[0].Value)
	assert.Len(t, rec.Named("queue.wait"), 1)
}

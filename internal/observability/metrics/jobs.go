// Package metrics names and tags the StatsD series emitted by the pipeline.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/repodoc/internal/observability/errors"
	"github.com/target/repodoc/internal/observability/statsd"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Job outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	// OutcomeAborted means the processor itself panicked or errored; no stage result exists.
	OutcomeAborted = "aborted"
)

// JobMetric describes one job leaving the worker.
type JobMetric struct {
	Outcome     string
	FailedStage string
	Delivery    bool
	Duration    time.Duration
	Err         error
}

// EmitJobFinished counts the job by outcome and records its run time.
func EmitJobFinished(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"outcome":  in.Outcome,
		"delivery": strconv.FormatBool(in.Delivery),
	}
	if in.FailedStage != "" {
		tags["failed_stage"] = in.FailedStage
	}
	if in.Err != nil && in.Outcome != OutcomeCompleted {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("job.finished", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, map[string]string{"outcome": in.Outcome})
	}
}

// EmitDequeued reports how long a job waited and how many are still queued behind it.
func EmitDequeued(sink statsd.Sink, wait time.Duration, remaining int) {
	if sink == nil {
		return
	}
	sink.Gauge("queue.depth", float64(remaining), nil)
	if wait > 0 {
		sink.Timing("queue.wait", wait, nil)
	}
}

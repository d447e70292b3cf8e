package metrics

import (
	"time"

	obserrors "github.com/target/repodoc/internal/observability/errors"
	"github.com/target/repodoc/internal/observability/statsd"
)

// StageMetric describes one stage reaching a terminal status.
type StageMetric struct {
	Stage    string
	Kind     string
	Status   string
	Duration time.Duration
	Err      error
}

// EmitStageTransition emits a counter per terminal stage status and the stage duration.
func EmitStageTransition(sink statsd.Sink, in StageMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":  in.Stage,
		"kind":   in.Kind,
		"status": in.Status,
	}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("stage.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("stage.duration", in.Duration, map[string]string{"stage": in.Stage, "status": in.Status})
	}
}

// DeletionMetric summarises one forceful deletion.
type DeletionMetric struct {
	Result       string
	KilledPIDs   int
	Fallbacks    int
	UsedBottomUp bool
	Duration     time.Duration
}

// EmitDeletion emits deletion counters and timing.
func EmitDeletion(sink statsd.Sink, in DeletionMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": in.Result}
	if in.UsedBottomUp {
		tags["path"] = "bottom_up"
	} else {
		tags["path"] = "tolerant"
	}
	sink.Count("delete.attempt", 1, tags)
	if in.KilledPIDs > 0 {
		sink.Count("delete.killed_processes", int64(in.KilledPIDs), nil)
	}
	if in.Fallbacks > 0 {
		sink.Count("delete.fallbacks", int64(in.Fallbacks), nil)
	}
	if in.Duration > 0 {
		sink.Timing("delete.duration", in.Duration, tags)
	}
}

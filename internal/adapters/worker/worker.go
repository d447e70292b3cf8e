// Package worker runs the single background consumer of the job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/observability/metrics"
	"github.com/target/repodoc/internal/observability/statsd"
)

// Options configures the worker.
type Options struct {
	Queue     core.JobQueue
	Processor core.JobProcessor
	Logger    *slog.Logger
	Metrics   statsd.Sink
	// OnResult is called after each job finishes. Optional.
	OnResult func(model.Result)
}

// Worker pulls jobs one at a time and runs them to completion.
type Worker struct {
	queue     core.JobQueue
	processor core.JobProcessor
	logger    *slog.Logger
	metrics   statsd.Sink
	onResult  func(model.Result)
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// New constructs a Worker.
func New(opts Options) (*Worker, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	return &Worker{
		queue:     opts.Queue,
		processor: opts.Processor,
		logger:    resolveLogger(opts.Logger).With("component", "worker"),
		metrics:   opts.Metrics,
		onResult:  opts.OnResult,
	}, nil
}

// Run processes jobs until ctx is cancelled or the queue is closed, then returns nil.
// A job already dequeued always runs to completion; cancellation is only observed between jobs.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "starting worker")

	unsub, ch := w.queue.Subscribe()
	defer unsub()

	for ctx.Err() == nil {
		if job, ok := w.queue.Dequeue(); ok {
			w.processJob(ctx, job)
			continue
		}
		if !w.waitForNotify(ctx, ch) {
			break
		}
	}
	w.logger.InfoContext(ctx, "worker stopped", "pending", w.queue.Len())
	return nil
}

func (w *Worker) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case _, open := <-notify:
		return open
	}
}

func (w *Worker) processJob(ctx context.Context, job *model.Job) {
	metrics.EmitDequeued(w.metrics, time.Since(job.CreatedAt), w.queue.Len())

	// Shutdown must not interrupt a running job.
	jobCtx := context.WithoutCancel(ctx)
	start := time.Now()

	res, err := w.safeProcess(jobCtx, job)
	if err != nil {
		w.logger.ErrorContext(ctx, "job processing aborted",
			"job_id", job.ID,
			"repository", job.RepoName,
			"error", err,
		)
		metrics.EmitJobFinished(w.metrics, metrics.JobMetric{
			Outcome:  metrics.OutcomeAborted,
			Delivery: job.HasEndpoint(),
			Duration: time.Since(start),
			Err:      err,
		})
		res = model.Result{
			JobID:      job.ID.String(),
			Repository: job.RepoName,
			Stages:     job.Statuses(),
			StartedAt:  start,
			EndedAt:    time.Now(),
		}
	}
	if w.onResult != nil {
		w.onResult(res)
	}
}

// safeProcess keeps a panic outside the stage executors from killing the worker.
func (w *Worker) safeProcess(ctx context.Context, job *model.Job) (res model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
			w.logger.ErrorContext(ctx, "processor panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return w.processor.Process(ctx, job), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/target/repodoc/internal/core"
	domainjob "github.com/target/repodoc/internal/domain/job"
	"github.com/target/repodoc/internal/domain/model"
	obserrors "github.com/target/repodoc/internal/observability/errors"
	"github.com/target/repodoc/internal/observability/metrics"
	"github.com/target/repodoc/internal/observability/statsd"
	"github.com/target/repodoc/internal/service/failurenotifier"
)

// ErrMissingExecutor is returned when a pipeline stage has no executor registered.
var ErrMissingExecutor = errors.New("no executor registered for stage")

// RepositoryProcessorOptions groups dependencies for RepositoryProcessor.
type RepositoryProcessorOptions struct {
	Executors map[model.Stage]core.StageExecutor // Required: one executor per stage
	// LocalArchiver archives documentation when ARCHIVE_SEND is gated off. Optional.
	LocalArchiver   core.Archiver
	Logger          *slog.Logger
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
	Now             func() time.Time
}

// RepositoryProcessor drives a job through every stage in order.
//
// A critical failure halts the job and leaves later stages pending, so DELETE never
// runs unless every stage before it, including ARCHIVE_SEND when it is enabled, has resolved.
type RepositoryProcessor struct {
	executors       map[model.Stage]core.StageExecutor
	localArchiver   core.Archiver
	policy          domainjob.StagePolicy
	logger          *slog.Logger
	metrics         statsd.Sink
	failureNotifier *failurenotifier.Service
	now             func() time.Time
}

var _ core.JobProcessor = (*RepositoryProcessor)(nil)

// NewRepositoryProcessor validates that every stage has an executor.
func NewRepositoryProcessor(opts RepositoryProcessorOptions) (*RepositoryProcessor, error) {
	executors := make(map[model.Stage]core.StageExecutor, len(opts.Executors))
	for _, s := range model.Stages() {
		exec, ok := opts.Executors[s]
		if !ok || exec == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingExecutor, s)
		}
		executors[s] = exec
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &RepositoryProcessor{
		executors:       executors,
		localArchiver:   opts.LocalArchiver,
		logger:          resolveLogger(opts.Logger).With("component", "repository_processor"),
		metrics:         opts.Metrics,
		failureNotifier: opts.FailureNotifier,
		now:             now,
	}, nil
}

// Process runs every stage of job and returns the final outcome.
func (p *RepositoryProcessor) Process(ctx context.Context, job *model.Job) model.Result {
	res := model.Result{
		JobID:      job.ID.String(),
		Repository: job.RepoName,
		StartedAt:  p.now(),
	}
	logger := p.logger.With("job_id", res.JobID, "repository", job.RepoName)
	logger.InfoContext(ctx, "processing repository", "source", job.SourceURL, "reference_id", job.ReferenceID)

	var haltErr error
	for _, s := range model.Stages() {
		if decision, open := p.policy.Gate(s, job.HasEndpoint()); !open {
			p.transition(ctx, logger, job, s, decision.Status)
			metrics.EmitStageTransition(p.metrics, metrics.StageMetric{
				Stage:  string(s),
				Kind:   string(s.Kind()),
				Status: string(decision.Status),
			})
			logger.InfoContext(ctx, "stage skipped", "stage", s, "reason", decision.Source)
			if s == model.StageArchiveSend {
				p.archiveLocally(ctx, logger, job)
			}
			continue
		}

		decision, err := p.runStage(ctx, logger, job, s)
		if decision.Halt {
			res.FailedStage = s
			haltErr = err
			break
		}
	}

	res.Stages = job.Statuses()
	res.Success = p.policy.Succeeded(res.Stages)
	res.EndedAt = p.now()
	p.finish(ctx, logger, job, res, haltErr)
	return res
}

func (p *RepositoryProcessor) runStage(
	ctx context.Context,
	logger *slog.Logger,
	job *model.Job,
	s model.Stage,
) (domainjob.StageDecision, error) {
	target, args := StageInvocation(job, s)
	start := p.now()
	p.transition(ctx, logger, job, s, model.StageStatusRunning)
	logger.InfoContext(ctx, "stage started", "stage", s, "target", target)

	outcome := p.invoke(ctx, logger, s, target, args)
	if !outcome.Success && outcome.Err == nil {
		outcome.Err = fmt.Errorf("%s failed", s)
	}
	decision := p.policy.Resolve(s, outcome)
	p.transition(ctx, logger, job, s, decision.Status)

	errText := ""
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	job.Annotate(s, outcome.Output, errText)

	elapsed := p.now().Sub(start)
	metrics.EmitStageTransition(p.metrics, metrics.StageMetric{
		Stage:    string(s),
		Kind:     string(s.Kind()),
		Status:   string(decision.Status),
		Duration: elapsed,
		Err:      outcome.Err,
	})

	switch {
	case decision.Halt:
		logger.ErrorContext(ctx, "stage failed; halting job", "stage", s, "error", outcome.Err, "output", outcome.Output)
	case decision.Tolerated():
		logger.WarnContext(ctx, "non-critical stage failed; continuing", "stage", s, "error", outcome.Err)
	default:
		logger.InfoContext(ctx, "stage completed", "stage", s, "duration", elapsed)
	}
	return decision, outcome.Err
}

// invoke runs the executor and converts a panic into a failed outcome.
func (p *RepositoryProcessor) invoke(
	ctx context.Context,
	logger *slog.Logger,
	s model.Stage,
	target string,
	args []string,
) (out model.StageOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "stage executor panicked",
				"stage", s,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			out = model.Failed(fmt.Errorf("%s: executor panic: %v", s, r), "")
		}
	}()
	return p.executors[s].Run(ctx, target, args)
}

func (p *RepositoryProcessor) transition(
	ctx context.Context,
	logger *slog.Logger,
	job *model.Job,
	s model.Stage,
	next model.StageStatus,
) {
	if err := job.Transition(s, next, p.now()); err != nil {
		logger.ErrorContext(ctx, "stage transition rejected", "stage", s, "to", next, "error", err)
	}
}

func (p *RepositoryProcessor) archiveLocally(ctx context.Context, logger *slog.Logger, job *model.Job) {
	if p.localArchiver == nil {
		return
	}
	records, err := p.localArchiver.ArchiveAll(ctx, job.RepoName, job.RepoPath())
	if err != nil {
		logger.WarnContext(ctx, "local archiving failed", "error", err, "archived", len(records))
		return
	}
	logger.InfoContext(ctx, "documentation archived locally", "archived", len(records), "dir", p.localArchiver.ArchiveDir(job.RepoName))
}

func (p *RepositoryProcessor) finish(ctx context.Context, logger *slog.Logger, job *model.Job, res model.Result, haltErr error) {
	counts := res.Counts()
	logArgs := []any{
		"success", res.Success,
		"duration", res.Duration(),
		"completed", counts[model.StageStatusCompleted],
		"skipped", counts[model.StageStatusSkipped],
		"pending", counts[model.StageStatusPending],
	}

	outcome := metrics.OutcomeCompleted
	if !res.Success {
		outcome = metrics.OutcomeFailed
		logger.ErrorContext(ctx, "repository processing failed", append(logArgs, "failed_stage", res.FailedStage)...)
	} else {
		logger.InfoContext(ctx, "repository processing finished", logArgs...)
	}

	metrics.EmitJobFinished(p.metrics, metrics.JobMetric{
		Outcome:     outcome,
		FailedStage: string(res.FailedStage),
		Delivery:    job.HasEndpoint(),
		Duration:    res.Duration(),
		Err:         haltErr,
	})

	if !res.Success && p.failureNotifier != nil && p.failureNotifier.Enabled() {
		p.failureNotifier.NotifyResult(ctx, job, res, obserrors.Classify(haltErr))
	}
}

// StageInvocation returns the target path and arguments passed to the executor of stage s.
// CLONE runs in the target directory with the source URL; ARCHIVE_SEND receives the
// endpoint and reference token; every other stage runs against the cloned repository.
func StageInvocation(job *model.Job, s model.Stage) (string, []string) {
	switch s {
	case model.StageClone:
		return job.TargetDir, []string{job.SourceURL}
	case model.StageArchiveSend:
		return job.RepoPath(), []string{job.Endpoint, job.ReferenceID}
	default:
		return job.RepoPath(), nil
	}
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

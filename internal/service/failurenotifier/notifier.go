// Package failurenotifier alerts operators when a repository run fails.
package failurenotifier

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/observability/notify"
)

// SinkRegistration names a sink for log lines.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures Service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Timeout bounds each sink delivery. Zero leaves the caller's context in charge.
	Timeout time.Duration
	// Cooldown drops alerts for a repository/stage pair alerted within the window.
	Cooldown time.Duration
	Now      func() time.Time
}

// Service fans failure payloads out to every sink concurrently.
type Service struct {
	logger   *slog.Logger
	sinks    []SinkRegistration
	timeout  time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewService drops nil sinks. A Service without sinks is valid and does nothing.
func NewService(opts Options) *Service {
	s := &Service{
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		cooldown: opts.Cooldown,
		now:      opts.Now,
		lastSent: map[string]time.Time{},
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "failure_notifier")
	}
	if s.now == nil {
		s.now = time.Now
	}
	for i, reg := range opts.Sinks {
		if reg.Sink == nil {
			continue
		}
		if reg.Name == "" {
			reg.Name = "sink-" + strconv.Itoa(i)
		}
		s.sinks = append(s.sinks, reg)
	}
	return s
}

// Enabled reports whether any sink is registered.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}

// NotifyJobFailure delivers payload to every sink and waits for all of them.
// Delivery errors are logged, never returned.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if !s.Enabled() {
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = s.now().UTC()
	}
	if s.suppressed(payload) {
		s.logger.InfoContext(ctx, "failure alert suppressed by cooldown",
			"repository", payload.Repository,
			"failed_stage", payload.FailedStage,
			"job_id", payload.JobID,
		)
		return
	}

	var wg sync.WaitGroup
	for _, reg := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deliver(ctx, reg, payload)
		}()
	}
	wg.Wait()
}

func (s *Service) deliver(ctx context.Context, reg SinkRegistration, payload notify.JobFailurePayload) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := reg.Sink.SendJobFailure(ctx, payload); err != nil {
		s.logger.ErrorContext(ctx, "failure alert not delivered",
			"sink", reg.Name,
			"job_id", payload.JobID,
			"repository", payload.Repository,
			"error", err,
		)
	}
}

// suppressed records the alert and reports whether an identical one went out within the cooldown.
func (s *Service) suppressed(payload notify.JobFailurePayload) bool {
	if s.cooldown <= 0 {
		return false
	}
	key := payload.Repository + "\x00" + payload.FailedStage
	at := payload.OccurredAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastSent[key]; ok && at.Sub(last) < s.cooldown {
		return true
	}
	s.lastSent[key] = at
	for k, t := range s.lastSent {
		if at.Sub(t) >= s.cooldown {
			delete(s.lastSent, k)
		}
	}
	return false
}

// NotifyResult alerts on a failed result. Successful results are ignored.
func (s *Service) NotifyResult(ctx context.Context, job *model.Job, res model.Result, errorClass string) {
	if res.Success || job == nil {
		return
	}
	s.NotifyJobFailure(ctx, PayloadFromResult(job, res, errorClass))
}

// PayloadFromResult builds the alert for a failed job.
// Only a DELETE failure is critical: it leaves a working tree on disk. Earlier failures are warnings.
func PayloadFromResult(job *model.Job, res model.Result, errorClass string) notify.JobFailurePayload {
	severity := notify.SeverityCritical
	if res.FailedStage != "" && res.FailedStage != model.StageDelete {
		severity = notify.SeverityWarning
	}
	meta := map[string]string{"duration": res.Duration().Round(time.Millisecond).String()}
	if job.HasEndpoint() {
		meta["delivery"] = "enabled"
	}

	out := notify.JobFailurePayload{
		JobID:       job.ID.String(),
		Repository:  job.RepoName,
		SourceURL:   job.SourceURL,
		ReferenceID: job.ReferenceID,
		FailedStage: string(res.FailedStage),
		ErrorClass:  errorClass,
		Severity:    severity,
		OccurredAt:  res.EndedAt,
		Metadata:    meta,
	}
	if res.FailedStage != "" {
		out.Error = strings.TrimSpace(res.Stages[res.FailedStage].Error)
	}
	for _, stage := range model.Stages() {
		if rec, ok := res.Stages[stage]; ok {
			out.Stages = append(out.Stages, notify.StageLine{Stage: string(stage), Status: string(rec.Status)})
		}
	}
	return out
}

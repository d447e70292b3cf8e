// Package model defines the core data types shared by the repository documentation pipeline.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueClosed is returned when enqueueing after shutdown has begun.
	ErrQueueClosed = errors.New("job queue closed")
	// ErrInvalidLocator is returned when a repository locator cannot be parsed.
	ErrInvalidLocator = errors.New("invalid repository locator")
)

// StageRecord is the status entry of one stage within a job.
type StageRecord struct {
	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Output      string      `json:"-"`
	Error       string      `json:"-"`
}

func (r StageRecord) clone() StageRecord {
	out := r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Job is one repository submitted for processing.
// The worker exclusively owns a job once it has been dequeued.
type Job struct {
	ID          uuid.UUID
	SourceURL   string
	RepoName    string
	TargetDir   string
	Endpoint    string
	ReferenceID string
	CreatedAt   time.Time

	stages map[Stage]StageRecord
}

// NewJobRequest carries the fields needed to create a Job.
type NewJobRequest struct {
	SourceURL   string
	RepoName    string
	TargetDir   string
	Endpoint    string
	ReferenceID string
}

// Validate validates the NewJobRequest fields.
func (r *NewJobRequest) Validate() error {
	if strings.TrimSpace(r.SourceURL) == "" {
		return errors.New("source url is required")
	}
	if strings.TrimSpace(r.RepoName) == "" {
		return errors.New("repository name is required")
	}
	if strings.ContainsAny(r.RepoName, `/\`) || r.RepoName == "." || r.RepoName == ".." {
		return fmt.Errorf("repository name %q is not a plain directory name", r.RepoName)
	}
	if strings.TrimSpace(r.TargetDir) == "" {
		return errors.New("target directory is required")
	}
	return nil
}

// NewJob creates a job with every stage pending.
func NewJob(req NewJobRequest, now time.Time) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	stages := make(map[Stage]StageRecord, len(stageOrder))
	for _, s := range stageOrder {
		stages[s] = StageRecord{Status: StageStatusPending}
	}
	return &Job{
		ID:          uuid.New(),
		SourceURL:   strings.TrimSpace(req.SourceURL),
		RepoName:    req.RepoName,
		TargetDir:   req.TargetDir,
		Endpoint:    strings.TrimSpace(req.Endpoint),
		ReferenceID: strings.TrimSpace(req.ReferenceID),
		CreatedAt:   now.UTC(),
		stages:      stages,
	}, nil
}

// RepoPath is the directory the repository is cloned into.
func (j *Job) RepoPath() string {
	return filepath.Join(j.TargetDir, j.RepoName)
}

// HasEndpoint reports whether ARCHIVE_SEND is enabled for this job.
func (j *Job) HasEndpoint() bool {
	return j.Endpoint != ""
}

// Stage returns the current record for s.
func (j *Job) Stage(s Stage) StageRecord {
	return j.stages[s].clone()
}

// Transition moves stage s to status next. Timestamps are set on entering
// running and on reaching a terminal status.
func (j *Job) Transition(s Stage, next StageStatus, at time.Time) error {
	rec, ok := j.stages[s]
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, s)
	}
	if !rec.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, s, rec.Status, next)
	}
	at = at.UTC()
	switch {
	case next == StageStatusRunning:
		rec.StartedAt = &at
	case next.Terminal():
		rec.CompletedAt = &at
	}
	rec.Status = next
	j.stages[s] = rec
	return nil
}

// Annotate attaches captured executor output and error text to stage s.
func (j *Job) Annotate(s Stage, output, errText string) {
	rec, ok := j.stages[s]
	if !ok {
		return
	}
	rec.Output = output
	rec.Error = errText
	j.stages[s] = rec
}

// Statuses returns a deep copy of the stage status map.
func (j *Job) Statuses() map[Stage]StageRecord {
	out := make(map[Stage]StageRecord, len(j.stages))
	for s, rec := range j.stages {
		out[s] = rec.clone()
	}
	return out
}

// Snapshot returns an immutable view of the job for status readers.
func (j *Job) Snapshot() JobSnapshot {
	return JobSnapshot{
		JobID:       j.ID.String(),
		Repository:  j.RepoName,
		SourceURL:   j.SourceURL,
		ReferenceID: j.ReferenceID,
		QueuedAt:    j.CreatedAt,
		Stages:      j.Statuses(),
	}
}

// JobSnapshot is a point-in-time copy of a queued job.
type JobSnapshot struct {
	JobID       string                `json:"job_id"`
	Repository  string                `json:"repository"`
	SourceURL   string                `json:"source_url"`
	ReferenceID string                `json:"reference_id,omitempty"`
	QueuedAt    time.Time             `json:"queued_at"`
	Stages      map[Stage]StageRecord `json:"status"`
}

// Result is the final outcome of processing a job.
type Result struct {
	JobID       string
	Repository  string
	Success     bool
	FailedStage Stage
	Stages      map[Stage]StageRecord
	StartedAt   time.Time
	EndedAt     time.Time
}

// Duration returns the wall clock time spent processing the job.
func (r Result) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Counts tallies stage statuses.
func (r Result) Counts() map[StageStatus]int {
	out := make(map[StageStatus]int, 5)
	for _, rec := range r.Stages {
		out[rec.Status]++
	}
	return out
}

// Locator is a parsed repository reference from ingress.
type Locator struct {
	SourceURL   string
	Owner       string
	Repo        string
	ReferenceID string
}

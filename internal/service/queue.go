package service

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/target/repodoc/internal/core"
	domainjob "github.com/target/repodoc/internal/domain/job"
	"github.com/target/repodoc/internal/domain/model"
)

// JobQueueOptions groups dependencies for JobQueue.
type JobQueueOptions struct {
	Notifier domainjob.Notifier // Optional: custom availability notifier
	Logger   *slog.Logger       // Optional: structured logger
}

// JobQueue is an unbounded in-memory FIFO of jobs waiting for the worker.
//
// Enqueue never blocks. Consumers call Subscribe to be woken when work arrives and
// Dequeue to take ownership of the oldest job. Only queued jobs are visible to Snapshot.
type JobQueue struct {
	mu     sync.Mutex
	jobs   []*model.Job
	closed bool

	notifier domainjob.Notifier
	logger   *slog.Logger
}

var _ core.JobQueue = (*JobQueue)(nil)

// NewJobQueue constructs an empty JobQueue.
func NewJobQueue(opts JobQueueOptions) *JobQueue {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = domainjob.NewNotifier()
	}
	return &JobQueue{
		notifier: notifier,
		logger:   resolveLogger(opts.Logger).With("component", "job_queue"),
	}
}

// Enqueue appends job and wakes subscribers.
func (q *JobQueue) Enqueue(job *model.Job) error {
	if job == nil {
		return errors.New("job is required")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return model.ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	depth := len(q.jobs)
	q.mu.Unlock()

	woken := q.notifier.Notify()
	q.logger.Debug("job enqueued", "job_id", job.ID, "repository", job.RepoName, "depth", depth, "woken", woken)
	return nil
}

// Dequeue removes and returns the oldest job. The caller becomes its sole owner.
func (q *JobQueue) Dequeue() (*model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job, true
}

// Subscribe registers for availability notifications. The channel is closed after Close.
func (q *JobQueue) Subscribe() (func(), <-chan struct{}) {
	return q.notifier.Subscribe()
}

// Snapshot returns copies of every queued job in FIFO order.
func (q *JobQueue) Snapshot() []model.JobSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.JobSnapshot, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, job.Snapshot())
	}
	return out
}

// Len returns the number of queued jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close rejects further enqueues and releases every subscriber.
// Jobs still queued stay available to Dequeue.
func (q *JobQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := len(q.jobs)
	q.mu.Unlock()

	if pending > 0 {
		q.logger.Warn("job queue closed with pending jobs", "pending", pending)
	}
	q.notifier.Stop()
}

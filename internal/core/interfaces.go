package core

import (
	"context"

	"github.com/target/repodoc/internal/domain/model"
)

// This file contains port definitions (hexagonal architecture).
// These interfaces define the contracts between the pipeline services and the adapters
// that run programs, persist ledgers, deliver packages and delete trees.
// Service implementations should depend on these interfaces, not concrete implementations.

// StageExecutor runs one pipeline stage against a target path.
// The returned outcome is the only information the state machine consults.
type StageExecutor interface {
	Run(ctx context.Context, targetPath string, args []string) model.StageOutcome
}

// StageExecutorFunc adapts a function to the StageExecutor interface.
type StageExecutorFunc func(ctx context.Context, targetPath string, args []string) model.StageOutcome

// Run implements StageExecutor.
func (f StageExecutorFunc) Run(ctx context.Context, targetPath string, args []string) model.StageOutcome {
	return f(ctx, targetPath, args)
}

// CommitVersionParams identifies the version being committed.
type CommitVersionParams struct {
	Repository string
	Folder     string
	Version    int
}

// VersionLedger tracks the last used archive version per repository and folder.
// Reserve advances the counter before a bundle is written so a failed write burns
// its number; Commit persists the counter once the bundle exists on disk.
type VersionLedger interface {
	Versions(ctx context.Context, repository string) (model.Ledger, error)
	Reserve(ctx context.Context, repository, folder string) (int, error)
	Commit(ctx context.Context, params CommitVersionParams) error
}

// ArchiveMirror copies a finished archive bundle to secondary storage.
type ArchiveMirror interface {
	Mirror(ctx context.Context, repository string, rec model.ArchiveRecord) error
}

// RepositoryLock serializes archive directory access per repository across processes.
type RepositoryLock interface {
	Acquire(ctx context.Context, repository string) (release func(context.Context) error, err error)
}

// ArchiveDeliverer sends the deliverable package for a repository.
type ArchiveDeliverer interface {
	Send(ctx context.Context, req model.DeliveryRequest) error
}

// TreeDeleter removes a directory tree and succeeds only if the path is gone afterwards.
type TreeDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Archiver bundles every documentation folder under a repository path.
type Archiver interface {
	ArchiveAll(ctx context.Context, repository, repoPath string) ([]model.ArchiveRecord, error)
	ArchiveDir(repository string) string
}

// JobProcessor drives one job through every stage.
type JobProcessor interface {
	Process(ctx context.Context, job *model.Job) model.Result
}

// JobQueue is the FIFO handoff between ingress and the worker.
type JobQueue interface {
	Enqueue(job *model.Job) error
	Dequeue() (*model.Job, bool)
	Subscribe() (func(), <-chan struct{})
	Snapshot() []model.JobSnapshot
	Len() int
}

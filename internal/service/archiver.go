package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/util"
)

// DefaultDocFolders are the documentation folders produced by the documentation stages.
var DefaultDocFolders = []string{
	"API Documentation",
	"Classifier",
	"Logic Understanding",
	"UAT Documentation",
}

// ArchiverOptions groups dependencies for Archiver.
type ArchiverOptions struct {
	Root    string             // Required: archive root; each repository gets Root/<repo>
	Ledger  core.VersionLedger // Required: archive version ledger
	Folders []string           // Optional: documentation folders, defaults to DefaultDocFolders
	Lock    core.RepositoryLock
	Mirror  core.ArchiveMirror
	Logger  *slog.Logger
	Now     func() time.Time
}

// Archiver writes one versioned zip bundle per documentation folder.
type Archiver struct {
	root    string
	ledger  core.VersionLedger
	folders []string
	lock    core.RepositoryLock
	mirror  core.ArchiveMirror
	logger  *slog.Logger
	now     func() time.Time
}

var _ core.Archiver = (*Archiver)(nil)

// NewArchiver constructs an Archiver.
func NewArchiver(opts ArchiverOptions) (*Archiver, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("archive root is required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("VersionLedger is required")
	}
	folders := make([]string, 0, len(opts.Folders))
	for _, f := range opts.Folders {
		if f = strings.TrimSpace(f); f != "" {
			folders = append(folders, f)
		}
	}
	if len(folders) == 0 {
		folders = append(folders, DefaultDocFolders...)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Archiver{
		root:    opts.Root,
		ledger:  opts.Ledger,
		folders: folders,
		lock:    opts.Lock,
		mirror:  opts.Mirror,
		logger:  resolveLogger(opts.Logger).With("component", "archiver"),
		now:     now,
	}, nil
}

// ArchiveDir returns the directory holding every bundle of repository.
func (a *Archiver) ArchiveDir(repository string) string {
	return filepath.Join(a.root, repository)
}

// ArchiveAll bundles each documentation folder present under repoPath.
// Absent folders are skipped. A failing folder does not stop the others; every
// failure is returned joined alongside the records that were written.
func (a *Archiver) ArchiveAll(ctx context.Context, repository, repoPath string) ([]model.ArchiveRecord, error) {
	info, err := os.Stat(repoPath)
	if err != nil {
		return nil, fmt.Errorf("stat repository path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository path %s is not a directory", repoPath)
	}

	if a.lock != nil {
		release, lockErr := a.lock.Acquire(ctx, repository)
		if lockErr != nil {
			return nil, fmt.Errorf("lock archive directory: %w", lockErr)
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				a.logger.WarnContext(ctx, "release archive lock failed", "repository", repository, "error", relErr)
			}
		}()
	}

	dir := a.ArchiveDir(repository)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	var (
		records []model.ArchiveRecord
		errs    []error
	)
	for _, folder := range a.folders {
		src := filepath.Join(repoPath, folder)
		if fi, statErr := os.Stat(src); statErr != nil || !fi.IsDir() {
			a.logger.DebugContext(ctx, "documentation folder absent", "repository", repository, "folder", folder)
			continue
		}
		rec, archErr := a.archiveFolder(ctx, repository, folder, src, dir)
		if archErr != nil {
			a.logger.ErrorContext(ctx, "archive failed", "repository", repository, "folder", folder, "error", archErr)
			errs = append(errs, fmt.Errorf("%s: %w", folder, archErr))
			continue
		}
		records = append(records, rec)
	}

	a.logger.InfoContext(ctx, "archiving finished",
		"repository", repository,
		"archived", len(records),
		"failed", len(errs),
	)
	return records, errors.Join(errs...)
}

func (a *Archiver) archiveFolder(ctx context.Context, repository, folder, src, dir string) (model.ArchiveRecord, error) {
	version, err := a.ledger.Reserve(ctx, repository, folder)
	if err != nil {
		return model.ArchiveRecord{}, fmt.Errorf("reserve version: %w", err)
	}

	entries, err := util.DirEntries(src)
	if err != nil {
		return model.ArchiveRecord{}, fmt.Errorf("list files: %w", err)
	}

	at := a.now().UTC()
	rec := model.ArchiveRecord{
		Folder:    folder,
		Version:   version,
		Path:      filepath.Join(dir, model.ArchiveName(folder, version, at)),
		CreatedAt: at,
	}
	if err := util.WriteZip(rec.Path, entries, nil); err != nil {
		return model.ArchiveRecord{}, fmt.Errorf("write bundle v%d: %w", version, err)
	}

	if err := a.ledger.Commit(ctx, core.CommitVersionParams{
		Repository: repository,
		Folder:     folder,
		Version:    version,
	}); err != nil {
		return model.ArchiveRecord{}, fmt.Errorf("commit version %d: %w", version, err)
	}
	a.logger.InfoContext(ctx, "folder archived",
		"repository", repository,
		"folder", folder,
		"version", version,
		"files", len(entries),
		"path", rec.Path,
	)

	if a.mirror != nil {
		if err := a.mirror.Mirror(ctx, repository, rec); err != nil {
			a.logger.WarnContext(ctx, "archive mirror failed", "repository", repository, "path", rec.Path, "error", err)
		}
	}
	return rec, nil
}

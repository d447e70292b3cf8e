package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
)

// VersionsFileName is the ledger file kept inside each repository archive directory.
const VersionsFileName = "versions.json"

var archiveFilePattern = regexp.MustCompile(`^(.+)_v(\d+)_\d{8}_\d{6}\.zip$`)

// FileLedgerOptions configures a FileLedger.
type FileLedgerOptions struct {
	// Root is the directory holding one archive directory per repository.
	Root   string
	Logger *slog.Logger
}

// FileLedger persists archive versions as versions.json next to the archives themselves.
//
// Reserved numbers are kept in memory until committed, and the next number never falls
// below the highest version found among archive files already on disk. A missing or
// corrupt versions.json therefore cannot cause a number to be handed out twice.
type FileLedger struct {
	root   string
	logger *slog.Logger

	mu       sync.Mutex
	reserved map[string]model.Ledger
}

var _ core.VersionLedger = (*FileLedger)(nil)

// NewFileLedger creates a FileLedger rooted at opts.Root.
func NewFileLedger(opts FileLedgerOptions) *FileLedger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLedger{
		root:     opts.Root,
		logger:   logger.With("component", "file_ledger"),
		reserved: make(map[string]model.Ledger),
	}
}

// Path returns the versions.json location for repository.
func (l *FileLedger) Path(repository string) string {
	return filepath.Join(l.root, repository, VersionsFileName)
}

// Versions returns the committed counters merged with the archive files present on disk.
func (l *FileLedger) Versions(ctx context.Context, repository string) (model.Ledger, error) {
	if err := validateRepositoryName(repository); err != nil {
		return nil, err
	}
	return l.load(ctx, repository)
}

// Reserve returns the next unused version for folder and holds it until Commit.
func (l *FileLedger) Reserve(ctx context.Context, repository, folder string) (int, error) {
	if err := validateRepositoryName(repository); err != nil {
		return 0, err
	}
	if strings.TrimSpace(folder) == "" {
		return 0, errors.New("folder is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.load(ctx, repository)
	if err != nil {
		return 0, err
	}
	mem := l.reserved[repository]
	if mem == nil {
		mem = model.Ledger{}
		l.reserved[repository] = mem
	}
	current.Merge(mem)

	next := current.Next(folder)
	mem[folder] = next
	return next, nil
}

// Commit records version as used for folder and rewrites versions.json atomically.
func (l *FileLedger) Commit(ctx context.Context, params core.CommitVersionParams) error {
	if err := validateRepositoryName(params.Repository); err != nil {
		return err
	}
	if strings.TrimSpace(params.Folder) == "" {
		return errors.New("folder is required")
	}
	if params.Version <= 0 {
		return fmt.Errorf("invalid version %d", params.Version)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.readFile(ctx, params.Repository)
	if err != nil {
		return err
	}
	current.Merge(model.Ledger{params.Folder: params.Version})

	if err := writeJSONAtomic(l.Path(params.Repository), current); err != nil {
		return fmt.Errorf("save versions: %w", err)
	}
	return nil
}

func (l *FileLedger) load(ctx context.Context, repository string) (model.Ledger, error) {
	current, err := l.readFile(ctx, repository)
	if err != nil {
		return nil, err
	}
	scanned, err := scanArchiveVersions(filepath.Join(l.root, repository))
	if err != nil {
		return nil, err
	}
	current.Merge(scanned)
	return current, nil
}

// readFile returns the stored ledger. A corrupt file is reported and treated as empty.
func (l *FileLedger) readFile(ctx context.Context, repository string) (model.Ledger, error) {
	path := l.Path(repository)
	out := model.Ledger{}
	found, err := readJSON(path, &out)
	if err == nil {
		return out, nil
	}
	if !found {
		return nil, err
	}
	l.logger.WarnContext(ctx, "ignoring unreadable versions file",
		"repository", repository,
		"path", path,
		"error", err,
	)
	return model.Ledger{}, nil
}

// scanArchiveVersions returns the highest version per folder among archive files in dir.
func scanArchiveVersions(dir string) (model.Ledger, error) {
	out := model.Ledger{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("scan archives: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := archiveFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, convErr := strconv.Atoi(m[2])
		if convErr != nil {
			continue
		}
		if v > out[m[1]] {
			out[m[1]] = v
		}
	}
	return out, nil
}

func validateRepositoryName(repository string) error {
	name := strings.TrimSpace(repository)
	if name == "" {
		return errors.New("repository is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid repository name %q", repository)
	}
	return nil
}

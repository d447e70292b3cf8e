package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/target/repodoc/internal/core"
)

const (
	dirLockParentName   = ".locks"
	dirLockOwnerFile    = "owner.json"
	defaultLockPollWait = 200 * time.Millisecond
)

type dirLockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// DirLockOptions configures a DirLock.
type DirLockOptions struct {
	// Root is the archive root; lock directories live under Root/.locks.
	Root string
	// TTL after which a lock left behind by a crashed owner is broken. Zero never breaks locks.
	TTL          time.Duration
	PollInterval time.Duration
	Clock        Clock
}

// DirLock implements core.RepositoryLock with mkdir, which is atomic on local
// and most network filesystems. It serializes processes sharing one archive root.
type DirLock struct {
	root  string
	ttl   time.Duration
	poll  time.Duration
	clock Clock
}

var _ core.RepositoryLock = (*DirLock)(nil)

// NewDirLock creates a DirLock.
func NewDirLock(opts DirLockOptions) *DirLock {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultLockPollWait
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &DirLock{root: opts.Root, ttl: opts.TTL, poll: poll, clock: clock}
}

func (l *DirLock) lockDir(repository string) string {
	return filepath.Join(l.root, dirLockParentName, repository+".lock")
}

// Acquire blocks until the lock for repository is free or ctx is done.
func (l *DirLock) Acquire(ctx context.Context, repository string) (func(context.Context) error, error) {
	if err := validateRepositoryName(repository); err != nil {
		return nil, err
	}
	dir := l.lockDir(repository)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create lock parent: %w", err)
	}

	for {
		ok, err := l.tryAcquire(dir)
		if err != nil {
			return nil, err
		}
		if ok {
			return func(context.Context) error { return releaseDirLock(dir) }, nil
		}
		if l.breakStale(dir) {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, describeDirLockOwner(dir))
		case <-time.After(l.poll):
		}
	}
}

func (l *DirLock) tryAcquire(dir string) (bool, error) {
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", dir, err)
	}

	owner := dirLockOwner{
		PID:       os.Getpid(),
		CreatedAt: l.clock.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := writeJSONAtomic(filepath.Join(dir, dirLockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(dir)
		return false, fmt.Errorf("write lock owner: %w", err)
	}
	return true, nil
}

// breakStale removes a lock whose owner record is older than the TTL.
// A lock without a readable owner is only broken once the directory itself is older than the TTL.
func (l *DirLock) breakStale(dir string) bool {
	if l.ttl <= 0 {
		return false
	}
	var created time.Time
	var owner dirLockOwner
	if found, err := readJSON(filepath.Join(dir, dirLockOwnerFile), &owner); found && err == nil {
		if ts, parseErr := time.Parse(time.RFC3339, owner.CreatedAt); parseErr == nil {
			created = ts
		}
	}
	if created.IsZero() {
		info, err := os.Stat(dir)
		if err != nil {
			// Released between attempts.
			return errors.Is(err, os.ErrNotExist)
		}
		created = info.ModTime()
	}
	if l.clock.Now().Sub(created) < l.ttl {
		return false
	}
	return os.RemoveAll(dir) == nil
}

func releaseDirLock(dir string) error {
	_ = os.Remove(filepath.Join(dir, dirLockOwnerFile))
	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", dir, err)
	}
	return nil
}

func describeDirLockOwner(dir string) string {
	var owner dirLockOwner
	if found, err := readJSON(filepath.Join(dir, dirLockOwnerFile), &owner); found && err == nil && owner.PID > 0 {
		return fmt.Sprintf("%s (pid=%d created_at=%s host=%s)", dir, owner.PID, owner.CreatedAt, owner.Hostname)
	}
	return dir
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}

// NoopLock is a RepositoryLock that never blocks. Suitable when a single process owns the archive root.
type NoopLock struct{}

var _ core.RepositoryLock = NoopLock{}

// Acquire implements core.RepositoryLock.
func (NoopLock) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

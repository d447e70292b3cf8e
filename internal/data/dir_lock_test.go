package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLock_AcquireRelease(t *testing.T) {
	root := t.TempDir()
	lock := NewDirLock(DirLockOptions{Root: root, PollInterval: 5 * time.Millisecond})
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "demo")
	require.NoError(t, err)

	owner := filepath.Join(root, dirLockParentName, "demo.lock", dirLockOwnerFile)
	_, err = os.Stat(owner)
	require.NoError(t, err)

	require.NoError(t, release(ctx))
	_, err = os.Stat(filepath.Dir(owner))
	assert.True(t, os.IsNotExist(err))

	release, err = lock.Acquire(ctx, "demo")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestDirLock_HeldUntilContextDone(t *testing.T) {
	lock := NewDirLock(DirLockOptions{Root: t.TempDir(), PollInterval: 5 * time.Millisecond})

	release, err := lock.Acquire(context.Background(), "demo")
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = lock.Acquire(ctx, "demo")
	require.ErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "pid=")
}

func TestDirLock_WaitsForRelease(t *testing.T) {
	lock := NewDirLock(DirLockOptions{Root: t.TempDir(), PollInterval: 5 * time.Millisecond})

	release, err := lock.Acquire(context.Background(), "demo")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = release(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	second, err := lock.Acquire(ctx, "demo")
	require.NoError(t, err)
	require.NoError(t, second(ctx))
}

func TestDirLock_BreaksStaleLock(t *testing.T) {
	root := t.TempDir()
	clock := NewManualClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	lock := NewDirLock(DirLockOptions{Root: root, TTL: time.Minute, PollInterval: 5 * time.Millisecond, Clock: clock})

	_, err := lock.Acquire(context.Background(), "demo")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := lock.Acquire(ctx, "demo")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestDirLock_RejectsInvalidRepository(t *testing.T) {
	lock := NewDirLock(DirLockOptions{Root: t.TempDir()})
	_, err := lock.Acquire(context.Background(), "../x")
	require.Error(t, err)
}

func TestNoopLock(t *testing.T) {
	release, err := NoopLock{}.Acquire(context.Background(), "demo")
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

package data

import "errors"

// Shared sentinel errors for data-layer adapters.
var (
	// ErrLockHeld is returned when a repository lock is still owned by someone else
	// once the caller's context expires.
	ErrLockHeld = errors.New("repository lock held")
	// ErrLockNotOwned is returned when releasing a lock whose ownership was lost.
	ErrLockNotOwned = errors.New("repository lock not owned")
)

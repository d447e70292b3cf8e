// Package mocks provides mock implementations of the pipeline ports for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/core.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	exec := mocks.NewMockStageExecutor(ctrl)
//	exec.EXPECT().Run(gomock.Any(), "/work/widget", gomock.Nil()).Return(model.Succeeded(""))
package mocks

// Generate mock for StageExecutor interface from internal/core package.
// This creates MockStageExecutor with methods for all StageExecutor interface methods:
// Run
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=stage_executor_mock.go github.com/target/repodoc/internal/core StageExecutor

// Generate mock for ArchiveDeliverer interface from internal/core package.
// This creates MockArchiveDeliverer with methods for all ArchiveDeliverer interface methods:
// Send
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=archive_deliverer_mock.go github.com/target/repodoc/internal/core ArchiveDeliverer

// Generate mock for VersionLedger interface from internal/core package.
// This creates MockVersionLedger with methods for all VersionLedger interface methods:
// Versions, Reserve, Commit
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=version_ledger_mock.go github.com/target/repodoc/internal/core VersionLedger

// Generate mock for RepositoryLock interface from internal/core package.
// This creates MockRepositoryLock with methods for all RepositoryLock interface methods:
// Acquire
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=repository_lock_mock.go github.com/target/repodoc/internal/core RepositoryLock

// Generate mock for TreeDeleter interface from internal/core package.
// This creates MockTreeDeleter with methods for all TreeDeleter interface methods:
// Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=tree_deleter_mock.go github.com/target/repodoc/internal/core TreeDeleter

// Generate mock for Archiver interface from internal/core package.
// This creates MockArchiver with methods for all Archiver interface methods:
// ArchiveAll, ArchiveDir
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=archiver_mock.go github.com/target/repodoc/internal/core Archiver

//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are run via `go run` or installed with `go install` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// mockgen - Regenerates internal/mocks from the ports in internal/core
//   Run: go generate ./internal/mocks
//   Version: v0.6.0 (matches go.uber.org/mock in go.mod)
//   Docs: https://github.com/uber-go/mock
//
// Integration tests against PostgreSQL and Redis
//   Run: TEST_DB_HOST=localhost REDIS_ADDR=localhost:6379 go test ./internal/data/...
//   Schema: go run ./cmd/repodoc-admin migrate

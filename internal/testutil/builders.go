// Package testutil provides testing utilities and helpers for the repodoc pipeline.
package testutil

import (
	"os"
	"path/filepath"
	"time"

	"github.com/target/repodoc/internal/domain/model"
)

// JobBuilder provides a fluent interface for building jobs for testing.
type JobBuilder struct {
	req model.NewJobRequest
	now time.Time
}

// NewJob creates a JobBuilder for github.com/acme/demo queued at TestTime.
func NewJob() *JobBuilder {
	return &JobBuilder{
		req: model.NewJobRequest{
			SourceURL: "https://github.com/acme/demo.git",
			RepoName:  "demo",
			TargetDir: "/work",
		},
		now: TestTime(),
	}
}

// WithRepo sets the repository name and derives the source URL from it.
func (b *JobBuilder) WithRepo(repo string) *JobBuilder {
	b.req.RepoName = repo
	b.req.SourceURL = "https://github.com/acme/" + repo + ".git"
	return b
}

// WithTargetDir sets the clone target directory.
func (b *JobBuilder) WithTargetDir(dir string) *JobBuilder {
	b.req.TargetDir = dir
	return b
}

// WithEndpoint enables ARCHIVE_SEND with the given delivery endpoint.
func (b *JobBuilder) WithEndpoint(endpoint string) *JobBuilder {
	b.req.Endpoint = endpoint
	return b
}

// WithReferenceID sets the reference identifier forwarded on delivery.
func (b *JobBuilder) WithReferenceID(ref string) *JobBuilder {
	b.req.ReferenceID = ref
	return b
}

// QueuedAt sets the creation time.
func (b *JobBuilder) QueuedAt(t time.Time) *JobBuilder {
	b.now = t
	return b
}

// Build creates the job, failing the test on invalid input.
func (b *JobBuilder) Build(t TestingTB) *model.Job {
	t.Helper()
	job, err := model.NewJob(b.req, b.now)
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	return job
}

// WriteDocTree creates repoPath with one index.md per documentation folder.
func WriteDocTree(t TestingTB, repoPath string, folders ...string) {
	t.Helper()
	for _, folder := range folders {
		dir := filepath.Join(repoPath, folder)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "index.md"), []byte("# "+folder+"\n"), 0o644); err != nil { //nolint:gosec // test fixture
			t.Fatalf("write %s: %v", dir, err)
		}
	}
}

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/config"
	"github.com/target/repodoc/internal/testutil"
)

func newTestContext(t *testing.T, stdin string) (*commandContext, *bytes.Buffer) {
	t.Helper()
	cfg := config.AppConfig{
		Pipeline: config.PipelineConfig{
			TargetDir:       t.TempDir(),
			VCSProcessNames: []string{"repodoc-test-no-such-tool"},
		},
		Ledger: config.LedgerConfig{Backend: config.LedgerBackendFile},
		Lock:   config.LockConfig{Backend: config.LockBackendNone},
	}
	cfg.Sanitize()
	out := &bytes.Buffer{}
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
		Stdout: out,
		Stdin:  strings.NewReader(stdin),
	}, out
}

func makeRepo(t *testing.T, cmdCtx *commandContext) string {
	t.Helper()
	repo := filepath.Join(cmdCtx.Config.Pipeline.TargetDir, "widgets")
	testutil.WriteDocTree(t, repo, "Classifier", "UAT Documentation")
	return repo
}

func TestRunArchive_ThenLedger(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")
	repo := makeRepo(t, cmdCtx)

	require.NoError(t, runArchive(cmdCtx, []string{"-path", repo}))
	assert.Contains(t, out.String(), "Classifier")
	assert.Contains(t, out.String(), "UAT Documentation")

	_, err := os.Stat(repo)
	require.NoError(t, err, "archive must not delete the repository")

	out.Reset()
	require.NoError(t, runArchive(cmdCtx, []string{"-path", repo}))
	assert.Contains(t, out.String(), "Classifier_v2_")

	out.Reset()
	require.NoError(t, runLedger(cmdCtx, []string{"-repo", "widgets"}))
	assert.Contains(t, out.String(), "LAST VERSION")
	assert.Regexp(t, `Classifier\s+2`, out.String())
}

func TestRunArchive_RequiresPath(t *testing.T) {
	cmdCtx, _ := newTestContext(t, "")
	require.Error(t, runArchive(cmdCtx, nil))
}

func TestRunDelete_ArchivesThenDeletes(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")
	repo := makeRepo(t, cmdCtx)

	require.NoError(t, runDelete(cmdCtx, []string{"-path", repo, "-yes"}))
	_, err := os.Stat(repo)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, out.String(), "Deleted: true")

	archives, err := filepath.Glob(filepath.Join(cmdCtx.Config.Pipeline.ArchiveRoot, "widgets", "*.zip"))
	require.NoError(t, err)
	assert.Len(t, archives, 2)
}

func TestRunDelete_AbortsWithoutConfirmation(t *testing.T) {
	cmdCtx, _ := newTestContext(t, "n\n")
	repo := makeRepo(t, cmdCtx)

	require.ErrorContains(t, runDelete(cmdCtx, []string{"-path", repo}), "aborted")
	_, err := os.Stat(repo)
	require.NoError(t, err)
}

func TestRunSend(t *testing.T) {
	var gotRepo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRepo = r.Header.Get("X-Repository-Name")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cmdCtx, out := newTestContext(t, "")
	repo := makeRepo(t, cmdCtx)
	require.NoError(t, runArchive(cmdCtx, []string{"-path", repo}))

	out.Reset()
	require.NoError(t, runSend(cmdCtx, []string{"-repo", "widgets", "-endpoint", srv.URL, "-reference-id", "abc"}))
	assert.Equal(t, "widgets", gotRepo)
	assert.Contains(t, out.String(), "Sent archives")
}

func TestRunSend_RequiresEndpoint(t *testing.T) {
	cmdCtx, _ := newTestContext(t, "")
	require.ErrorContains(t, runSend(cmdCtx, []string{"-repo", "widgets"}), "endpoint")
	require.Error(t, runSend(cmdCtx, []string{"-repo", "widgets", "-endpoint", "ftp://example.com"}))
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	_, err = parseMigrateFlags([]string{"-timeout", "0s"})
	require.Error(t, err)
}

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	for name := range commands() {
		assert.Contains(t, buf.String(), name)
	}
}

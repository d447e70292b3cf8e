package service

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/data"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/mocks"
	"go.uber.org/mock/gomock"
)

type tickingClock struct{ t time.Time }

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func writeDocFolder(t *testing.T, repoPath, folder string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(repoPath, folder, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func newFileArchiver(t *testing.T, root string) *Archiver {
	t.Helper()
	clock := &tickingClock{t: time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)}
	a, err := NewArchiver(ArchiverOptions{
		Root:   root,
		Ledger: data.NewFileLedger(data.FileLedgerOptions{Root: root}),
		Lock:   data.NewDirLock(data.DirLockOptions{Root: root}),
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return a
}

func TestArchiver_ArchivesPresentFolders(t *testing.T) {
	root := t.TempDir()
	repoPath := filepath.Join(t.TempDir(), "widget")
	writeDocFolder(t, repoPath, "Classifier", map[string]string{"routes.json": "{}", "nested/files.txt": "a"})
	writeDocFolder(t, repoPath, "UAT Documentation", map[string]string{"uat.md": "# uat"})

	a := newFileArchiver(t, root)
	records, err := a.ArchiveAll(context.Background(), "widget", repoPath)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Classifier", records[0].Folder)
	assert.Equal(t, 1, records[0].Version)
	assert.Equal(t, "Classifier_v1_20240305_143001.zip", filepath.Base(records[0].Path))
	assert.Equal(t, []string{"nested/files.txt", "routes.json"}, zipNames(t, records[0].Path))
	assert.Equal(t, "UAT Documentation", records[1].Folder)
	assert.Equal(t, 1, records[1].Version)
	assert.Equal(t, filepath.Join(root, "widget"), filepath.Dir(records[1].Path))

	_, err = os.Stat(filepath.Join(root, ".locks", "widget.lock"))
	assert.True(t, os.IsNotExist(err), "lock should be released")
}

func TestArchiver_VersionsFollowLedger(t *testing.T) {
	root := t.TempDir()
	repoPath := filepath.Join(t.TempDir(), "widget")
	writeDocFolder(t, repoPath, "API Documentation", map[string]string{"api.md": "x"})
	writeDocFolder(t, repoPath, "Logic Understanding", map[string]string{"logic.md": "y"})

	ledgerPath := filepath.Join(root, "widget", data.VersionsFileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(ledgerPath), 0o755))
	require.NoError(t, os.WriteFile(ledgerPath, []byte(`{"API Documentation": 3}`), 0o644))

	a := newFileArchiver(t, root)
	records, err := a.ArchiveAll(context.Background(), "widget", repoPath)
	require.NoError(t, err)
	require.Len(t, records, 2)

	got := map[string]int{}
	for _, r := range records {
		got[r.Folder] = r.Version
	}
	assert.Equal(t, map[string]int{"API Documentation": 4, "Logic Understanding": 1}, got)

	ledger, err := data.NewFileLedger(data.FileLedgerOptions{Root: root}).Versions(context.Background(), "widget")
	require.NoError(t, err)
	assert.Equal(t, 4, ledger["API Documentation"])
	assert.Equal(t, 1, ledger["Logic Understanding"])
}

func TestArchiver_VersionsStrictlyIncrease(t *testing.T) {
	root := t.TempDir()
	repoPath := filepath.Join(t.TempDir(), "widget")
	writeDocFolder(t, repoPath, "Classifier", map[string]string{"c.json": "{}"})

	a := newFileArchiver(t, root)
	prev := 0
	for i := 0; i < 4; i++ {
		records, err := a.ArchiveAll(context.Background(), "widget", repoPath)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Greater(t, records[0].Version, prev)
		prev = records[0].Version
	}

	entries, err := os.ReadDir(filepath.Join(root, "widget"))
	require.NoError(t, err)
	zips := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".zip" {
			zips++
		}
	}
	assert.Equal(t, 4, zips)
}

func TestArchiver_NoFoldersIsNoop(t *testing.T) {
	root := t.TempDir()
	repoPath := t.TempDir()

	a := newFileArchiver(t, root)
	records, err := a.ArchiveAll(context.Background(), "widget", repoPath)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestArchiver_FailedCommitBurnsNumberButContinues(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockVersionLedger(ctrl)
	root := t.TempDir()
	repoPath := filepath.Join(t.TempDir(), "widget")
	writeDocFolder(t, repoPath, "API Documentation", map[string]string{"api.md": "x"})
	writeDocFolder(t, repoPath, "Classifier", map[string]string{"c.json": "{}"})

	gomock.InOrder(
		ledger.EXPECT().Reserve(gomock.Any(), "widget", "API Documentation").Return(7, nil),
		ledger.EXPECT().Commit(gomock.Any(), core.CommitVersionParams{Repository: "widget", Folder: "API Documentation", Version: 7}).
			Return(errors.New("disk full")),
		ledger.EXPECT().Reserve(gomock.Any(), "widget", "Classifier").Return(2, nil),
		ledger.EXPECT().Commit(gomock.Any(), core.CommitVersionParams{Repository: "widget", Folder: "Classifier", Version: 2}).
			Return(nil),
	)

	a, err := NewArchiver(ArchiverOptions{Root: root, Ledger: ledger})
	require.NoError(t, err)
	records, err := a.ArchiveAll(context.Background(), "widget", repoPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API Documentation")
	require.Len(t, records, 1)
	assert.Equal(t, "Classifier", records[0].Folder)
}

func TestArchiver_LockFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	lock := mocks.NewMockRepositoryLock(ctrl)
	lock.EXPECT().Acquire(gomock.Any(), "widget").Return(nil, data.ErrLockHeld)

	a, err := NewArchiver(ArchiverOptions{
		Root:   t.TempDir(),
		Ledger: mocks.NewMockVersionLedger(ctrl),
		Lock:   lock,
	})
	require.NoError(t, err)
	_, err = a.ArchiveAll(context.Background(), "widget", t.TempDir())
	require.ErrorIs(t, err, data.ErrLockHeld)
}

type recordingMirror struct{ got []model.ArchiveRecord }

func (m *recordingMirror) Mirror(_ context.Context, _ string, rec model.ArchiveRecord) error {
	m.got = append(m.got, rec)
	return errors.New("bucket offline")
}

func TestArchiver_MirrorFailureIsNotFatal(t *testing.T) {
	root := t.TempDir()
	repoPath := filepath.Join(t.TempDir(), "widget")
	writeDocFolder(t, repoPath, "Classifier", map[string]string{"c.json": "{}"})

	mirror := &recordingMirror{}
	a, err := NewArchiver(ArchiverOptions{
		Root:   root,
		Ledger: data.NewFileLedger(data.FileLedgerOptions{Root: root}),
		Mirror: mirror,
	})
	require.NoError(t, err)
	records, err := a.ArchiveAll(context.Background(), "widget", repoPath)
	require.NoError(t, err)
	require.Len(t, mirror.got, 1)
	assert.Equal(t, records[0], mirror.got[0])
}

func TestNewArchiver_Validation(t *testing.T) {
	_, err := NewArchiver(ArchiverOptions{Ledger: data.NewFileLedger(data.FileLedgerOptions{Root: "x"})})
	require.Error(t, err)
	_, err = NewArchiver(ArchiverOptions{Root: "x"})
	require.Error(t, err)
}

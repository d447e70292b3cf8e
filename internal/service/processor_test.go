package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/internal/adapters/deliverer"
	"github.com/target/repodoc/internal/adapters/forcedelete"
	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/data"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/mocks"
	"github.com/target/repodoc/internal/observability/statsd"
	"go.uber.org/mock/gomock"
)

type processorFixture struct {
	job       *model.Job
	executors map[model.Stage]*mocks.MockStageExecutor
}

func newProcessorFixture(t *testing.T, ctrl *gomock.Controller, endpoint string) processorFixture {
	t.Helper()
	job, err := model.NewJob(model.NewJobRequest{
		SourceURL:   "https://github.com/acme/widget.git",
		RepoName:    "widget",
		TargetDir:   t.TempDir(),
		Endpoint:    endpoint,
		ReferenceID: "REF-1",
	}, time.Now())
	require.NoError(t, err)

	execs := make(map[model.Stage]*mocks.MockStageExecutor)
	for _, s := range model.Stages() {
		execs[s] = mocks.NewMockStageExecutor(ctrl)
	}
	return processorFixture{job: job, executors: execs}
}

func (f processorFixture) ports() map[model.Stage]core.StageExecutor {
	out := make(map[model.Stage]core.StageExecutor, len(f.executors))
	for s, e := range f.executors {
		out[s] = e
	}
	return out
}

func (f processorFixture) expectSuccess(stages ...model.Stage) {
	for _, s := range stages {
		target, args := StageInvocation(f.job, s)
		f.executors[s].EXPECT().Run(gomock.Any(), target, args).Return(model.Succeeded(string(s) + " ok"))
	}
}

func statuses(res model.Result) map[model.Stage]model.StageStatus {
	out := make(map[model.Stage]model.StageStatus, len(res.Stages))
	for s, rec := range res.Stages {
		out[s] = rec.Status
	}
	return out
}

func TestRepositoryProcessor_AllStagesSucceed(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, "https://archive.example.com/ingest")
	gomock.InOrder(
		f.executors[model.StageClone].EXPECT().
			Run(gomock.Any(), f.job.TargetDir, []string{"https://github.com/acme/widget.git"}).
			Return(model.Succeeded("cloned")),
		f.executors[model.StageClassify].EXPECT().Run(gomock.Any(), f.job.RepoPath(), gomock.Nil()).Return(model.Succeeded("")),
		f.executors[model.StageDocProject].EXPECT().Run(gomock.Any(), f.job.RepoPath(), gomock.Nil()).Return(model.Succeeded("")),
		f.executors[model.StageDocUAT].EXPECT().Run(gomock.Any(), f.job.RepoPath(), gomock.Nil()).Return(model.Succeeded("")),
		f.executors[model.StageDocAPI].EXPECT().Run(gomock.Any(), f.job.RepoPath(), gomock.Nil()).Return(model.Succeeded("")),
		f.executors[model.StageArchiveSend].EXPECT().
			Run(gomock.Any(), f.job.RepoPath(), []string{"https://archive.example.com/ingest", "REF-1"}).
			Return(model.Succeeded("")),
		f.executors[model.StageDelete].EXPECT().Run(gomock.Any(), f.job.RepoPath(), gomock.Nil()).Return(model.Succeeded("")),
	)

	rec := &statsd.Recorder{}
	p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: f.ports(), Metrics: rec})
	require.NoError(t, err)

	res := p.Process(context.Background(), f.job)
	assert.True(t, res.Success)
	assert.Empty(t, res.FailedStage)
	for s, st := range statuses(res) {
		assert.Equal(t, model.StageStatusCompleted, st, s)
		assert.NotNil(t, res.Stages[s].StartedAt, s)
		assert.NotNil(t, res.Stages[s].CompletedAt, s)
	}
	assert.Equal(t, f.job.ID.String(), res.JobID)
	assert.False(t, res.EndedAt.Before(res.StartedAt))

	assert.Len(t, rec.Named("stage.transition"), len(model.Stages()))
	jobs := rec.Named("job.finished")
	require.Len(t, jobs, 1)
	assert.Equal(t, "completed", jobs[0].Tags["outcome"])
	assert.Empty(t, jobs[0].Tags["error_class"])
}

func TestRepositoryProcessor_DocAPIFailureIsTolerated(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, "https://archive.example.com/ingest")
	f.expectSuccess(model.StageClone, model.StageClassify, model.StageDocProject, model.StageDocUAT)
	f.executors[model.StageDocAPI].EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.Failed(errors.New("quota exceeded"), "partial output"))
	f.expectSuccess(model.StageArchiveSend, model.StageDelete)

	p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: f.ports()})
	require.NoError(t, err)

	res := p.Process(context.Background(), f.job)
	assert.True(t, res.Success)
	got := statuses(res)
	assert.Equal(t, model.StageStatusSkipped, got[model.StageDocAPI])
	assert.Equal(t, model.StageStatusCompleted, got[model.StageArchiveSend])
	assert.Equal(t, model.StageStatusCompleted, got[model.StageDelete])
	assert.Contains(t, res.Stages[model.StageDocAPI].Error, "quota exceeded")
	assert.Equal(t, "partial output", res.Stages[model.StageDocAPI].Output)
}

func TestRepositoryProcessor_CriticalFailureHalts(t *testing.T) {
	for _, failing := range []model.Stage{model.StageClone, model.StageClassify, model.StageDocProject, model.StageDocUAT} {
		t.Run(string(failing), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			f := newProcessorFixture(t, ctrl, "")

			var before []model.Stage
			for _, s := range model.Stages() {
				if s == failing {
					break
				}
				before = append(before, s)
			}
			f.expectSuccess(before...)
			f.executors[failing].EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(model.StageOutcome{Success: false, Output: "boom"})

			p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: f.ports()})
			require.NoError(t, err)

			res := p.Process(context.Background(), f.job)
			assert.False(t, res.Success)
			assert.Equal(t, failing, res.FailedStage)
			assert.NotEmpty(t, res.Stages[failing].Error)

			seen := false
			for _, s := range model.Stages() {
				switch {
				case s == failing:
					seen = true
					assert.Equal(t, model.StageStatusFailed, res.Stages[s].Status)
				case seen:
					assert.Equal(t, model.StageStatusPending, res.Stages[s].Status, s)
				default:
					assert.Equal(t, model.StageStatusCompleted, res.Stages[s].Status, s)
				}
			}
		})
	}
}

func TestRepositoryProcessor_ArchiveSendFailureBlocksDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, "https://archive.example.com/ingest")
	f.expectSuccess(model.StageClone, model.StageClassify, model.StageDocProject, model.StageDocUAT, model.StageDocAPI)
	f.executors[model.StageArchiveSend].EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.Failed(errors.New("502"), ""))
	// No expectation on DELETE: any call fails the test.

	p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: f.ports()})
	require.NoError(t, err)

	res := p.Process(context.Background(), f.job)
	assert.False(t, res.Success)
	assert.Equal(t, model.StageArchiveSend, res.FailedStage)
	assert.Equal(t, model.StageStatusFailed, res.Stages[model.StageArchiveSend].Status)
	assert.Equal(t, model.StageStatusPending, res.Stages[model.StageDelete].Status)
}

func TestRepositoryProcessor_NoEndpointSkipsArchiveSendAndArchivesLocally(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, "")
	f.expectSuccess(model.StageClone, model.StageClassify, model.StageDocProject, model.StageDocUAT, model.StageDocAPI, model.StageDelete)

	archiver := mocks.NewMockArchiver(ctrl)
	archiver.EXPECT().ArchiveAll(gomock.Any(), "widget", f.job.RepoPath()).
		Return(nil, errors.New("disk full"))

	p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: f.ports(), LocalArchiver: archiver})
	require.NoError(t, err)

	res := p.Process(context.Background(), f.job)
	assert.True(t, res.Success, "local archiving is best effort")
	assert.Equal(t, model.StageStatusSkipped, res.Stages[model.StageArchiveSend].Status)
	assert.Nil(t, res.Stages[model.StageArchiveSend].StartedAt)
	assert.Equal(t, model.StageStatusCompleted, res.Stages[model.StageDelete].Status)
}

func TestRepositoryProcessor_DeleteFailureFailsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, "")
	f.expectSuccess(model.StageClone, model.StageClassify, model.StageDocProject, model.StageDocUAT, model.StageDocAPI)
	f.executors[model.StageDelete].EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.Failed(forcedelete.ErrStillPresent, ""))

	p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: f.ports()})
	require.NoError(t, err)

	res := p.Process(context.Background(), f.job)
	assert.False(t, res.Success)
	assert.Equal(t, model.StageDelete, res.FailedStage)
}

func TestNewRepositoryProcessor_RequiresEveryExecutor(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, "")
	ports := f.ports()
	delete(ports, model.StageDocUAT)

	_, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: ports})
	require.ErrorIs(t, err, ErrMissingExecutor)
}

// A DOC_API executor that panics, no delivery endpoint: DOC_API and ARCHIVE_SEND are
// skipped, the working tree is removed and the job succeeds.
func TestRepositoryProcessor_PanickingDocAPIWithoutEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, "")
	require.NoError(t, os.MkdirAll(filepath.Join(f.job.RepoPath(), ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.job.RepoPath(), "main.go"), []byte("package main"), 0o644))

	f.expectSuccess(model.StageClone, model.StageClassify, model.StageDocProject, model.StageDocUAT)
	f.executors[model.StageDocAPI].EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, []string) model.StageOutcome {
			panic("analysis client exploded")
		})

	deleteExec, err := NewDeleteExecutor(forcedelete.New(forcedelete.Options{}))
	require.NoError(t, err)
	ports := f.ports()
	ports[model.StageDelete] = deleteExec

	p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: ports})
	require.NoError(t, err)

	res := p.Process(context.Background(), f.job)
	assert.True(t, res.Success)
	got := statuses(res)
	assert.Equal(t, model.StageStatusSkipped, got[model.StageDocAPI])
	assert.Equal(t, model.StageStatusSkipped, got[model.StageArchiveSend])
	assert.Equal(t, model.StageStatusCompleted, got[model.StageDelete])
	assert.Contains(t, res.Stages[model.StageDocAPI].Error, "panic")

	_, statErr := os.Stat(f.job.RepoPath())
	assert.True(t, os.IsNotExist(statErr))
}

// A delivery endpoint answering 500: ARCHIVE_SEND fails, DELETE stays pending and the
// working tree remains on disk.
func TestRepositoryProcessor_DeliveryServerErrorKeepsTree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	f := newProcessorFixture(t, ctrl, srv.URL)
	writeDocFolder(t, f.job.RepoPath(), "Classifier", map[string]string{"routes.json": "{}"})
	f.expectSuccess(model.StageClone, model.StageClassify, model.StageDocProject, model.StageDocUAT, model.StageDocAPI)

	archiveRoot := t.TempDir()
	archiver, err := NewArchiver(ArchiverOptions{
		Root:   archiveRoot,
		Ledger: data.NewFileLedger(data.FileLedgerOptions{Root: archiveRoot}),
	})
	require.NoError(t, err)
	sendExec, err := NewArchiveSendExecutor(ArchiveSendExecutorOptions{
		Archiver:  archiver,
		Deliverer: deliverer.New(deliverer.Options{HTTPClient: srv.Client()}),
	})
	require.NoError(t, err)
	ports := f.ports()
	ports[model.StageArchiveSend] = sendExec

	p, err := NewRepositoryProcessor(RepositoryProcessorOptions{Executors: ports})
	require.NoError(t, err)

	res := p.Process(context.Background(), f.job)
	assert.False(t, res.Success)
	assert.Equal(t, model.StageStatusFailed, res.Stages[model.StageArchiveSend].Status)
	assert.Equal(t, model.StageStatusPending, res.Stages[model.StageDelete].Status)
	assert.Contains(t, res.Stages[model.StageArchiveSend].Error, "500")

	_, statErr := os.Stat(f.job.RepoPath())
	assert.NoError(t, statErr, "repository must remain on disk")
}

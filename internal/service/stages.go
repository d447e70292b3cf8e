package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
)

// ArchiveSendExecutorOptions groups dependencies for ArchiveSendExecutor.
type ArchiveSendExecutorOptions struct {
	Archiver  core.Archiver         // Required
	Deliverer core.ArchiveDeliverer // Required
	Logger    *slog.Logger          // Optional
}

// ArchiveSendExecutor is the ARCHIVE_SEND stage: archive every documentation folder,
// then deliver the repository's archive directory in one package.
// Expects args of [endpoint, referenceID].
type ArchiveSendExecutor struct {
	archiver  core.Archiver
	deliverer core.ArchiveDeliverer
	logger    *slog.Logger
}

var _ core.StageExecutor = (*ArchiveSendExecutor)(nil)

// NewArchiveSendExecutor constructs an ArchiveSendExecutor.
func NewArchiveSendExecutor(opts ArchiveSendExecutorOptions) (*ArchiveSendExecutor, error) {
	if opts.Archiver == nil {
		return nil, errors.New("archiver is required")
	}
	if opts.Deliverer == nil {
		return nil, errors.New("deliverer is required")
	}
	return &ArchiveSendExecutor{
		archiver:  opts.Archiver,
		deliverer: opts.Deliverer,
		logger:    resolveLogger(opts.Logger).With("component", "archive_send"),
	}, nil
}

// Run implements core.StageExecutor.
func (e *ArchiveSendExecutor) Run(ctx context.Context, targetPath string, args []string) model.StageOutcome {
	var endpoint, ref string
	if len(args) > 0 {
		endpoint = strings.TrimSpace(args[0])
	}
	if len(args) > 1 {
		ref = strings.TrimSpace(args[1])
	}
	if endpoint == "" {
		return model.Failed(errors.New("archive send: delivery endpoint is required"), "")
	}

	repository := filepath.Base(targetPath)
	records, err := e.archiver.ArchiveAll(ctx, repository, targetPath)
	if err != nil {
		return model.Failed(fmt.Errorf("archive send: archive: %w", err), archiveSummary(records))
	}

	err = e.deliverer.Send(ctx, model.DeliveryRequest{
		Repository:  repository,
		ArchiveDir:  e.archiver.ArchiveDir(repository),
		Endpoint:    endpoint,
		ReferenceID: ref,
	})
	if err != nil {
		return model.Failed(fmt.Errorf("archive send: deliver: %w", err), archiveSummary(records))
	}
	return model.Succeeded(fmt.Sprintf("%s; delivered to %s", archiveSummary(records), redactEndpoint(endpoint)))
}

func archiveSummary(records []model.ArchiveRecord) string {
	if len(records) == 0 {
		return "archived 0 folders"
	}
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, fmt.Sprintf("%s v%d", r.Folder, r.Version))
	}
	return "archived " + strings.Join(parts, ", ")
}

// redactEndpoint drops credentials and query strings from an endpoint before it is logged.
func redactEndpoint(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[endpoint]"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// DeleteExecutor is the DELETE stage.
type DeleteExecutor struct {
	deleter core.TreeDeleter
}

var _ core.StageExecutor = (*DeleteExecutor)(nil)

// NewDeleteExecutor constructs a DeleteExecutor.
func NewDeleteExecutor(deleter core.TreeDeleter) (*DeleteExecutor, error) {
	if deleter == nil {
		return nil, errors.New("tree deleter is required")
	}
	return &DeleteExecutor{deleter: deleter}, nil
}

// Run implements core.StageExecutor. Success means targetPath no longer exists.
func (e *DeleteExecutor) Run(ctx context.Context, targetPath string, _ []string) model.StageOutcome {
	if strings.TrimSpace(targetPath) == "" {
		return model.Failed(errors.New("delete: target path is required"), "")
	}
	if err := e.deleter.Delete(ctx, targetPath); err != nil {
		return model.Failed(fmt.Errorf("delete: %w", err), "")
	}
	return model.Succeeded("removed " + targetPath)
}

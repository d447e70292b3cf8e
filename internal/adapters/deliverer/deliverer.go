// Package deliverer packages a repository's archives and posts them to a delivery endpoint.
package deliverer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/util"
)

const (
	// DefaultTimeout bounds the single delivery POST.
	DefaultTimeout = 5 * time.Minute

	headerRepository  = "X-Repository-Name"
	headerTimestamp   = "X-Timestamp"
	headerReferenceID = "X-Reference-ID"

	maxErrorBodyBytes = 1024
)

var (
	// ErrNoArchives is returned when the archive directory holds nothing to send.
	ErrNoArchives = errors.New("no archives to deliver")
	// ErrUnexpectedStatus is returned when the endpoint answers with anything but 200.
	ErrUnexpectedStatus = errors.New("unexpected delivery status")
)

// Options configures a Deliverer.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// TempDir is where packages are built. Defaults to os.TempDir().
	TempDir string
	Logger  *slog.Logger
	Now     func() time.Time
}

// Deliverer implements core.ArchiveDeliverer with exactly one POST per call.
type Deliverer struct {
	http    *http.Client
	timeout time.Duration
	tempDir string
	logger  *slog.Logger
	now     func() time.Time
}

var _ core.ArchiveDeliverer = (*Deliverer)(nil)

// New builds a Deliverer.
func New(opts Options) *Deliverer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Deliverer{
		http:    hc,
		timeout: timeout,
		tempDir: opts.TempDir,
		logger:  logger.With("component", "deliverer"),
		now:     now,
	}
}

// Send builds the deliverable package for req and posts it. The temporary package is
// removed on every return path.
func (d *Deliverer) Send(ctx context.Context, req model.DeliveryRequest) error {
	if strings.TrimSpace(req.Endpoint) == "" {
		return errors.New("delivery endpoint is required")
	}

	workDir, err := os.MkdirTemp(d.tempDir, "repodoc-delivery-*")
	if err != nil {
		return fmt.Errorf("create package directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			d.logger.WarnContext(ctx, "package cleanup failed", "dir", workDir, "error", rmErr)
		}
	}()

	at := d.now()
	pkg, contents, err := d.buildPackage(workDir, req, at)
	if err != nil {
		return err
	}

	start := time.Now()
	err = d.post(ctx, req, pkg, at)
	logArgs := []any{
		"repository", req.Repository,
		"endpoint", req.Endpoint,
		"files", len(contents),
		"duration", time.Since(start),
	}
	if err != nil {
		d.logger.ErrorContext(ctx, "archive delivery failed", append(logArgs, "error", err)...)
		return err
	}
	d.logger.InfoContext(ctx, "archives delivered", logArgs...)
	return nil
}

// BuildManifest describes every file directly inside archiveDir.
func BuildManifest(repository, archiveDir, referenceID string, at time.Time) (model.Manifest, error) {
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return model.Manifest{}, fmt.Errorf("read archive directory: %w", err)
	}
	contents := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			contents = append(contents, e.Name())
		}
	}
	sort.Strings(contents)

	m := model.Manifest{
		Repository: repository,
		Timestamp:  at.Format(model.ArchiveTimestampLayout),
		Contents:   contents,
	}
	if referenceID != "" {
		ref := referenceID
		m.ReferenceID = &ref
	}
	return m, nil
}

func (d *Deliverer) buildPackage(workDir string, req model.DeliveryRequest, at time.Time) (string, []string, error) {
	entries, err := util.DirEntries(req.ArchiveDir)
	if err != nil {
		return "", nil, fmt.Errorf("list archives: %w", err)
	}
	if len(entries) == 0 {
		return "", nil, fmt.Errorf("%w in %s", ErrNoArchives, req.ArchiveDir)
	}

	manifest, err := BuildManifest(req.Repository, req.ArchiveDir, req.ReferenceID, at)
	if err != nil {
		return "", nil, err
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode manifest: %w", err)
	}

	pkg := filepath.Join(workDir, model.PackageName(req.Repository, at))
	if err := util.WriteZip(pkg, entries, map[string][]byte{model.ManifestFileName: manifestJSON}); err != nil {
		return "", nil, fmt.Errorf("build package: %w", err)
	}
	return pkg, manifest.Contents, nil
}

func (d *Deliverer) post(ctx context.Context, req model.DeliveryRequest, pkg string, at time.Time) error {
	f, err := os.Open(pkg)
	if err != nil {
		return fmt.Errorf("open package: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat package: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, f)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.ContentLength = info.Size()
	httpReq.Header.Set("Content-Type", "application/zip")
	httpReq.Header.Set(headerRepository, req.Repository)
	httpReq.Header.Set(headerTimestamp, at.Format(time.RFC3339))
	if req.ReferenceID != "" {
		httpReq.Header.Set(headerReferenceID, req.ReferenceID)
	}

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%w: got %d, want %d: %s",
			ErrUnexpectedStatus, resp.StatusCode, http.StatusOK, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

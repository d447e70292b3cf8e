// Package httpx provides the HTTP ingress for the repository documentation pipeline.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/service"
)

const (
	webhookPrefix         = "/webhook/"
	archiveWebhookHeader  = "X-Archive-Webhook"
	defaultMaxWebhookBody = 1 << 20
)

// WebhookHandlers turns webhook requests into queued jobs.
type WebhookHandlers struct {
	Queue     core.JobQueue
	TargetDir string
	// Endpoint is the configured delivery endpoint. It wins over the request header.
	Endpoint            string
	AllowEndpointHeader bool
	RefExpression       *service.ReferenceExpression // Optional
	Verifier            *SignatureVerifier
	// EnforceSignature rejects requests whose signature is missing or invalid.
	// When false, verification failures are logged and the job is still queued.
	EnforceSignature bool
	MaxBodyBytes     int64
	Logger           *slog.Logger
	Now              func() time.Time
}

type webhookResponse struct {
	Message     string  `json:"message"`
	Repository  string  `json:"repository"`
	ReferenceID *string `json:"reference_id"`
	Status      string  `json:"status"`
	JobID       string  `json:"job_id"`
}

// Enqueue handles POST /webhook/{compound-path}. rawPath is the escaped remainder after /webhook/.
func (h *WebhookHandlers) Enqueue(w http.ResponseWriter, r *http.Request, rawPath string) {
	logger := requestLogger(r.Context(), h.Logger)

	body, err := h.readBody(w, r)
	if err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		WriteError(w, ErrorParams{Code: code, ErrCode: "invalid_body", Err: err})
		return
	}

	if result := h.Verifier.Verify(body, r.Header); result != SignatureValid && result != SignatureDisabled {
		if h.EnforceSignature {
			logger.WarnContext(r.Context(), "webhook signature rejected", "result", result)
			WriteError(w, ErrorParams{
				Code:    http.StatusUnauthorized,
				ErrCode: "invalid_signature",
				Err:     fmt.Errorf("signature %s", result),
			})
			return
		}
		logger.WarnContext(r.Context(), "webhook signature not verified; continuing", "result", result)
	}

	loc, err := service.ParseLocator(rawPath, r.URL.Query().Get("ref"))
	if err != nil {
		logger.InfoContext(r.Context(), "rejected webhook locator", "path", rawPath, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_locator", Err: err})
		return
	}
	if loc.ReferenceID == "" {
		loc.ReferenceID = h.RefExpression.Extract(body)
	}

	endpoint, err := h.resolveEndpoint(r)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_endpoint", Err: err})
		return
	}

	job, err := model.NewJob(model.NewJobRequest{
		SourceURL:   loc.SourceURL,
		RepoName:    loc.Repo,
		TargetDir:   h.TargetDir,
		Endpoint:    endpoint,
		ReferenceID: loc.ReferenceID,
	}, h.now())
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_locator", Err: err})
		return
	}

	if err := h.Queue.Enqueue(job); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, model.ErrQueueClosed) {
			code = http.StatusServiceUnavailable
		}
		WriteError(w, ErrorParams{Code: code, ErrCode: "enqueue_failed", Err: err})
		return
	}

	logger.InfoContext(r.Context(), "repository queued",
		"job_id", job.ID,
		"repository", loc.SourceURL,
		"reference_id", loc.ReferenceID,
		"delivery", endpoint != "",
	)

	resp := webhookResponse{
		Message:    "Repository processing queued",
		Repository: loc.SourceURL,
		Status:     "queued",
		JobID:      job.ID.String(),
	}
	if loc.ReferenceID != "" {
		ref := loc.ReferenceID
		resp.ReferenceID = &ref
	}
	WriteJSON(w, http.StatusAccepted, resp)
}

func (h *WebhookHandlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxWebhookBody
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

// resolveEndpoint prefers the configured endpoint and falls back to the request header when allowed.
func (h *WebhookHandlers) resolveEndpoint(r *http.Request) (string, error) {
	if h.Endpoint != "" {
		return h.Endpoint, nil
	}
	if !h.AllowEndpointHeader {
		return "", nil
	}
	raw := strings.TrimSpace(r.Header.Get(archiveWebhookHeader))
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%s must be an absolute http(s) URL", archiveWebhookHeader)
	}
	return raw, nil
}

func (h *WebhookHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

package httpx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/internal/domain/model"
	"github.com/target/repodoc/internal/service"
)

func newTestRouter(t *testing.T, configure func(*WebhookHandlers)) (http.Handler, *service.JobQueue) {
	t.Helper()
	q := service.NewJobQueue(service.JobQueueOptions{})
	wh := &WebhookHandlers{
		Queue:     q,
		TargetDir: "/work",
		Now:       func() time.Time { return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) },
	}
	if configure != nil {
		configure(wh)
	}
	return NewRouter(RouterServices{Webhooks: wh, Status: &StatusHandlers{Queue: q}}), q
}

func postWebhook(t *testing.T, h http.Handler, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhook_QueuesJob(t *testing.T) {
	h, q := newTestRouter(t, nil)

	rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget/REF-7", "{}", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "https://github.com/acme/widget.git", body["repository"])
	assert.Equal(t, "REF-7", body["reference_id"])
	assert.NotEmpty(t, body["job_id"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	job, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "widget", job.RepoName)
	assert.Equal(t, "/work", job.TargetDir)
	assert.Equal(t, "REF-7", job.ReferenceID)
	assert.False(t, job.HasEndpoint())
	assert.Equal(t, body["job_id"], job.ID.String())
}

func TestWebhook_NullReferenceWhenAbsent(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget.git", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	v, present := body["reference_id"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestWebhook_QueryReference(t *testing.T) {
	h, q := newTestRouter(t, nil)
	rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget?ref=abc", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	job, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "abc", job.ReferenceID)
}

func TestWebhook_BodyReferenceIsLastResort(t *testing.T) {
	expr, err := service.NewReferenceExpression("client_payload.ticket")
	require.NoError(t, err)
	h, q := newTestRouter(t, func(wh *WebhookHandlers) { wh.RefExpression = expr })
	payload := `{"client_payload":{"ticket":"BODY-1"}}`

	require.Equal(t, http.StatusAccepted, postWebhook(t, h, "/webhook/https://github.com/acme/widget", payload, nil).Code)
	require.Equal(t, http.StatusAccepted, postWebhook(t, h, "/webhook/https://github.com/acme/widget/-/PATH-1", payload, nil).Code)
	require.Equal(t, http.StatusAccepted, postWebhook(t, h, "/webhook/https://github.com/acme/widget?ref=Q-1", payload, nil).Code)

	var refs []string
	for {
		job, ok := q.Dequeue()
		if !ok {
			break
		}
		refs = append(refs, job.ReferenceID)
	}
	assert.Equal(t, []string{"BODY-1", "PATH-1", "Q-1"}, refs)
}

func TestWebhook_RejectsMalformedLocator(t *testing.T) {
	h, q := newTestRouter(t, nil)
	for _, path := range []string{
		"/webhook/https://gitlab.com/acme/widget",
		"/webhook/https://github.com/acme",
		"/webhook/not-a-url",
		"/webhook/github.com/acme/widget/a%0D%0Ab",
		"/webhook/github.com/acme/widget?ref=a%0Ab",
	} {
		rec := postWebhook(t, h, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid_locator", decodeBody(t, rec)["error"], path)
	}
	assert.Equal(t, 0, q.Len(), "malformed locators must not be queued")
}

func TestWebhook_EndpointPrecedence(t *testing.T) {
	t.Run("configured endpoint wins", func(t *testing.T) {
		h, q := newTestRouter(t, func(w *WebhookHandlers) {
			w.Endpoint = "https://configured.example.com/in"
			w.AllowEndpointHeader = true
		})
		rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", "",
			map[string]string{"X-Archive-Webhook": "https://header.example.com/in"})
		require.Equal(t, http.StatusAccepted, rec.Code)
		job, _ := q.Dequeue()
		assert.Equal(t, "https://configured.example.com/in", job.Endpoint)
	})

	t.Run("header used when allowed", func(t *testing.T) {
		h, q := newTestRouter(t, func(w *WebhookHandlers) { w.AllowEndpointHeader = true })
		rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", "",
			map[string]string{"X-Archive-Webhook": "https://header.example.com/in"})
		require.Equal(t, http.StatusAccepted, rec.Code)
		job, _ := q.Dequeue()
		assert.Equal(t, "https://header.example.com/in", job.Endpoint)
	})

	t.Run("header ignored when not allowed", func(t *testing.T) {
		h, q := newTestRouter(t, nil)
		rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", "",
			map[string]string{"X-Archive-Webhook": "https://header.example.com/in"})
		require.Equal(t, http.StatusAccepted, rec.Code)
		job, _ := q.Dequeue()
		assert.False(t, job.HasEndpoint())
	})

	t.Run("invalid header endpoint", func(t *testing.T) {
		h, q := newTestRouter(t, func(w *WebhookHandlers) { w.AllowEndpointHeader = true })
		rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", "",
			map[string]string{"X-Archive-Webhook": "ftp://header.example.com/in"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, q.Len())
	})
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_InvalidSignatureStillQueuedByDefault(t *testing.T) {
	h, q := newTestRouter(t, func(w *WebhookHandlers) { w.Verifier = NewSignatureVerifier("s3cret") })
	rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", `{"a":1}`,
		map[string]string{"X-Hub-Signature-256": sign("wrong", `{"a":1}`)})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, q.Len())
}

func TestWebhook_EnforcedSignature(t *testing.T) {
	h, q := newTestRouter(t, func(w *WebhookHandlers) {
		w.Verifier = NewSignatureVerifier("s3cret")
		w.EnforceSignature = true
	})

	rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", `{"a":1}`,
		map[string]string{"X-Hub-Signature-256": sign("wrong", `{"a":1}`)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(t, h, "/webhook/https://github.com/acme/widget", `{"a":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, q.Len())

	rec = postWebhook(t, h, "/webhook/https://github.com/acme/widget", `{"a":1}`,
		map[string]string{"X-Hub-Signature-256": sign("s3cret", `{"a":1}`)})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, q.Len())
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	h, q := newTestRouter(t, func(w *WebhookHandlers) { w.MaxBodyBytes = 4 })
	rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", "0123456789", nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, q.Len())
}

func TestWebhook_QueueClosed(t *testing.T) {
	h, q := newTestRouter(t, nil)
	q.Close()
	rec := postWebhook(t, h, "/webhook/https://github.com/acme/widget", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/webhook/https://github.com/acme/widget", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestStatus_ListsQueuedJobs(t *testing.T) {
	h, q := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"statuses":[]}`, rec.Body.String())

	require.Equal(t, http.StatusAccepted, postWebhook(t, h, "/webhook/https://github.com/acme/widget/R1", "", nil).Code)
	require.Equal(t, http.StatusAccepted, postWebhook(t, h, "/webhook/https://github.com/acme/gadget", "", nil).Code)
	_, _ = q.Dequeue()

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Statuses []struct {
			JobID      string `json:"job_id"`
			Repository string `json:"repository"`
			QueuedAt   string `json:"queued_at"`
			Status     map[string]struct {
				Status      string  `json:"status"`
				StartedAt   *string `json:"started_at"`
				CompletedAt *string `json:"completed_at"`
			} `json:"status"`
		} `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Statuses, 1)
	got := resp.Statuses[0]
	assert.Equal(t, "gadget", got.Repository)
	assert.Equal(t, "2024-03-05T14:30:00Z", got.QueuedAt)
	require.Len(t, got.Status, len(model.Stages()))
	assert.Equal(t, "pending", got.Status["CLONE"].Status)
	assert.Nil(t, got.Status["CLONE"].StartedAt)
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","queued":0}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	require.Equal(t, http.StatusAccepted, postWebhook(t, h, "/webhook/github.com/acme/widget", "", nil).Code)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok","queued":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// RouterServices holds the handlers served by the HTTP router.
type RouterServices struct {
	Webhooks *WebhookHandlers
	Status   *StatusHandlers
	Logger   *slog.Logger // Optional
}

// NewRouter creates the ingress router.
//
// Webhook paths embed a full repository URL ("/webhook/https://github.com/o/r"), which
// http.ServeMux would clean and redirect, so they are dispatched on the raw path before the mux.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	if services.Status != nil {
		mux.Handle("GET /status", http.HandlerFunc(services.Status.List))
		mux.Handle("GET /healthz", http.HandlerFunc(services.Status.Health))
		mux.Handle("HEAD /healthz", http.HandlerFunc(services.Status.Health))
	}

	handler := &webhookDispatcher{webhooks: services.Webhooks, next: mux}
	return Logging(logger)(Recover(logger)(handler))
}

type webhookDispatcher struct {
	webhooks *WebhookHandlers
	next     http.Handler
}

func (d *webhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.EscapedPath()
	if d.webhooks == nil || !strings.HasPrefix(raw, webhookPrefix) {
		d.next.ServeHTTP(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, ErrorParams{
			Code:    http.StatusMethodNotAllowed,
			ErrCode: "method_not_allowed",
			Err:     errors.New("method not allowed"),
		})
		return
	}
	d.webhooks.Enqueue(w, r, strings.TrimPrefix(raw, webhookPrefix))
}

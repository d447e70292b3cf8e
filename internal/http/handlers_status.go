package httpx

import (
	"net/http"

	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
)

// StatusHandlers reports the jobs still waiting in the queue.
type StatusHandlers struct {
	Queue core.JobQueue
}

type statusResponse struct {
	Statuses []model.JobSnapshot `json:"statuses"`
}

type healthResponse struct {
	Status string `json:"status"`
	Queued int    `json:"queued"`
}

// List handles GET /status. Jobs already taken by the worker are not listed.
func (h *StatusHandlers) List(w http.ResponseWriter, _ *http.Request) {
	snaps := h.Queue.Snapshot()
	if snaps == nil {
		snaps = []model.JobSnapshot{}
	}
	WriteJSON(w, http.StatusOK, statusResponse{Statuses: snaps})
}

// Health handles GET and HEAD /healthz for liveness probes.
func (h *StatusHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Queued: h.Queue.Len()})
}

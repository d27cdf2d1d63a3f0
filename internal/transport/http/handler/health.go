package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Readiness reports whether a dependency has come up.
type Readiness interface {
	Loaded() bool
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	queue Readiness
}

func NewHealthHandler(queue Readiness) *HealthHandler { return &HealthHandler{queue: queue} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if action == "ping" {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
		return
	}
	writeError(w, http.StatusBadRequest, "unknown action")
}

// Ready turns healthy once the first queue snapshot has been loaded.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.queue != nil && !h.queue.Loaded() {
		writeError(w, http.StatusServiceUnavailable, "queue not loaded")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
}

package api

import (
	"net/http"

	"github.com/docent-ai/docent/internal/log"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready  func(r *http.Request) error
	logger log.Logger
}

// NewHealthHandler creates a new health handler. ready reports whether
// downstream dependencies (the database pool) are reachable; nil means
// readiness mirrors liveness.
func NewHealthHandler(ready func(r *http.Request) error, logger log.Logger) *HealthHandler {
	return &HealthHandler{ready: ready, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness returns 200 OK if downstream dependencies are reachable,
// 503 otherwise.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

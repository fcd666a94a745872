package api

import (
	"context"
	"net/http"
	"time"

	"github.com/evgray/chatglass/internal/store"
	"github.com/go-chi/chi/v5"
)

// Prober reports whether an external daemon is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// HealthHandler reports engine and collaborator health.
type HealthHandler struct {
	repo       store.Repository
	capture    Prober
	recognizer Prober
}

// NewHealthHandler creates a new health handler. Probers may be nil
// when the corresponding daemon is not configured.
func NewHealthHandler(repo store.Repository, capture, recognizer Prober) *HealthHandler {
	return &HealthHandler{repo: repo, capture: capture, recognizer: recognizer}
}

// RegisterHealth registers the deep health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health pings the database and probes the capture and recognition
// daemons. Daemon failures degrade the report but do not make the
// engine unhealthy: in-memory state keeps serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	report := map[string]string{
		"database":    "ok",
		"capture":     "ok",
		"recognition": "ok",
	}

	if err := h.repo.Ping(ctx); err != nil {
		report["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.capture == nil {
		report["capture"] = "not configured"
	} else if err := h.capture.Probe(ctx); err != nil {
		report["capture"] = err.Error()
	}
	if h.recognizer == nil {
		report["recognition"] = "not configured"
	} else if err := h.recognizer.Probe(ctx); err != nil {
		report["recognition"] = err.Error()
	}

	JSON(w, status, report)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a backend whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode     string
	sessions func() int
	backends map[string]Pinger
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. backends maps a name such as
// "redis" to its Pinger; sessions may be nil.
func NewHealthHandler(mode string, sessions func() int, backends map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{mode: mode, sessions: sessions, backends: backends, logger: logger}
}

// HealthCheck reports liveness and backend reachability. Any unreachable
// backend turns the response into a 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.backends))
	for name, p := range h.backends {
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", slog.String("backend", name), slog.String("error", err.Error()))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	data := map[string]any{
		"status":    "ok",
		"mode":      h.mode,
		"backends":  checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		data["status"] = "degraded"
	}
	if h.sessions != nil {
		data["sessions"] = h.sessions()
	}
	writeJSON(w, status, envelope{Success: status == http.StatusOK, Data: data})
}

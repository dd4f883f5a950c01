package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves liveness probes with the engine's run mode and
// uptime.
type HealthHandler struct {
	mode      string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. startedAt anchors the reported
// uptime.
func NewHealthHandler(mode string, startedAt time.Time, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{mode: mode, startedAt: startedAt, logger: logger}
}

// HealthCheck reports the process as alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	if uptime < 0 {
		uptime = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mode":           h.mode,
		"uptime_seconds": int64(uptime.Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

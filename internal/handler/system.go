package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks one dependency, e.g. db.PingContext.
type Pinger func(ctx context.Context) error

// SystemHandler serves liveness and readiness probes.
type SystemHandler struct {
	checks    map[string]Pinger
	startTime time.Time
}

// NewSystemHandler creates a SystemHandler running the named dependency checks.
func NewSystemHandler(checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{checks: checks, startTime: time.Now()}
}

// Health reports that the process is up.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "payoutdesk",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready pings every dependency and reports 503 if any is down.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not ready"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       overall,
		"dependencies": deps,
	})
}

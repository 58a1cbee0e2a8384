package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/metorm/groupBin/pkg/store"
)

// HealthCheckTimeout bounds the database ping so a stuck database
// cannot hang the readiness probe.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler answers the unauthenticated health probes: liveness
// (is the process up) and readiness (does the database answer).
type HealthHandler struct {
	db        store.Store
	startTime time.Time
}

// NewHealthHandler creates a health handler. A nil db makes the
// readiness probe report unhealthy.
func NewHealthHandler(db store.Store) *HealthHandler {
	return &HealthHandler{db: db, startTime: time.Now()}
}

// Liveness handles GET /health.
//
// Succeeds whenever the HTTP server can respond at all, which is what
// a liveness probe wants to know. The payload carries uptime for the
// status CLI.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "groupbin",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready.
//
// Answers 200 when the metadata database responds to a ping within
// HealthCheckTimeout, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := h.db.Healthcheck(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"database": "ok",
		"latency":  time.Since(start).String(),
	}))
}

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// HealthHandler answers liveness checks. It never contacts the backend, so
// a console outage does not take the bridge out of rotation.
type HealthHandler struct {
	db      *sql.DB
	started time.Time
}

// NewHealthHandler creates a HealthHandler. db may be nil.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}

	writeJSON(w, status, body)
}

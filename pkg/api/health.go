package api

import (
	"net/http"
	"time"
)

// HealthHandler answers liveness and readiness probes. Liveness never
// depends on any collaborator; readiness reflects whether the manager has
// a usable store and transport selector behind it.
type HealthHandler struct {
	startTime time.Time
	ready     func() (bool, string)
}

// NewHealthHandler builds a HealthHandler. ready is called on every
// readiness probe and should report false with a reason once the manager's
// dependencies (C4's store, the transport selector) are unusable.
func NewHealthHandler(ready func() (bool, string)) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), ready: ready}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSONOK(w, map[string]any{
		"status":     "healthy",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ok, reason := true, ""
	if h.ready != nil {
		ok, reason = h.ready()
	}
	if !ok {
		serviceUnavailable(w, reason)
		return
	}
	writeJSONOK(w, map[string]any{"status": "ready"})
}

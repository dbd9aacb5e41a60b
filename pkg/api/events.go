package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/commy-mesh/commy/internal/logger"
	"github.com/commy-mesh/commy/pkg/manager"
)

// EventHandler streams Manager lifecycle events as Server-Sent Events.
type EventHandler struct {
	mgr *manager.Manager
}

func NewEventHandler(mgr *manager.Manager) *EventHandler {
	return &EventHandler{mgr: mgr}
}

// Stream handles GET /api/v1/events. The caller's subscriber id, if not
// given via the "subscriber_id" query parameter, is generated fresh; a
// caller that wants to resume an existing queue after a dropped connection
// must pass the same id back.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		unauthorized(w, "missing bearer token")
		return
	}

	subscriberID := r.URL.Query().Get("subscriber_id")
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}

	sub, err := h.mgr.SubscribeEvents(token, subscriberID)
	if err != nil {
		writeFault(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Subscriber-Id", subscriberID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			logger.Warn("api: failed to encode event", logger.Err(err))
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		flusher.Flush()
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/commy-mesh/commy/pkg/manager"
	"github.com/commy-mesh/commy/pkg/model"
)

var validate = validator.New()

// FileHandler exposes Manager.RequestFile, Manager.Disconnect, and
// Manager.ListActiveFiles over HTTP.
type FileHandler struct {
	mgr *manager.Manager
}

func NewFileHandler(mgr *manager.Manager) *FileHandler {
	return &FileHandler{mgr: mgr}
}

type requestFileBody struct {
	Identifier         string `json:"identifier" validate:"required"`
	Path               string `json:"path"`
	MaxSize            uint64 `json:"max_size"`
	Policy             string `json:"policy" validate:"omitempty,oneof=create_or_connect create_only connect_only"`
	TransportPref      string `json:"transport_pref" validate:"omitempty,oneof=auto local_only network_only"`
	MaxLatencyMs       int64  `json:"max_latency_ms" validate:"omitempty,min=0"`
	EncryptionRequired bool   `json:"encryption_required"`
	ClientID           string `json:"client_id" validate:"required"`
	Token              string `json:"token" validate:"required"`
}

func (b requestFileBody) policy() model.ExistencePolicy {
	switch b.Policy {
	case "create_only":
		return model.CreateOnly
	case "connect_only":
		return model.ConnectOnly
	default:
		return model.CreateOrConnect
	}
}

func (b requestFileBody) transportPref() model.TransportPreference {
	switch b.TransportPref {
	case "local_only":
		return model.LocalOnly
	case "network_only":
		return model.NetworkOnly
	default:
		return model.TransportAuto
	}
}

// Create handles POST /api/v1/files.
func (h *FileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body requestFileBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		badRequest(w, err.Error())
		return
	}

	req := &model.SharedFileRequest{
		Identifier:    body.Identifier,
		Path:          body.Path,
		MaxSize:       body.MaxSize,
		Policy:        body.policy(),
		TransportPref: body.transportPref(),
		Performance: model.PerformanceRequirements{
			MaxLatency:         time.Duration(body.MaxLatencyMs) * time.Millisecond,
			EncryptionRequired: body.EncryptionRequired,
		},
		Token: body.Token,
	}

	resp, err := h.mgr.RequestFile(r.Context(), req, body.ClientID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSONCreated(w, resp)
}

type disconnectBody struct {
	FileID uint64 `json:"file_id" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,oneof=explicit heartbeat_timeout process_gone force_retire"`
	Token  string `json:"token" validate:"required"`
}

func parseDisconnectReason(s string) model.DisconnectReason {
	switch s {
	case "heartbeat_timeout":
		return model.DisconnectHeartbeatTimeout
	case "process_gone":
		return model.DisconnectProcessGone
	case "force_retire":
		return model.DisconnectForceRetire
	default:
		return model.DisconnectExplicit
	}
}

// Disconnect handles DELETE /api/v1/connections/{id}.
func (h *FileHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "id")

	var body disconnectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.mgr.Disconnect(body.FileID, connID, parseDisconnectReason(body.Reason), body.Token); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/files.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		unauthorized(w, "missing bearer token")
		return
	}

	entries, err := h.mgr.ListActiveFiles(token)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSONOK(w, entries)
}

// bearerToken extracts the token from "Authorization: Bearer <token>", or
// the "token" query parameter for clients (like curl against GET routes)
// that can't easily set a custom header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return r.URL.Query().Get("token")
}

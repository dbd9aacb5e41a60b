package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commy-mesh/commy/pkg/plugin"
	"github.com/commy-mesh/commy/pkg/sharedfile"
)

// PluginHandler exposes PluginLoader.Load/Unload over HTTP, the admin-only
// surface for hot-loading type plugins without a restart.
type PluginHandler struct {
	loader *plugin.Loader
	store  *sharedfile.Store
}

func NewPluginHandler(loader *plugin.Loader, store *sharedfile.Store) *PluginHandler {
	return &PluginHandler{loader: loader, store: store}
}

type loadPluginBody struct {
	Path string `json:"path" validate:"required"`
}

// Load handles POST /api/v1/plugins.
func (h *PluginHandler) Load(w http.ResponseWriter, r *http.Request) {
	var body loadPluginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(body); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.loader.Load(body.Path); err != nil {
		writeFault(w, err)
		return
	}
	writeJSONCreated(w, map[string]string{"path": body.Path, "status": "loaded"})
}

// Unload handles DELETE /api/v1/plugins/*, where the wildcard is the
// library's filesystem path. A type stays referenced, and the unload is
// refused, while any active entry still advertises it.
func (h *PluginHandler) Unload(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	if path == "/" {
		badRequest(w, "plugin path is required")
		return
	}

	if err := h.loader.Unload(path, h.typeStillReferenced); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// typeStillReferenced is the loader's drain check: a type is still in use
// if any active entry's metadata names it.
func (h *PluginHandler) typeStillReferenced(name string) bool {
	for _, entry := range h.store.ListActive() {
		if entry.Metadata["type"] == name {
			return true
		}
	}
	return false
}

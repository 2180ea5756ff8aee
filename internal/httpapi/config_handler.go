package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) listConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := h.plane.ListConfig(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// setConfigRequest is the typed body for PUT /config/{key}.
type setConfigRequest struct {
	Value string `json:"value"`
}

func (h *handler) setConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req setConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}
	if err := h.plane.SetConfig(r.Context(), key, req.Value); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

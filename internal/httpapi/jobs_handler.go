package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/queuectl/internal/control"
)

func (h *handler) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var req control.EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	job, err := h.plane.Enqueue(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.plane.GetJob(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	jobs, err := h.plane.ListJobs(r.Context(), state)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.plane.DeleteJob(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

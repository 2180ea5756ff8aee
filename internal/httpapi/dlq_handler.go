package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.plane.ListDLQ(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) retryDLQJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.plane.RetryDLQJob(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteDLQJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.plane.GetJob(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if job.State != "dead" {
		writeError(w, http.StatusBadRequest, "NOT_IN_DLQ", "job is not in the dead-letter queue")
		return
	}
	if err := h.plane.DeleteJob(r.Context(), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/queuectl/internal/control"
)

// startWorkersRequest is the typed body for POST /workers.
type startWorkersRequest struct {
	Count int `json:"count"`
}

func (h *handler) startWorkers(w http.ResponseWriter, r *http.Request) {
	var req startWorkersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	workers, err := h.plane.StartWorkers(r.Context(), req.Count)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, workers)
}

func (h *handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.plane.ListWorkers()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

// stopWorkers handles both DELETE /workers/{id} (one worker) and
// DELETE /workers (every registered worker), honoring ?wait=true and
// ?timeout=<duration> the same way for both.
func (h *handler) stopWorkers(w http.ResponseWriter, r *http.Request) {
	req := control.StopWorkersRequest{ID: chi.URLParam(r, "id")}

	q := r.URL.Query()
	if wait, err := strconv.ParseBool(q.Get("wait")); err == nil {
		req.Wait = wait
	}
	if d, err := time.ParseDuration(q.Get("timeout")); err == nil {
		req.Timeout = d
	}

	res, err := h.plane.StopWorkers(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) workerLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lines := 50
	if v := r.URL.Query().Get("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lines = n
		}
	}

	out, err := h.plane.WorkerLogs(id, lines)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"lines": out})
}

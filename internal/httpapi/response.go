package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rezkam/queuectl/internal/qerr"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code alongside the human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeEngineError maps a qerr.Kind to its HTTP status and a stable code,
// logging the underlying error server-side for StoreError/SpawnError
// since those carry no client-actionable detail.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	qe, ok := err.(*qerr.Error)
	if !ok {
		slog.ErrorContext(r.Context(), "unclassified error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
		return
	}

	switch qe.Kind {
	case qerr.InvalidArgument:
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", qe.Message)
	case qerr.AlreadyExists:
		writeError(w, http.StatusBadRequest, "ALREADY_EXISTS", qe.Message)
	case qerr.NotFound:
		writeError(w, http.StatusNotFound, "NOT_FOUND", qe.Message)
	case qerr.NotInDLQ:
		writeError(w, http.StatusBadRequest, "NOT_IN_DLQ", qe.Message)
	case qerr.StoreError, qerr.SpawnError:
		slog.ErrorContext(r.Context(), "engine error", "kind", qe.Kind, "error", qe)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
	}
}

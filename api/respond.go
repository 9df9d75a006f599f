package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/poiesic/docinx/chat"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/ingestion"
	"github.com/poiesic/docinx/reindex"
	"github.com/poiesic/docinx/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingestion.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingestion.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrReindexUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, reindex.ErrNoChunks):
		return http.StatusConflict
	case errors.Is(err, ingestion.ErrEmptyFile),
		errors.Is(err, ErrMissingUser),
		errors.Is(err, ErrMissingFile),
		errors.Is(err, ErrMissingQuery),
		errors.Is(err, chat.ErrUserRequired),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, core.ErrInvalidDocument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Server errors are logged and
// their text is not exposed.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		err = errors.New(http.StatusText(status))
	}
	writeError(w, status, err)
}

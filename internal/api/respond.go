package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/group-2-odp-bni/be-capstone-project/internal/ledger"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
	"github.com/group-2-odp-bni/be-capstone-project/internal/token"
)

// envelope is the uniform response body: error flag, human message,
// payload.
type envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: false, Message: message, Data: data}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: true, Message: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// respondServiceError maps the core's error taxonomy to HTTP statuses.
// Infrastructure errors surface as 500 with a generic message; callers
// retry at their own policy.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrForbidden):
		respondError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, token.ErrInvalidToken):
		respondError(w, http.StatusForbidden, "invalid or expired link")
	default:
		slog.Error("Request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

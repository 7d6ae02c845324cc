// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/examdrill/backend/internal/domain/bank"
	"github.com/examdrill/backend/internal/service"
)

// Handler holds all dependencies needed by HTTP handlers. Instead of
// relying on package-level globals, every handler method receives its
// dependencies through this struct.
type Handler struct {
	drill  *service.DrillService
	logger *slog.Logger
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(drill *service.DrillService, logger *slog.Logger) *Handler {
	return &Handler{
		drill:  drill,
		logger: logger,
	}
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
// Returns false if the caller should bail out.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// handleServiceError maps common service errors to HTTP responses.
// Returns true if an error was handled (caller should return).
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	var schemaErr *bank.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		respondError(w, http.StatusBadRequest, schemaErr.Error())
	case errors.Is(err, service.ErrUnknownSet):
		respondError(w, http.StatusNotFound, "question set not found")
	case errors.Is(err, service.ErrNoBank):
		respondError(w, http.StatusNotFound, "no question bank loaded")
	case errors.Is(err, service.ErrNoQuestion):
		respondError(w, http.StatusNotFound, "no current question")
	default:
		h.logger.Error("service error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
	return true
}

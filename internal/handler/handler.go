package handler

import (
	"encoding/json"
	"net/http"

	"tradekart/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps a domain error onto an HTTP status. Non-domain
// errors never leak their message to the client.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	code := model.ErrorCode(err)

	var status int
	switch code {
	case model.ErrCodeNotFound:
		status = http.StatusNotFound
	case model.ErrCodeConflict, model.ErrCodeInvalidTransition:
		status = http.StatusConflict
	case model.ErrCodeValidation, model.ErrCodeCapacityExceeded:
		status = http.StatusBadRequest
	default:
		logger.Error().Err(err).Msg("handler error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	logger.Warn().Str("code", code).Str("error", err.Error()).Int("status", status).Msg("request rejected")
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

// userIDFromRequest reads the authenticated user's id from the X-User-ID
// header set by the auth layer upstream.
func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, model.NewValidationError("X-User-ID header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, model.NewValidationError("X-User-ID header is not a valid UUID")
	}
	return id, nil
}

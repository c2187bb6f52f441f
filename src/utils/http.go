package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/soldrip/backend/src/logger"
)

// ErrorResponse is the body of every failed API call. Code is set for program errors.
type ErrorResponse struct {
	Error string  `json:"error"`
	Code  *uint32 `json:"code,omitempty"`
}

// SendJSONError writes a JSON error body with the given status.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	SendJSONErrorWithCode(w, message, nil, statusCode)
}

// SendJSONErrorWithCode writes a JSON error body carrying a numeric program error code.
func SendJSONErrorWithCode(w http.ResponseWriter, message string, code *uint32, statusCode int) {
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/processors"
	"github.com/username/soldrip/backend/src/security"
	"github.com/username/soldrip/backend/src/security/validation"
	"github.com/username/soldrip/backend/src/services"
	"github.com/username/soldrip/backend/src/utils"
)

const maxRequestBodyBytes = 1 << 20

// statusFor maps a service error to the HTTP status reported to clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, processors.ErrMissingRequiredSignature), errors.Is(err, security.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, processors.ErrInvalidInstruction), errors.Is(err, validation.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, processors.ErrSlippageProtectionActive):
		return http.StatusLocked
	case errors.Is(err, processors.ErrInvalidTokenAccount):
		return http.StatusNotFound
	case errors.Is(err, processors.ErrInsufficientTokenBalance),
		errors.Is(err, processors.ErrExceedsMaximumHolding),
		errors.Is(err, processors.ErrInsufficientSolForDistribution),
		errors.Is(err, processors.ErrPriceFluctuationTooHigh):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotInitialized),
		errors.Is(err, services.ErrAlreadyInitialized),
		errors.Is(err, services.ErrStaleState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError reports err with its program error code. Internal errors are logged
// and hidden from the client.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, "internal server error", status)
		return
	}

	if errors.Is(err, validation.ErrValidationFailed) {
		err = fmt.Errorf("%w: %v", processors.ErrInvalidInstruction, err)
	}
	var code *uint32
	if c, ok := processors.ErrorCode(err); ok {
		code = &c
	}
	utils.SendJSONErrorWithCode(w, err.Error(), code, status)
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", processors.ErrInvalidInstruction, err)
	}
	return nil
}

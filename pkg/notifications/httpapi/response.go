package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	"github.com/dmitrymomot/schoolnotify/pkg/validator"
)

// Response is the JSON envelope of every API answer.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorStatus maps service errors to HTTP status codes and error codes.
func errorStatus(err error) (int, *ErrorDetail) {
	switch {
	case validator.IsValidationError(err):
		return http.StatusBadRequest, &ErrorDetail{
			Code:    "validation_error",
			Message: "validation failed",
			Details: validator.ExtractValidationErrors(err).Details(),
		}
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, &ErrorDetail{Code: "bad_request", Message: err.Error()}
	case errors.Is(err, notifications.ErrInvalidCandidate):
		return http.StatusBadRequest, &ErrorDetail{Code: "invalid_candidate", Message: err.Error()}
	case errors.Is(err, notifications.ErrPersistFailed):
		return http.StatusServiceUnavailable, &ErrorDetail{Code: "persist_failed", Message: notifications.ErrPersistFailed.Error()}
	case errors.Is(err, notifications.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, &ErrorDetail{Code: "store_unavailable", Message: notifications.ErrStoreUnavailable.Error()}
	case errors.Is(err, notifications.ErrDigestSendFailed):
		return http.StatusBadGateway, &ErrorDetail{Code: "digest_send_failed", Message: err.Error()}
	default:
		return http.StatusInternalServerError, &ErrorDetail{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}
	}
}

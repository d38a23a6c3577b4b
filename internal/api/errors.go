// Package api implements the HTTP handlers for serving, feedback, ads,
// and operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/citypulse/citypulse/internal/middleware"
)

// Error codes carried in responses and access logs.
const (
	ErrCodeValidation  = "validation_error"
	ErrCodeAuthFailed  = "auth_failed"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"
	ErrCodeBadRequest  = "bad_request"

	// ErrCodeMissingCity rejects a serving request without the required city.
	ErrCodeMissingCity = "missing_city"

	// ErrCodeInvalidTrackToken rejects a tracking token that failed
	// verification or does not match the impression it claims.
	ErrCodeInvalidTrackToken = "invalid_track_token"

	// ErrCodeUnknownEventType rejects an unsupported tracked event type.
	ErrCodeUnknownEventType = "unknown_event_type"

	// ErrCodeUnknownPolicy rejects a policy name that is not registered.
	ErrCodeUnknownPolicy = "unknown_policy"
)

// ErrorResponse is the error envelope every endpoint returns:
// {"error": {"code": "...", "message": "..."}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the JSON error envelope with the given status. Pass a
// context already tagged via middleware.SetErrorCode so the access log
// picks up the code:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "campaign not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping maps an error code to its HTTP status. Unknown codes
// map to 500.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeMissingCity, ErrCodeUnknownEventType, ErrCodeUnknownPolicy:
		return http.StatusBadRequest
	case ErrCodeAuthFailed, ErrCodeInvalidTrackToken:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

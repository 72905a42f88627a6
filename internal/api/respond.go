package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sfbridge-dev/sfbridge/internal/apperrors"
)

// errorBody is the JSON shape of every error response. Machine-readable
// fields are set only where the status calls for them.
type errorBody struct {
	Error           string   `json:"error"`
	Code            string   `json:"code,omitempty"`
	RetryAfter      int      `json:"retryAfter,omitempty"`
	RequiredHeaders []string `json:"requiredHeaders,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}

// writeAppError maps a domain error onto the status-code contract. The raw
// error chain is never serialized; only the domain message reaches the
// caller.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	msg := "internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	writeError(w, statusForCode(code), errorBody{Error: msg, Code: code})
}

func statusForCode(code string) int {
	switch code {
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeUpstreamCredential,
		apperrors.ErrCodeUpstreamRateLimit,
		apperrors.ErrCodeUpstreamError,
		apperrors.ErrCodeToolProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

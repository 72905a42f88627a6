package apperrors

import (
	"errors"
	"fmt"
)

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of err if it is (or wraps) an AppError, else
// ErrCodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Error codes
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUpstreamCredential = "UPSTREAM_CREDENTIALS"
	ErrCodeUpstreamRateLimit  = "UPSTREAM_RATE_LIMITED"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrCodeToolProtocol       = "TOOL_PROTOCOL_ERROR"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeInternal           = "INTERNAL"
)

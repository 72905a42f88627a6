package llm

import (
	"fmt"
	"net/http"

	"github.com/sfbridge-dev/sfbridge/internal/apperrors"
)

// mapUpstreamStatus classifies a backend HTTP status into the bridge's error
// taxonomy. Credential and quota failures get distinct codes so the caller can
// tell a misconfigured API key from a throttled one.
func mapUpstreamStatus(provider string, status int, cause error) *apperrors.AppError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.New(apperrors.ErrCodeUpstreamCredential,
			fmt.Sprintf("%s rejected the configured API key", provider), cause)
	case status == http.StatusTooManyRequests:
		return apperrors.New(apperrors.ErrCodeUpstreamRateLimit,
			fmt.Sprintf("%s rate limit exceeded", provider), cause)
	default:
		return apperrors.New(apperrors.ErrCodeUpstreamError,
			fmt.Sprintf("%s API error (status %d)", provider, status), cause)
	}
}

func upstreamError(provider string, cause error) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeUpstreamError, provider+" API error", cause)
}

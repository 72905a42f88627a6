package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sfbridge-dev/sfbridge/internal/auth"
	"github.com/sfbridge-dev/sfbridge/internal/models"
)

const (
	headerAuthorization = "Authorization"
	headerInstanceURL   = "X-Salesforce-Instance-Url"

	anonymousKey = "anonymous"
)

type contextKey string

const authContextKey contextKey = "authContext"

// AuthFromContext returns the validated AuthContext for the request, if any.
func AuthFromContext(ctx context.Context) *models.AuthContext {
	authCtx, _ := ctx.Value(authContextKey).(*models.AuthContext)
	return authCtx
}

// authMiddleware enforces the Salesforce credential headers when auth is
// required. Both headers must be present together; the rejection names them
// so callers can fix their request without guessing.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.RequireAuth {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r.Header.Get(headerAuthorization))
		instanceURL := r.Header.Get(headerInstanceURL)
		if token == "" || instanceURL == "" {
			writeError(w, http.StatusUnauthorized, errorBody{
				Error:           "missing Salesforce credentials",
				RequiredHeaders: []string{headerAuthorization, headerInstanceURL},
			})
			return
		}

		authCtx, err := s.validator.Validate(r.Context(), token, instanceURL)
		if err != nil {
			s.log.Warn().
				Str("token", auth.MaskToken(token)).
				Str("path", r.URL.Path).
				Msg("token validation failed")
			writeAppError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware admits or rejects by validated identity. Unvalidated
// traffic (auth disabled) shares one anonymous window.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := anonymousKey
		if authCtx := AuthFromContext(r.Context()); authCtx != nil {
			key = authCtx.Identity.Key()
		}

		allowed, retryAfter := s.limiter.Allow(key)
		if !allowed {
			writeError(w, http.StatusTooManyRequests, errorBody{
				Error:      "rate limit exceeded",
				RetryAfter: retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

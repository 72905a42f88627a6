// Package auth validates Salesforce bearer tokens against the OAuth userinfo
// endpoint and caches the resulting identity for a bounded TTL.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfbridge-dev/sfbridge/internal/apperrors"
	"github.com/sfbridge-dev/sfbridge/internal/models"
)

const (
	// DefaultTTL bounds how long a validated token is trusted without a
	// fresh userinfo call.
	DefaultTTL = 10 * time.Minute

	userinfoPath   = "/services/oauth2/userinfo"
	requestTimeout = 10 * time.Second

	// cacheKeySuffixLen is how many trailing token characters are kept in
	// the cache key. The full token cannot be reconstructed from the key.
	cacheKeySuffixLen = 16
)

type cacheEntry struct {
	identity    models.Identity
	validatedAt time.Time
}

// Validator verifies bearer tokens and owns the token cache.
type Validator struct {
	httpClient *http.Client
	ttl        time.Duration
	log        zerolog.Logger

	mu     sync.RWMutex
	cache  map[string]cacheEntry
	stopCh chan struct{}

	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithHTTPClient overrides the HTTP client used for userinfo calls.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Validator) { v.httpClient = c }
}

// WithTTL overrides the token cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(v *Validator) { v.ttl = ttl }
}

// NewValidator creates a Validator and starts its background cache sweep.
func NewValidator(log zerolog.Logger, opts ...Option) *Validator {
	v := &Validator{
		httpClient: &http.Client{Timeout: requestTimeout},
		ttl:        DefaultTTL,
		log:        log,
		cache:      make(map[string]cacheEntry),
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}

	go v.sweepLoop()

	return v
}

// Close stops the background sweep.
func (v *Validator) Close() {
	close(v.stopCh)
}

// Validate checks the bearer token against the instance's userinfo endpoint,
// serving from the cache when a previous validation is still within TTL.
func (v *Validator) Validate(ctx context.Context, token, instanceURL string) (*models.AuthContext, error) {
	if token == "" || instanceURL == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "access token and instance URL are required", nil)
	}

	key := cacheKey(token, instanceURL)

	v.mu.RLock()
	entry, ok := v.cache[key]
	v.mu.RUnlock()

	if ok && v.now().Sub(entry.validatedAt) < v.ttl {
		return &models.AuthContext{
			AccessToken: token,
			InstanceURL: instanceURL,
			Identity:    entry.identity,
			ValidatedAt: entry.validatedAt,
		}, nil
	}

	identity, err := v.fetchIdentity(ctx, token, instanceURL)
	if err != nil {
		return nil, err
	}

	validatedAt := v.now()
	v.mu.Lock()
	v.cache[key] = cacheEntry{identity: *identity, validatedAt: validatedAt}
	v.mu.Unlock()

	v.log.Debug().
		Str("user_id", identity.UserID).
		Str("token", MaskToken(token)).
		Msg("validated access token")

	return &models.AuthContext{
		AccessToken: token,
		InstanceURL: instanceURL,
		Identity:    *identity,
		ValidatedAt: validatedAt,
	}, nil
}

func (v *Validator) fetchIdentity(ctx context.Context, token, instanceURL string) (*models.Identity, error) {
	endpoint := strings.TrimSuffix(instanceURL, "/") + userinfoPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInternal, "failed to build userinfo request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		// Any failure to complete validation, including the identity
		// provider being down, means the token could not be validated.
		return nil, apperrors.New(apperrors.ErrCodeValidationFailed, "identity provider unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "invalid or expired Salesforce access token", nil)
	case resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "insufficient permissions for userinfo", nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, apperrors.New(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("userinfo returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var info struct {
		UserID            string `json:"user_id"`
		OrganizationID    string `json:"organization_id"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
		Name              string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeValidationFailed, "malformed userinfo response", err)
	}

	return &models.Identity{
		UserID:         info.UserID,
		Username:       info.PreferredUsername,
		OrganizationID: info.OrganizationID,
		Email:          info.Email,
		DisplayName:    info.Name,
	}, nil
}

func (v *Validator) sweepLoop() {
	ticker := time.NewTicker(v.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v.sweep()
		case <-v.stopCh:
			return
		}
	}
}

func (v *Validator) sweep() {
	now := v.now()
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, entry := range v.cache {
		if now.Sub(entry.validatedAt) >= v.ttl {
			delete(v.cache, key)
		}
	}
}

// CacheSize reports the number of live cache entries.
func (v *Validator) CacheSize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.cache)
}

func cacheKey(token, instanceURL string) string {
	suffix := token
	if len(token) > cacheKeySuffixLen {
		suffix = token[len(token)-cacheKeySuffixLen:]
	}
	return suffix + "|" + instanceURL
}

// MaskToken redacts the middle of a token for logging. Tokens shorter than 8
// characters are fully redacted.
func MaskToken(token string) string {
	if len(token) < 8 {
		return "****"
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

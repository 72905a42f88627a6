package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfbridge-dev/sfbridge/internal/apperrors"
)

const testToken = "00Dxx0000001gPLEAYsecrettokenvalue"

func userinfoHandler(calls *int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"user_id": "005xx000001X8Uz",
			"organization_id": "00Dxx0000001gPL",
			"preferred_username": "jdoe@example.com",
			"email": "jdoe@example.com",
			"name": "Jane Doe"
		}`))
	}
}

func TestValidate_CacheWithinTTL(t *testing.T) {
	var calls int64
	ts := httptest.NewServer(userinfoHandler(&calls))
	defer ts.Close()

	v := NewValidator(zerolog.Nop(), WithTTL(time.Minute))
	defer v.Close()

	first, err := v.Validate(context.Background(), testToken, ts.URL)
	require.NoError(t, err)
	require.Equal(t, "005xx000001X8Uz", first.Identity.UserID)
	require.Equal(t, "00Dxx0000001gPL", first.Identity.OrganizationID)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))

	// Second call within TTL must not hit the network
	second, err := v.Validate(context.Background(), testToken, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, first.Identity, second.Identity)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
	assert.Equal(t, 1, v.CacheSize())
}

func TestValidate_RevalidatesAfterTTL(t *testing.T) {
	var calls int64
	ts := httptest.NewServer(userinfoHandler(&calls))
	defer ts.Close()

	v := NewValidator(zerolog.Nop(), WithTTL(time.Minute))
	defer v.Close()

	_, err := v.Validate(context.Background(), testToken, ts.URL)
	require.NoError(t, err)

	// Jump past the TTL
	v.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = v.Validate(context.Background(), testToken, ts.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
}

func TestValidate_InvalidToken(t *testing.T) {
	var calls int64
	ts := httptest.NewServer(userinfoHandler(&calls))
	defer ts.Close()

	v := NewValidator(zerolog.Nop())
	defer v.Close()

	_, err := v.Validate(context.Background(), "not-the-right-token", ts.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "invalid or expired")
	assert.NotContains(t, err.Error(), "not-the-right-token")
	assert.Equal(t, 0, v.CacheSize())
}

func TestValidate_MissingInputs(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	defer v.Close()

	_, err := v.Validate(context.Background(), "", "https://example.my.salesforce.com")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))

	_, err = v.Validate(context.Background(), testToken, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

func TestValidate_IdentityProviderDown(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	defer v.Close()

	// A token that cannot be checked is a token that failed validation
	_, err := v.Validate(context.Background(), testToken, "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
}

func TestValidate_IdentityProviderFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	v := NewValidator(zerolog.Nop())
	defer v.Close()

	_, err := v.Validate(context.Background(), testToken, ts.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
	assert.NotContains(t, err.Error(), testToken)
}

func TestValidate_NeverLogsRawToken(t *testing.T) {
	var calls int64
	ts := httptest.NewServer(userinfoHandler(&calls))
	defer ts.Close()

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	v := NewValidator(log)
	defer v.Close()

	_, err := v.Validate(context.Background(), testToken, ts.URL)
	require.NoError(t, err)

	assert.NotContains(t, buf.String(), testToken)
	assert.Contains(t, buf.String(), MaskToken(testToken))
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "****"},
		{"short", "abc1234", "****"},
		{"exactly eight", "abcd1234", "abcd1234"},
		{"typical", "00Dxx12345678WXYZ", "00Dx*********WXYZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskToken(tt.token))
		})
	}
}

func TestMaskToken_HidesMiddle(t *testing.T) {
	masked := MaskToken(testToken)
	middle := testToken[4 : len(testToken)-4]
	assert.NotContains(t, masked, middle)
	assert.True(t, strings.HasPrefix(masked, testToken[:4]))
	assert.True(t, strings.HasSuffix(masked, testToken[len(testToken)-4:]))
}

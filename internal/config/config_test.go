package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
	assert.True(t, cfg.RequireAuth)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, 60*time.Second, cfg.RateWindow)
	assert.Equal(t, 10*time.Minute, cfg.TokenCacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Model.APIKeyEnv)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SFBRIDGE_PORT", "8080")
	t.Setenv("SFBRIDGE_LLM_PROVIDER", "anthropic")
	t.Setenv("SFBRIDGE_REQUIRE_AUTH", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.RequireAuth)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	// The model default follows the selected provider
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Model.Model)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Model.APIKeyEnv)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
model:
  provider: gemini
  temperature: 0.7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, "gemini-1.5-pro", cfg.Model.Model)
	assert.Equal(t, 0.7, cfg.Model.Temperature)
}

func TestLoad_ResolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")

	cfg, err := Load("")
	require.NoError(t, err)

	mc := cfg.ModelConfig()
	assert.Equal(t, "sk-test-123", mc.APIKey)
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("SFBRIDGE_LLM_PROVIDER", "cohere")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model provider")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}

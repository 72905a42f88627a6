package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

// Config holds the bridge service configuration. Environment variables are
// parsed with the SFBRIDGE_ prefix; a YAML file given with --config overlays
// the model section.
type Config struct {
	Host     string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	Port     int    `envconfig:"PORT" default:"3000" yaml:"port"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`

	// RequireAuth gates the Salesforce header enforcement on /api/chat.
	RequireAuth bool `envconfig:"REQUIRE_AUTH" default:"true" yaml:"require_auth"`

	TokenCacheTTL      time.Duration `envconfig:"TOKEN_CACHE_TTL" default:"10m" yaml:"token_cache_ttl"`
	RateLimit          int           `envconfig:"RATE_LIMIT" default:"10" yaml:"rate_limit"`
	RateWindow         time.Duration `envconfig:"RATE_WINDOW" default:"60s" yaml:"rate_window"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m" yaml:"session_idle_timeout"`

	// MCPServerURL is the streamable-HTTP endpoint of the Salesforce tool
	// server.
	MCPServerURL string `envconfig:"MCP_SERVER_URL" default:"http://localhost:3001/mcp" yaml:"mcp_server_url"`

	// envconfig namespaces nested structs under the field name, which would
	// bury these under SFBRIDGE_MODEL_*; the section is processed on its own
	// in Load so the documented SFBRIDGE_LLM_* names bind.
	Model ModelSection `yaml:"model" ignored:"true"`
}

// ModelSection selects and tunes the active LLM backend.
type ModelSection struct {
	Provider    string  `envconfig:"LLM_PROVIDER" default:"openai" yaml:"provider"`
	Model       string  `envconfig:"LLM_MODEL" yaml:"model"`
	Temperature float64 `envconfig:"LLM_TEMPERATURE" default:"0.2" yaml:"temperature"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"4096" yaml:"max_tokens"`
	APIKeyEnv   string  `envconfig:"LLM_API_KEY_ENV" yaml:"api_key_env"`
	BaseURL     string  `envconfig:"LLM_BASE_URL" yaml:"base_url"`

	apiKey string
}

var defaultModels = map[string]string{
	"openai":    "gpt-4o",
	"anthropic": "claude-3-5-sonnet-20241022",
	"gemini":    "gemini-1.5-pro",
}

var defaultKeyEnvs = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Load parses environment variables, overlays the optional YAML file, and
// resolves defaults.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SFBRIDGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := envconfig.Process("SFBRIDGE", &cfg.Model); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults fills in derived defaults that envconfig cannot express.
func (c *Config) SetDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Model.Model == "" {
		c.Model.Model = defaultModels[c.Model.Provider]
	}
	if c.Model.APIKeyEnv == "" {
		c.Model.APIKeyEnv = defaultKeyEnvs[c.Model.Provider]
	}
	if c.Model.APIKeyEnv != "" {
		c.Model.apiKey = os.Getenv(c.Model.APIKeyEnv)
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.RateWindow <= 0 {
		c.RateWindow = 60 * time.Second
	}
	if c.TokenCacheTTL <= 0 {
		c.TokenCacheTTL = 10 * time.Minute
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = 30 * time.Minute
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("unsupported model provider: %s", c.Model.Provider)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model name is required for provider %s", c.Model.Provider)
	}
	if c.MCPServerURL == "" {
		return fmt.Errorf("mcp_server_url is required")
	}
	return nil
}

// ModelConfig returns the resolved model configuration for the LLM factory.
func (c *Config) ModelConfig() models.ModelConfig {
	return models.ModelConfig{
		Provider:    c.Model.Provider,
		Model:       c.Model.Model,
		Temperature: c.Model.Temperature,
		MaxTokens:   c.Model.MaxTokens,
		APIKey:      c.Model.apiKey,
		BaseURL:     c.Model.BaseURL,
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

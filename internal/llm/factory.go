package llm

import (
	"fmt"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

// NewProvider creates the provider named by the model configuration.
func NewProvider(cfg models.ModelConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	case "gemini":
		return NewGeminiProvider(cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// Package llm abstracts the supported LLM backends behind a single Provider
// interface. Each adapter translates the bridge's neutral message and tool
// shapes into the backend's native request format and back.
package llm

import (
	"context"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

// Provider is an interface for LLM backends
type Provider interface {
	// Chat sends a chat request to the LLM and returns the complete response
	Chat(ctx context.Context, request models.LLMRequest) (*models.LLMResponse, error)

	// Name returns the provider name
	Name() string

	// SupportedModels returns a list of supported model names
	SupportedModels() []string
}

package models

import (
	"time"
)

// Identity holds the stable attributes of an authenticated Salesforce user,
// derived from the OAuth userinfo endpoint.
type Identity struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
}

// Key returns the identity key used for rate limiting. Two sessions for the
// same user share one key.
func (i Identity) Key() string {
	return i.OrganizationID + ":" + i.UserID
}

// AuthContext is an Identity plus the live credential and instance URL used
// to act on that identity's behalf. The access token is sensitive and must
// never be logged unmasked.
type AuthContext struct {
	AccessToken string    `json:"-"`
	InstanceURL string    `json:"instance_url"`
	Identity    Identity  `json:"identity"`
	ValidatedAt time.Time `json:"validated_at"`
}

// RecordContext is caller-supplied structured data about a Salesforce record,
// injected into the conversation to avoid an extra tool round-trip.
type RecordContext struct {
	Record        map[string]interface{} `json:"record"`
	ObjectAPIName string                 `json:"object_api_name"`
	RecordID      string                 `json:"record_id"`
}

// Message represents a conversation message. Once appended to a session it is
// never mutated.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool responses
	Name       string     `json:"name,omitempty"`         // tool name, set on tool responses
	IsError    bool       `json:"is_error,omitempty"`     // tool responses: the call ran but reported failure
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// ToolDescriptor describes a remote tool offered by the tool server.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the JSON-Schema-like parameter declaration for a tool.
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// AsMap renders the schema in the generic map shape the LLM SDKs expect.
func (s InputSchema) AsMap() map[string]interface{} {
	m := map[string]interface{}{}
	if s.Type != "" {
		m["type"] = s.Type
	} else {
		m["type"] = "object"
	}
	if s.Properties != nil {
		m["properties"] = s.Properties
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

// ToolCall represents a request by the model to call a tool.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolOutcome is the result of executing a tool call.
type ToolOutcome struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// LLMRequest represents a request to an LLM backend.
type LLMRequest struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDescriptor `json:"tools,omitempty"`
	Model    ModelConfig      `json:"model_config"`
}

// LLMResponse represents a response from an LLM backend.
type LLMResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"` // stop, tool_calls, length, etc.
	TokenUsage   TokenUsage `json:"token_usage"`
	ModelUsed    string     `json:"model_used"`
}

// ModelConfig represents LLM model configuration.
type ModelConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // openai, anthropic, gemini
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	TopP        float64 `json:"top_p,omitempty" yaml:"top_p"`
	APIKey      string  `json:"-" yaml:"-"`
	BaseURL     string  `json:"endpoint,omitempty" yaml:"endpoint"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates token usage across loop iterations.
func (t *TokenUsage) Add(other TokenUsage) {
	t.PromptTokens += other.PromptTokens
	t.CompletionTokens += other.CompletionTokens
	t.TotalTokens += other.TotalTokens
}

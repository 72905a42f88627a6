package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

type anthropicProvider struct {
	client *anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, baseURL string) Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
	}
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

func (p *anthropicProvider) SupportedModels() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}
}

func (p *anthropicProvider) Chat(ctx context.Context, request models.LLMRequest) (*models.LLMResponse, error) {
	messages, systemMessage := convertAnthropicMessages(request.Messages)
	tools := convertAnthropicTools(request.Tools)

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(request.Model.Model),
		Messages:    anthropic.F(messages),
		MaxTokens:   anthropic.Int(int64(request.Model.MaxTokens)),
		Temperature: anthropic.Float(request.Model.Temperature),
	}

	if systemMessage != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(systemMessage),
		})
	}

	if len(tools) > 0 {
		params.Tools = anthropic.F(tools)
	}

	if request.Model.TopP > 0 {
		params.TopP = anthropic.Float(request.Model.TopP)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, mapUpstreamStatus(p.Name(), apiErr.StatusCode, err)
		}
		return nil, upstreamError(p.Name(), err)
	}

	response := &models.LLMResponse{
		ModelUsed:    message.Model,
		FinishReason: string(message.StopReason),
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	// Extract text and tool_use blocks
	for _, block := range message.Content {
		switch b := block.AsUnion().(type) {
		case anthropic.TextBlock:
			response.Content += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal(b.Input, &args); err != nil || args == nil {
				// Malformed arguments degrade to an empty call rather
				// than failing the whole conversation
				args = map[string]interface{}{}
			}
			response.ToolCalls = append(response.ToolCalls, models.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}

	return response, nil
}

// convertAnthropicMessages maps the neutral conversation onto Anthropic
// message params. System prompts are lifted out of the message list into the
// returned system string.
func convertAnthropicMessages(msgs []models.Message) ([]anthropic.MessageParam, string) {
	messages := make([]anthropic.MessageParam, 0)
	var systemMessage string

	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			systemMessage = msg.Content
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				blocks := make([]anthropic.ContentBlockParamUnion, 0)
				if msg.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					blocks = append(blocks, anthropic.NewToolUseBlockParam(tc.ID, tc.Name, tc.Arguments))
				}
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			} else {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		case "tool":
			// Tool results travel as user-role tool_result blocks
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError),
			))
		}
	}

	return messages, systemMessage
}

// convertAnthropicTools maps tool descriptors onto Anthropic's flat
// declaration shape.
func convertAnthropicTools(descriptors []models.ToolDescriptor) []anthropic.ToolUnionUnionParam {
	tools := make([]anthropic.ToolUnionUnionParam, 0)
	for _, tool := range descriptors {
		tools = append(tools, anthropic.ToolParam{
			Name:        anthropic.F(tool.Name),
			Description: anthropic.F(tool.Description),
			InputSchema: anthropic.F(interface{}(tool.InputSchema.AsMap())),
		})
	}
	return tools
}

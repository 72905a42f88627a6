package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

type openaiProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, baseURL string) Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openaiProvider{
		client: openai.NewClient(opts...),
	}
}

func (p *openaiProvider) Name() string {
	return "openai"
}

func (p *openaiProvider) SupportedModels() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"gpt-4",
		"gpt-3.5-turbo",
	}
}

func (p *openaiProvider) Chat(ctx context.Context, request models.LLMRequest) (*models.LLMResponse, error) {
	messages := convertOpenAIMessages(request.Messages)
	tools := convertOpenAITools(request.Tools)

	params := openai.ChatCompletionNewParams{
		Model:       openai.F(request.Model.Model),
		Messages:    openai.F(messages),
		MaxTokens:   openai.Int(int64(request.Model.MaxTokens)),
		Temperature: openai.Float(request.Model.Temperature),
	}

	if len(tools) > 0 {
		params.Tools = openai.F(tools)
	}

	if request.Model.TopP > 0 {
		params.TopP = openai.Float(request.Model.TopP)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, mapUpstreamStatus(p.Name(), apiErr.StatusCode, err)
		}
		return nil, upstreamError(p.Name(), err)
	}

	if len(completion.Choices) == 0 {
		return nil, upstreamError(p.Name(), errors.New("no completion choices returned"))
	}

	choice := completion.Choices[0]
	response := &models.LLMResponse{
		Content:      choice.Message.Content,
		ModelUsed:    completion.Model,
		FinishReason: string(choice.FinishReason),
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}

	// Extract tool calls. Malformed argument JSON degrades to an empty
	// argument map rather than failing the whole turn.
	if len(choice.Message.ToolCalls) > 0 {
		response.ToolCalls = make([]models.ToolCall, 0)
		for _, tc := range choice.Message.ToolCalls {
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil || args == nil {
				args = map[string]interface{}{}
			}
			response.ToolCalls = append(response.ToolCalls, models.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
	}

	return response, nil
}

// convertOpenAIMessages maps the neutral conversation onto OpenAI's message
// unions.
func convertOpenAIMessages(msgs []models.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0)

	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				// Assistant message carrying the tool calls it issued
				toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0)
				for _, tc := range msg.ToolCalls {
					argsJSON, _ := json.Marshal(tc.Arguments)
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
						ID:   openai.F(tc.ID),
						Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
						Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      openai.F(tc.Name),
							Arguments: openai.F(string(argsJSON)),
						}),
					})
				}
				assistantMsg := openai.ChatCompletionAssistantMessageParam{
					Role:      openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
					ToolCalls: openai.F(toolCalls),
				}
				if msg.Content != "" {
					assistantMsg.Content = openai.F([]openai.ChatCompletionAssistantMessageParamContentUnion{
						openai.ChatCompletionContentPartTextParam{
							Type: openai.F(openai.ChatCompletionContentPartTextTypeText),
							Text: openai.F(msg.Content),
						},
					})
				}
				messages = append(messages, assistantMsg)
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.ToolCallID, msg.Content))
		}
	}

	return messages
}

// convertOpenAITools maps tool descriptors onto OpenAI's nested function
// declaration shape.
func convertOpenAITools(descriptors []models.ToolDescriptor) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0)
	for _, tool := range descriptors {
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.String(tool.Name),
				Description: openai.String(tool.Description),
				Parameters:  openai.F(openai.FunctionParameters(tool.InputSchema.AsMap())),
			}),
		})
	}
	return tools
}

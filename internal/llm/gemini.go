package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

type geminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey, baseURL string) (Provider, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiProvider{client: client}, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) SupportedModels() []string {
	return []string{
		"gemini-1.5-pro",
		"gemini-1.5-flash",
		"gemini-2.0-flash",
	}
}

func (p *geminiProvider) Chat(ctx context.Context, request models.LLMRequest) (*models.LLMResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(request.Model.Temperature)),
	}
	if request.Model.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.Model.MaxTokens)
	}
	if request.Model.TopP > 0 {
		config.TopP = genai.Ptr(float32(request.Model.TopP))
	}

	contents := convertGeminiMessages(request.Messages, config)

	// Convert tools to Gemini function declarations
	if len(request.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(request.Tools))
		for _, tool := range request.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertSchema(tool.InputSchema.AsMap()),
			})
		}
		config.Tools = []*genai.Tool{
			{FunctionDeclarations: declarations},
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, request.Model.Model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, mapUpstreamStatus(p.Name(), apiErr.Code, err)
		}
		return nil, upstreamError(p.Name(), err)
	}

	return p.convertResponse(request.Model.Model, resp)
}

// convertGeminiMessages maps the neutral conversation onto Gemini contents.
// System messages become the system instruction, assistant becomes the model
// role, and tool results become function responses.
func convertGeminiMessages(messages []models.Message, config *genai.GenerateContentConfig) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: msg.Content}},
			}
		case "user":
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case "assistant":
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: tc.Name,
						Args: tc.Arguments,
					},
				})
			}
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: parts,
			})
		case "tool":
			// Tool results come back from the user side
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name: msg.Name,
						Response: map[string]interface{}{
							"result": msg.Content,
						},
					},
				}},
			})
		}
	}

	return contents
}

func (p *geminiProvider) convertResponse(model string, resp *genai.GenerateContentResponse) (*models.LLMResponse, error) {
	response := &models.LLMResponse{
		ModelUsed: model,
	}

	if resp.UsageMetadata != nil {
		response.TokenUsage = models.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, upstreamError(p.Name(), errors.New("no candidates returned"))
	}

	candidate := resp.Candidates[0]
	response.FinishReason = string(candidate.FinishReason)

	// Gemini function calls carry no call IDs, so synthesize positional ones
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			response.Content += part.Text
		}
		if part.FunctionCall != nil {
			args := make(map[string]interface{})
			for k, v := range part.FunctionCall.Args {
				args[k] = v
			}
			response.ToolCalls = append(response.ToolCalls, models.ToolCall{
				ID:        fmt.Sprintf("call_%d", len(response.ToolCalls)),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}

	return response, nil
}

// convertSchema maps a JSON-Schema-like map onto Gemini's typed schema.
func convertSchema(params map[string]interface{}) *genai.Schema {
	if params == nil {
		return nil
	}

	schema := &genai.Schema{}

	if schemaType, ok := params["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(schemaType))
	}

	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}

	if props, ok := params["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for key, value := range props {
			if propMap, ok := value.(map[string]interface{}); ok {
				schema.Properties[key] = convertSchema(propMap)
			}
		}
	}

	if required, ok := params["required"].([]interface{}); ok {
		schema.Required = make([]string, 0, len(required))
		for _, field := range required {
			if fieldStr, ok := field.(string); ok {
				schema.Required = append(schema.Required, fieldStr)
			}
		}
	} else if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}

	if items, ok := params["items"].(map[string]interface{}); ok {
		schema.Items = convertSchema(items)
	}

	if enum, ok := params["enum"].([]interface{}); ok {
		schema.Enum = make([]string, 0, len(enum))
		for _, val := range enum {
			if valStr, ok := val.(string); ok {
				schema.Enum = append(schema.Enum, valStr)
			}
		}
	} else if enum, ok := params["enum"].([]string); ok {
		schema.Enum = enum
	}

	return schema
}

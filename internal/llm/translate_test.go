package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

var sampleCatalog = []models.ToolDescriptor{
	{
		Name:        "get_account",
		Description: "Fetch a Salesforce account by id",
		InputSchema: models.InputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{"type": "string"},
			},
			Required: []string{"id"},
		},
	},
	{
		Name:        "list_opportunities",
		Description: "List open opportunities",
		InputSchema: models.InputSchema{Type: "object"},
	},
}

var sampleConversation = []models.Message{
	{Role: "system", Content: "You are a Salesforce assistant."},
	{Role: "user", Content: "Look up account 001xx."},
	{
		Role:    "assistant",
		Content: "Checking.",
		ToolCalls: []models.ToolCall{
			{ID: "call_1", Name: "get_account", Arguments: map[string]interface{}{"id": "001xx"}},
		},
	},
	{Role: "tool", Content: `{"Name": "Acme"}`, ToolCallID: "call_1", Name: "get_account"},
}

func TestConvertOpenAITools(t *testing.T) {
	tools := convertOpenAITools(sampleCatalog)
	require.Len(t, tools, 2)

	first := tools[0].Function.Value
	assert.Equal(t, "get_account", first.Name.Value)
	assert.Equal(t, "Fetch a Salesforce account by id", first.Description.Value)

	params := map[string]interface{}(first.Parameters.Value)
	assert.Equal(t, "object", params["type"])
	assert.Contains(t, params, "properties")
	assert.Equal(t, []string{"id"}, params["required"])

	// A schema with no properties still declares its type
	second := map[string]interface{}(tools[1].Function.Value.Parameters.Value)
	assert.Equal(t, "object", second["type"])
	assert.NotContains(t, second, "properties")
}

func TestConvertOpenAIMessages(t *testing.T) {
	messages := convertOpenAIMessages(sampleConversation)
	require.Len(t, messages, 4)

	toolMsg, ok := messages[3].(openai.ChatCompletionToolMessageParam)
	require.True(t, ok, "tool result must map to a tool message")
	assert.Equal(t, "call_1", toolMsg.ToolCallID.Value)

	assistantMsg, ok := messages[2].(openai.ChatCompletionAssistantMessageParam)
	require.True(t, ok, "assistant with tool calls must map to an assistant param")
	require.Len(t, assistantMsg.ToolCalls.Value, 1)
	call := assistantMsg.ToolCalls.Value[0]
	assert.Equal(t, "call_1", call.ID.Value)
	assert.Equal(t, "get_account", call.Function.Value.Name.Value)
	assert.JSONEq(t, `{"id":"001xx"}`, call.Function.Value.Arguments.Value)
}

func TestConvertAnthropicMessages(t *testing.T) {
	messages, system := convertAnthropicMessages(sampleConversation)

	// System prompt is lifted out of the message list
	assert.Equal(t, "You are a Salesforce assistant.", system)
	require.Len(t, messages, 3)

	// Assistant tool calls map to tool_use blocks after the text
	assistantBlocks := messages[1].Content.Value
	require.Len(t, assistantBlocks, 2)
	toolUse, ok := assistantBlocks[1].(anthropic.ToolUseBlockParam)
	require.True(t, ok, "tool call must map to a tool_use block")
	assert.Equal(t, "call_1", toolUse.ID.Value)
	assert.Equal(t, "get_account", toolUse.Name.Value)

	// Tool results map to user-role tool_result blocks
	resultBlocks := messages[2].Content.Value
	require.Len(t, resultBlocks, 1)
	result, ok := resultBlocks[0].(anthropic.ToolResultBlockParam)
	require.True(t, ok, "tool result must map to a tool_result block")
	assert.Equal(t, "call_1", result.ToolUseID.Value)
	assert.False(t, result.IsError.Value)
}

func TestConvertAnthropicMessages_ToolErrorFlag(t *testing.T) {
	messages, _ := convertAnthropicMessages([]models.Message{
		{Role: "tool", Content: "Error: no such record", ToolCallID: "call_7", Name: "get_account", IsError: true},
	})
	require.Len(t, messages, 1)

	result, ok := messages[0].Content.Value[0].(anthropic.ToolResultBlockParam)
	require.True(t, ok)
	assert.True(t, result.IsError.Value, "failed tool outcomes use the native error flag")
}

func TestConvertAnthropicTools(t *testing.T) {
	tools := convertAnthropicTools(sampleCatalog)
	require.Len(t, tools, 2)

	first, ok := tools[0].(anthropic.ToolParam)
	require.True(t, ok)
	assert.Equal(t, "get_account", first.Name.Value)
	assert.Equal(t, "Fetch a Salesforce account by id", first.Description.Value)

	schema, ok := first.InputSchema.Value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema, "properties")
}

func TestConvertGeminiMessages(t *testing.T) {
	config := &genai.GenerateContentConfig{}
	contents := convertGeminiMessages(sampleConversation, config)

	// System prompt becomes the system instruction, not a content entry
	require.NotNil(t, config.SystemInstruction)
	require.Len(t, config.SystemInstruction.Parts, 1)
	assert.Equal(t, "You are a Salesforce assistant.", config.SystemInstruction.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)

	// Assistant maps to the model role with text and function-call parts
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "Checking.", contents[1].Parts[0].Text)
	require.NotNil(t, contents[1].Parts[1].FunctionCall)
	assert.Equal(t, "get_account", contents[1].Parts[1].FunctionCall.Name)

	// Tool results become function responses keyed by tool name
	assert.Equal(t, "user", contents[2].Role)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "get_account", contents[2].Parts[0].FunctionResponse.Name)
	assert.Contains(t, contents[2].Parts[0].FunctionResponse.Response, "result")
}

func TestConvertSchema(t *testing.T) {
	schema := convertSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"status": map[string]interface{}{
				"type": "string",
				"enum": []interface{}{"open", "closed"},
			},
			"limit": map[string]interface{}{"type": "integer"},
		},
		"required": []interface{}{"status"},
	})

	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"status"}, schema.Required)

	require.Contains(t, schema.Properties, "status")
	assert.Equal(t, genai.TypeString, schema.Properties["status"].Type)
	assert.Equal(t, []string{"open", "closed"}, schema.Properties["status"].Enum)
	assert.Equal(t, genai.TypeInteger, schema.Properties["limit"].Type)
}

func TestConvertSchema_Nil(t *testing.T) {
	assert.Nil(t, convertSchema(nil))
}

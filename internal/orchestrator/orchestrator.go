// Package orchestrator runs the chat turn state machine: assemble the prompt,
// dispatch to the configured LLM backend, execute any pending tool calls, and
// repeat until the backend produces a final answer or the dispatch ceiling is
// reached.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfbridge-dev/sfbridge/internal/llm"
	"github.com/sfbridge-dev/sfbridge/internal/models"
	"github.com/sfbridge-dev/sfbridge/internal/session"
)

const (
	// maxDispatches bounds backend calls per turn. This is a safety bound,
	// not an optimization: the 10th dispatch still reporting pending tool
	// calls ends the turn with FallbackAnswer, never an 11th dispatch.
	maxDispatches = 10

	// FallbackAnswer is returned verbatim when a turn hits the dispatch
	// ceiling with tool calls still pending.
	FallbackAnswer = "I wasn't able to complete the request in the allotted number of steps. Please try rephrasing or breaking it into smaller parts."

	systemPrompt = `You are an assistant embedded in a Salesforce organization. ` +
		`You answer questions and take actions on behalf of the authenticated user. ` +
		`Use the available tools to look up or modify Salesforce data when the request requires it. ` +
		`Prefer tool results over assumptions, and say clearly when you could not complete a request.`
)

// ToolExecutor is the slice of the tool client the loop depends on.
type ToolExecutor interface {
	ListTools(ctx context.Context) ([]models.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}, authCtx *models.AuthContext) (*models.ToolOutcome, error)
}

// Result is the outcome of one completed chat turn.
type Result struct {
	Answer     string
	TokenUsage models.TokenUsage
}

// Orchestrator drives chat turns against one provider and one tool client.
type Orchestrator struct {
	provider llm.Provider
	tools    ToolExecutor
	modelCfg models.ModelConfig
	log      zerolog.Logger

	now func() time.Time
}

// New creates an Orchestrator.
func New(provider llm.Provider, tools ToolExecutor, modelCfg models.ModelConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		tools:    tools,
		modelCfg: modelCfg,
		log:      log,
		now:      time.Now,
	}
}

// Run executes one chat turn. It appends the user message, every assistant
// and tool message produced along the way, and the final answer to
// sess.Messages; the caller persists the mutated session.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, userMessage string) (*Result, error) {
	catalog, err := o.tools.ListTools(ctx)
	if err != nil {
		// A turn without tools is still a turn; the backend can answer
		// from the conversation alone.
		o.log.Warn().Err(err).Msg("tool catalog unavailable for this turn")
		catalog = nil
	}

	sess.Messages = append(sess.Messages, models.Message{
		Role:      "user",
		Content:   o.renderUserMessage(sess, userMessage),
		Timestamp: o.now(),
	})

	// An aborted turn keeps the user's message but discards any partial
	// assistant or tool messages produced before the failure.
	turnStart := len(sess.Messages)

	var usage models.TokenUsage

	for dispatch := 0; dispatch < maxDispatches; dispatch++ {
		resp, err := o.provider.Chat(ctx, models.LLMRequest{
			Messages: o.assemble(sess),
			Tools:    catalog,
			Model:    o.modelCfg,
		})
		if err != nil {
			sess.Messages = sess.Messages[:turnStart]
			return nil, err
		}
		usage.Add(resp.TokenUsage)

		content := resp.Content
		toolCalls := resp.ToolCalls
		if len(toolCalls) == 0 {
			// Some backends emit the call as JSON inside free text
			if rest, call, ok := llm.ParseEmbeddedToolCall(content); ok {
				content = rest
				toolCalls = []models.ToolCall{*call}
			}
		}

		sess.Messages = append(sess.Messages, models.Message{
			Role:      "assistant",
			Content:   content,
			ToolCalls: toolCalls,
			Timestamp: o.now(),
		})

		if len(toolCalls) == 0 {
			answer := extractAnswer(resp, sess.Messages)
			o.log.Info().
				Str("session_id", sess.ID).
				Int("dispatches", dispatch+1).
				Int("total_tokens", usage.TotalTokens).
				Msg("turn complete")
			return &Result{Answer: answer, TokenUsage: usage}, nil
		}

		if dispatch == maxDispatches-1 {
			o.log.Warn().
				Str("session_id", sess.ID).
				Int("dispatches", maxDispatches).
				Int("total_tokens", usage.TotalTokens).
				Msg("dispatch ceiling reached with tool calls still pending")
			// The pending calls are never executed, so no results can
			// follow them. Persisting the call requests would leave the
			// history with dangling tool calls the backends reject on
			// the session's next turn.
			sess.Messages[len(sess.Messages)-1].ToolCalls = nil
			sess.Messages = append(sess.Messages, models.Message{
				Role:      "assistant",
				Content:   FallbackAnswer,
				Timestamp: o.now(),
			})
			return &Result{Answer: FallbackAnswer, TokenUsage: usage}, nil
		}

		// Execute pending calls strictly in the order the backend
		// returned them; each outcome is merged before the re-dispatch.
		for _, tc := range toolCalls {
			outcome, err := o.tools.CallTool(ctx, tc.Name, tc.Arguments, sess.Auth)
			if err != nil {
				sess.Messages = sess.Messages[:turnStart]
				return nil, err
			}
			resultContent := outcome.Content
			if outcome.IsError {
				resultContent = "Error: " + resultContent
			}
			sess.Messages = append(sess.Messages, models.Message{
				Role:       "tool",
				Content:    resultContent,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				IsError:    outcome.IsError,
				Timestamp:  o.now(),
			})
		}
	}

	// Unreachable: the loop always returns on the final dispatch.
	return &Result{Answer: FallbackAnswer, TokenUsage: usage}, nil
}

// assemble prepends the system instructions to the session's conversation.
func (o *Orchestrator) assemble(sess *session.Session) []models.Message {
	system := systemPrompt
	if sess.Record != nil && o.recordGoesToSystem() {
		system += "\n\n" + renderRecordContext(sess.Record)
	}

	messages := make([]models.Message, 0, len(sess.Messages)+1)
	messages = append(messages, models.Message{Role: "system", Content: system})
	messages = append(messages, sess.Messages...)
	return messages
}

// renderUserMessage merges the record context into the user message for
// backends that take situational data in-band rather than as instructions.
func (o *Orchestrator) renderUserMessage(sess *session.Session, userMessage string) string {
	if sess.Record != nil && !o.recordGoesToSystem() {
		return renderRecordContext(sess.Record) + "\n\n" + userMessage
	}
	return userMessage
}

// recordGoesToSystem reports where the backend conventionally takes
// situational context. OpenAI models follow in-band user content more
// reliably; Anthropic and Gemini take it as system instructions.
func (o *Orchestrator) recordGoesToSystem() bool {
	return o.provider.Name() != "openai"
}

// renderRecordContext renders the caller-supplied record into text. The
// record payload is caller data, never credentials.
func renderRecordContext(rc *models.RecordContext) string {
	data, err := json.MarshalIndent(rc.Record, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	return fmt.Sprintf("The user is currently viewing this Salesforce record.\nObject: %s\nRecord ID: %s\nRecord data:\n%s",
		rc.ObjectAPIName, rc.RecordID, string(data))
}

// extractAnswer applies the answer fallback chain so an unexpected but
// non-empty response shape never produces an empty answer: response text,
// then the last non-empty assistant message, then the serialized response.
func extractAnswer(resp *models.LLMResponse, messages []models.Message) string {
	if resp.Content != "" {
		return resp.Content
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	dump, err := json.Marshal(resp)
	if err != nil {
		return ""
	}
	return string(dump)
}

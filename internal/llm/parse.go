package llm

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/sfbridge-dev/sfbridge/internal/models"
)

// embeddedCall is the shape some models emit inside plain text instead of
// using the native tool-call channel.
type embeddedCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ParseEmbeddedToolCall scans assistant text for a trailing JSON object of the
// form {"name": ..., "arguments": ...} and lifts it into a ToolCall. It
// returns the remaining text, the call, and whether one was found. The object
// must close out the text; JSON quoted mid-prose is left alone.
func ParseEmbeddedToolCall(content string) (string, *models.ToolCall, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasSuffix(trimmed, "}") {
		return content, nil, false
	}

	// Try successively earlier opening braces until one parses as a complete
	// object ending the text.
	for start := strings.LastIndex(trimmed, "{"); start >= 0; start = strings.LastIndex(trimmed[:start], "{") {
		candidate := trimmed[start:]

		var call embeddedCall
		dec := json.NewDecoder(strings.NewReader(candidate))
		if err := dec.Decode(&call); err != nil {
			continue
		}
		if dec.More() {
			continue
		}
		if call.Name == "" {
			continue
		}

		if call.Arguments == nil {
			call.Arguments = map[string]interface{}{}
		}
		rest := strings.TrimSpace(trimmed[:start])
		return rest, &models.ToolCall{
			ID:        "call_" + uuid.NewString()[:8],
			Name:      call.Name,
			Arguments: call.Arguments,
		}, true
	}

	return content, nil, false
}

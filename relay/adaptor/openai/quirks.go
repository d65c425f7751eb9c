package openai

import (
	"encoding/json"
	"strings"

	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

// applyToolCallFixup handles models that, after receiving a tool result, echo
// a fresh spurious tool call with finish_reason=tool_calls instead of closing
// the turn. When the last input turn was a tool result and the choice carries
// new tool calls, the finish reason is rewritten to stop and the calls dropped.
func applyToolCallFixup(request *relaymodel.GeneralRequest, resp *relaymodel.TextResponse) {
	if request == nil || len(request.Messages) == 0 {
		return
	}
	if request.Messages[len(request.Messages)-1].Role != relaymodel.RoleTool {
		return
	}
	for i := range resp.Choices {
		ch := &resp.Choices[i]
		if ch.FinishReason == relaymodel.FinishReasonToolCalls && len(ch.Message.ToolCalls) > 0 {
			ch.FinishReason = relaymodel.FinishReasonStop
			ch.Message.ToolCalls = nil
		}
	}
}

// stripJSONFence unwraps content of the form ```json ... ``` into canonical
// JSON text. Mistral wraps JSON-mode output in a markdown fence.
func stripJSONFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	inner := strings.TrimPrefix(trimmed, "```json")
	if inner == trimmed {
		inner = strings.TrimPrefix(trimmed, "```")
	}
	inner = strings.TrimSuffix(strings.TrimSpace(inner), "```")
	inner = strings.TrimSpace(inner)

	var parsed any
	if err := json.Unmarshal([]byte(inner), &parsed); err != nil {
		return content
	}
	out, err := json.Marshal(parsed)
	if err != nil {
		return content
	}
	return string(out)
}

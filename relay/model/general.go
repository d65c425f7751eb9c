package model

// ResponseFormat selects plain text or JSON-object output mode.
type ResponseFormat struct {
	Type string `json:"type"`
}

const (
	ResponseFormatText       = "text"
	ResponseFormatJSONObject = "json_object"
)

// GeneralRequest is the canonical chat-completions request accepted on
// /v1/chat/completions and produced by the /v1/messages adapter. The shape is
// OpenAI-compatible; provider dialects are derived from it.
type GeneralRequest struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       any             `json:"tool_choice,omitempty"`
	ReasoningEffort  string          `json:"reasoning_effort,omitempty"`
}

// HasToolCallHistory reports whether any prior turn carried tool calls or tool
// results. The Responses API route is skipped for such histories.
func (r *GeneralRequest) HasToolCallHistory() bool {
	for i := range r.Messages {
		if r.Messages[i].Role == RoleTool || len(r.Messages[i].ToolCalls) > 0 {
			return true
		}
	}
	return false
}

// EffectiveMaxTokens resolves max_tokens with the gateway default applied.
func (r *GeneralRequest) EffectiveMaxTokens(defaultMax int) int {
	if r.MaxTokens != nil && *r.MaxTokens > 0 {
		return *r.MaxTokens
	}
	return defaultMax
}

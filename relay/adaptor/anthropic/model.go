package anthropic

import (
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

// Request is the Anthropic Messages API body.
type Request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
}

type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is the tagged union used for both requests and responses:
// text, thinking, image, tool_use and tool_result blocks.
type ContentBlock struct {
	Type string `json:"type"`

	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	Source *ImageSource `json:"source,omitempty"`

	Id    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	ToolUseId string `json:"tool_use_id,omitempty"`
	Content   any    `json:"content,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

type Usage struct {
	InputTokens           int `json:"input_tokens"`
	OutputTokens          int `json:"output_tokens"`
	ReasoningOutputTokens int `json:"reasoning_output_tokens"`
	CacheReadInputTokens  int `json:"cache_read_input_tokens"`
}

func (u *Usage) canonical() *relaymodel.Usage {
	if u == nil {
		return nil
	}
	usage := &relaymodel.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
		ReasoningTokens:  u.ReasoningOutputTokens,
	}
	if u.CacheReadInputTokens > 0 {
		usage.PromptTokensDetails = &relaymodel.UsagePromptTokensDetails{
			CachedTokens: u.CacheReadInputTokens,
		}
	}
	return usage
}

// Response is the non-streaming Messages API response.
type Response struct {
	Id         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role,omitempty"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *Usage         `json:"usage"`
	Error      *APIError      `json:"error"`
}

type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StreamEvent covers every Messages stream event type the gateway consumes.
type StreamEvent struct {
	Type         string        `json:"type"`
	Index        int           `json:"index"`
	Message      *Response     `json:"message"`
	ContentBlock *ContentBlock `json:"content_block"`
	Delta        *StreamDelta  `json:"delta"`
	Usage        *Usage        `json:"usage"`
}

type StreamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Thinking    string `json:"thinking"`
	PartialJSON string `json:"partial_json"`
	StopReason  string `json:"stop_reason"`
}

// mapStopReason translates Anthropic stop reasons to canonical finish reasons.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return relaymodel.FinishReasonStop
	case "max_tokens":
		return relaymodel.FinishReasonLength
	case "tool_use":
		return relaymodel.FinishReasonToolCalls
	case "":
		return ""
	default:
		return relaymodel.FinishReasonUnknown
	}
}

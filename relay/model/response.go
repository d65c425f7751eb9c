package model

// ResponseMessage is the assistant message of a completed choice.
type ResponseMessage struct {
	Role             string   `json:"role"`
	Content          string   `json:"content"`
	ReasoningContent *string  `json:"reasoning_content,omitempty"`
	ToolCalls        []Tool   `json:"tool_calls,omitempty"`
	Images           []string `json:"images,omitempty"`
}

// Choice is one completed choice of a canonical response.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// TextResponse is the canonical non-streaming response body.
type TextResponse struct {
	Id      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Delta is the incremental assistant message of a streaming frame. Role is
// forced to "assistant" whenever any field is populated.
type Delta struct {
	Role             string   `json:"role,omitempty"`
	Content          string   `json:"content,omitempty"`
	ReasoningContent *string  `json:"reasoning_content,omitempty"`
	ToolCalls        []Tool   `json:"tool_calls,omitempty"`
	Images           []string `json:"images,omitempty"`
}

// ChunkChoice is one choice of a canonical streaming frame.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// StreamResponse is the canonical streaming frame ("chat.completion.chunk").
type StreamResponse struct {
	Id      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
)

package openai

import (
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

// chatMessage is the upstream assistant message. OpenAI-compatible providers
// disagree on the reasoning field name, so both are accepted.
type chatMessage struct {
	Role             string           `json:"role"`
	Content          string           `json:"content"`
	ReasoningContent *string          `json:"reasoning_content"`
	Reasoning        *string          `json:"reasoning"`
	ToolCalls        []relaymodel.Tool `json:"tool_calls"`
	Images           []string         `json:"images"`
}

func (m *chatMessage) reasoning() *string {
	if m.ReasoningContent != nil {
		return m.ReasoningContent
	}
	return m.Reasoning
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

func (u *chatUsage) canonical() *relaymodel.Usage {
	if u == nil {
		return nil
	}
	usage := &relaymodel.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.CompletionTokensDetails != nil {
		usage.ReasoningTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	if u.PromptTokensDetails != nil && u.PromptTokensDetails.CachedTokens > 0 {
		usage.PromptTokensDetails = &relaymodel.UsagePromptTokensDetails{
			CachedTokens: u.PromptTokensDetails.CachedTokens,
		}
	}
	return usage
}

type chatResponse struct {
	Id      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []chatChoice     `json:"choices"`
	Usage   *chatUsage       `json:"usage"`
	Error   *relaymodel.Error `json:"error"`
}

type chunkDelta struct {
	Role             string           `json:"role"`
	Content          string           `json:"content"`
	ReasoningContent *string          `json:"reasoning_content"`
	Reasoning        *string          `json:"reasoning"`
	ToolCalls        []relaymodel.Tool `json:"tool_calls"`
	Images           []string         `json:"images"`
}

func (d *chunkDelta) reasoning() *string {
	if d.ReasoningContent != nil {
		return d.ReasoningContent
	}
	return d.Reasoning
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chatChunk struct {
	Id      string        `json:"id"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Usage   *chatUsage    `json:"usage"`
}

package gemini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/streaming"
)

func testMeta() *meta.Meta {
	return &meta.Meta{UpstreamModel: "gemini-test"}
}

func TestConvertRequest(t *testing.T) {
	a := &Adaptor{}
	maxTokens := 512
	out, err := a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		MaxTokens: &maxTokens,
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleSystem, Content: "be terse"},
			{Role: relaymodel.RoleUser, Content: "hello"},
			{Role: relaymodel.RoleAssistant, Content: "hi, how can I help?"},
			{Role: relaymodel.RoleUser, Content: "what is 2+2"},
		},
	})
	require.NoError(t, err)
	req := out.(*Request)

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "be terse", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	require.NotNil(t, req.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 512, *req.GenerationConfig.MaxOutputTokens)
}

func TestConvertRequestToolHistory(t *testing.T) {
	a := &Adaptor{}
	out, err := a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: "weather?"},
			{Role: relaymodel.RoleAssistant, ToolCalls: []relaymodel.Tool{{
				Id: "call_1", Type: "function",
				Function: &relaymodel.Function{Name: "get_weather", Arguments: `{"city":"berlin"}`},
			}}},
			{Role: relaymodel.RoleTool, ToolCallID: "call_1", Content: "cloudy"},
		},
		Tools: []relaymodel.Tool{{
			Type:     "function",
			Function: &relaymodel.Function{Name: "get_weather", Parameters: map[string]any{"type": "object"}},
		}},
	})
	require.NoError(t, err)
	req := out.(*Request)

	require.Len(t, req.Contents, 3)
	call := req.Contents[1].Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "get_weather", call.Name)
	assert.Equal(t, map[string]any{"city": "berlin"}, call.Args)

	fr := req.Contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	// The function name falls back to the tool call id when absent.
	assert.Equal(t, "call_1", fr.Name)

	require.Len(t, req.Tools, 1)
	require.Len(t, req.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "get_weather", req.Tools[0].FunctionDeclarations[0].Name)
}

func TestConvertRequestJSONMode(t *testing.T) {
	a := &Adaptor{}
	out, err := a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		ResponseFormat: &relaymodel.ResponseFormat{Type: relaymodel.ResponseFormatJSONObject},
		Messages:       []relaymodel.Message{{Role: relaymodel.RoleUser, Content: "json please"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", out.(*Request).GenerationConfig.ResponseMimeType)
}

func TestParseResponse(t *testing.T) {
	a := &Adaptor{}
	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [
				{"text": "reasoning first", "thought": true},
				{"text": "the answer is 4"}
			]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 6, "thoughtsTokenCount": 4, "totalTokenCount": 99}
	}`)

	resp, err := a.ParseResponse(testMeta(), nil, body)
	require.NoError(t, err)
	choice := resp.Choices[0]
	assert.Equal(t, "the answer is 4", choice.Message.Content)
	require.NotNil(t, choice.Message.ReasoningContent)
	assert.Equal(t, "reasoning first", *choice.Message.ReasoningContent)
	assert.Equal(t, relaymodel.FinishReasonStop, choice.FinishReason)

	// The upstream total is ignored and recomputed.
	assert.Equal(t, 8, resp.Usage.PromptTokens)
	assert.Equal(t, 6, resp.Usage.CompletionTokens)
	assert.Equal(t, 4, resp.Usage.ReasoningTokens)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
}

func TestParseResponseFunctionCall(t *testing.T) {
	a := &Adaptor{}
	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [
				{"functionCall": {"name": "get_weather", "args": {"city": "oslo"}}}
			]},
			"finishReason": "STOP"
		}]
	}`)

	resp, err := a.ParseResponse(testMeta(), nil, body)
	require.NoError(t, err)
	choice := resp.Choices[0]
	require.Len(t, choice.Message.ToolCalls, 1)
	call := choice.Message.ToolCalls[0]
	assert.True(t, strings.HasPrefix(call.Id, "call_"))
	assert.Equal(t, "get_weather", call.Function.Name)
	assert.JSONEq(t, `{"city": "oslo"}`, call.Function.Arguments)
	assert.Equal(t, relaymodel.FinishReasonToolCalls, choice.FinishReason)
}

func TestParseResponseMissingCompletionCount(t *testing.T) {
	a := &Adaptor{}
	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "a fairly long answer body"}]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 0}
	}`)

	resp, err := a.ParseResponse(testMeta(), nil, body)
	require.NoError(t, err)
	assert.Greater(t, resp.Usage.CompletionTokens, 0)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestParseResponseInlineImage(t *testing.T) {
	a := &Adaptor{}
	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [
				{"inlineData": {"mimeType": "image/png", "data": "iVBORw0KGgo="}}
			]},
			"finishReason": "STOP"
		}]
	}`)

	resp, err := a.ParseResponse(testMeta(), nil, body)
	require.NoError(t, err)
	require.Len(t, resp.Choices[0].Message.Images, 1)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", resp.Choices[0].Message.Images[0])
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, relaymodel.FinishReasonStop, mapFinishReason("STOP"))
	assert.Equal(t, relaymodel.FinishReasonLength, mapFinishReason("MAX_TOKENS"))
	assert.Equal(t, relaymodel.FinishReasonContentFilter, mapFinishReason("SAFETY"))
}

func TestStreamTransformer(t *testing.T) {
	a := &Adaptor{}
	request := &relaymodel.GeneralRequest{
		Messages: []relaymodel.Message{{Role: relaymodel.RoleUser, Content: "hello there"}},
	}
	tr := a.NewStreamTransformer(testMeta(), request).(*streamTransformer)

	frames, err := tr.Transform(streaming.Event{Data: `{"candidates": [{"content": {"parts": [{"text": "Hel"}]}}]}`})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "Hel", frames[0].Choices[0].Delta.Content)
	assert.Equal(t, relaymodel.RoleAssistant, frames[0].Choices[0].Delta.Role)

	frames, err = tr.Transform(streaming.Event{Data: `{"candidates": [{"content": {"parts": [{"text": "lo"}]}, "finishReason": "STOP"}], "usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 2}}`})
	require.NoError(t, err)
	require.Len(t, frames, 2)

	terminal := frames[1]
	require.NotNil(t, terminal.Choices[0].FinishReason)
	assert.Equal(t, relaymodel.FinishReasonStop, *terminal.Choices[0].FinishReason)
	require.NotNil(t, terminal.Usage)
	assert.Equal(t, 3, terminal.Usage.PromptTokens)
	assert.Equal(t, 2, terminal.Usage.CompletionTokens)

	content, _ := tr.Content()
	assert.Equal(t, "Hello", content)
	assert.Equal(t, relaymodel.FinishReasonStop, tr.FinishReason())
}

func TestStreamTransformerSynthesizesPrompt(t *testing.T) {
	a := &Adaptor{}
	request := &relaymodel.GeneralRequest{
		Messages: []relaymodel.Message{{Role: relaymodel.RoleUser, Content: "a reasonably sized prompt"}},
	}
	tr := a.NewStreamTransformer(testMeta(), request).(*streamTransformer)

	// Upstream never reports usage; the terminal frame still carries counts.
	frames, err := tr.Transform(streaming.Event{Data: `{"candidates": [{"content": {"parts": [{"text": "done"}]}, "finishReason": "STOP"}]}`})
	require.NoError(t, err)
	terminal := frames[len(frames)-1]
	require.NotNil(t, terminal.Usage)
	assert.Greater(t, terminal.Usage.PromptTokens, 0)
	assert.Greater(t, terminal.Usage.CompletionTokens, 0)
	assert.Equal(t,
		terminal.Usage.PromptTokens+terminal.Usage.CompletionTokens+terminal.Usage.ReasoningTokens,
		terminal.Usage.TotalTokens)
}

func TestStreamTransformerFunctionCall(t *testing.T) {
	a := &Adaptor{}
	tr := a.NewStreamTransformer(testMeta(), nil).(*streamTransformer)

	frames, err := tr.Transform(streaming.Event{Data: `{"candidates": [{"content": {"parts": [{"functionCall": {"name": "calc", "args": {"expr": "2+2"}}}]}, "finishReason": "STOP"}]}`})
	require.NoError(t, err)
	require.Len(t, frames, 2)

	calls := frames[0].Choices[0].Delta.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "calc", calls[0].Function.Name)
	require.NotNil(t, calls[0].Index)
	assert.Equal(t, 0, *calls[0].Index)

	// A function call forces the tool_calls finish reason.
	assert.Equal(t, relaymodel.FinishReasonToolCalls, tr.FinishReason())
}

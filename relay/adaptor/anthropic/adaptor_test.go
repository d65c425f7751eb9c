package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/streaming"
)

func testMeta() *meta.Meta {
	return &meta.Meta{UpstreamModel: "claude-test"}
}

func TestConvertRequestSystemPullOut(t *testing.T) {
	a := &Adaptor{}
	out, err := a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleSystem, Content: "be brief"},
			{Role: relaymodel.RoleSystem, Content: "be kind"},
			{Role: relaymodel.RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	req := out.(*Request)
	assert.Equal(t, "be brief\nbe kind", req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, relaymodel.RoleUser, req.Messages[0].Role)
	require.Len(t, req.Messages[0].Content, 1)
	assert.Equal(t, "hello", req.Messages[0].Content[0].Text)
}

func TestConvertRequestDefaultMaxTokens(t *testing.T) {
	a := &Adaptor{}
	out, err := a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		Messages: []relaymodel.Message{{Role: relaymodel.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4096, out.(*Request).MaxTokens)

	maxTokens := 256
	out, err = a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		MaxTokens: &maxTokens,
		Messages:  []relaymodel.Message{{Role: relaymodel.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 256, out.(*Request).MaxTokens)
}

func TestConvertRequestToolTurns(t *testing.T) {
	a := &Adaptor{}
	out, err := a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		Messages: []relaymodel.Message{
			{Role: relaymodel.RoleUser, Content: "weather in paris?"},
			{Role: relaymodel.RoleAssistant, ToolCalls: []relaymodel.Tool{{
				Id: "call_1", Type: "function",
				Function: &relaymodel.Function{Name: "get_weather", Arguments: `{"city":"paris"}`},
			}}},
			{Role: relaymodel.RoleTool, ToolCallID: "call_1", Content: "rainy"},
		},
		Tools: []relaymodel.Tool{{
			Type: "function",
			Function: &relaymodel.Function{
				Name:        "get_weather",
				Description: "look up weather",
				Parameters:  map[string]any{"type": "object"},
			},
		}},
	})
	require.NoError(t, err)
	req := out.(*Request)
	require.Len(t, req.Messages, 3)

	assistant := req.Messages[1]
	require.Len(t, assistant.Content, 1)
	assert.Equal(t, "tool_use", assistant.Content[0].Type)
	assert.Equal(t, "call_1", assistant.Content[0].Id)
	assert.Equal(t, map[string]any{"city": "paris"}, assistant.Content[0].Input)

	toolResult := req.Messages[2]
	assert.Equal(t, relaymodel.RoleUser, toolResult.Role)
	require.Len(t, toolResult.Content, 1)
	assert.Equal(t, "tool_result", toolResult.Content[0].Type)
	assert.Equal(t, "call_1", toolResult.Content[0].ToolUseId)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_weather", req.Tools[0].Name)
}

func TestConvertRequestImages(t *testing.T) {
	a := &Adaptor{}
	caption := "describe"
	out, err := a.ConvertRequest(testMeta(), &relaymodel.GeneralRequest{
		Messages: []relaymodel.Message{{
			Role: relaymodel.RoleUser,
			Content: []relaymodel.MessageContent{
				{Type: relaymodel.ContentTypeText, Text: &caption},
				{Type: relaymodel.ContentTypeImageURL, ImageURL: &relaymodel.ImageURL{
					URL: "data:image/png;base64,iVBORw0KGgo=",
				}},
				{Type: relaymodel.ContentTypeImageURL, ImageURL: &relaymodel.ImageURL{
					URL: "https://img.example/cat.png",
				}},
			},
		}},
	})
	require.NoError(t, err)
	blocks := out.(*Request).Messages[0].Content
	require.Len(t, blocks, 3)
	assert.Equal(t, "base64", blocks[1].Source.Type)
	assert.Equal(t, "image/png", blocks[1].Source.MediaType)
	assert.Equal(t, "iVBORw0KGgo=", blocks[1].Source.Data)
	assert.Equal(t, "url", blocks[2].Source.Type)
	assert.Equal(t, "https://img.example/cat.png", blocks[2].Source.URL)
}

func TestParseResponse(t *testing.T) {
	a := &Adaptor{}
	body := []byte(`{
		"id": "msg_1",
		"type": "message",
		"content": [
			{"type": "thinking", "thinking": "let me think"},
			{"type": "text", "text": "the answer is 4"},
			{"type": "tool_use", "id": "toolu_1", "name": "calc", "input": {"expr": "2+2"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 20, "output_tokens": 10, "reasoning_output_tokens": 5}
	}`)

	resp, err := a.ParseResponse(testMeta(), nil, body)
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.Id)
	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]
	assert.Equal(t, "the answer is 4", choice.Message.Content)
	require.NotNil(t, choice.Message.ReasoningContent)
	assert.Equal(t, "let me think", *choice.Message.ReasoningContent)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "calc", choice.Message.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"expr": "2+2"}`, choice.Message.ToolCalls[0].Function.Arguments)
	assert.Equal(t, relaymodel.FinishReasonToolCalls, choice.FinishReason)
	assert.Equal(t, 20, resp.Usage.PromptTokens)
	assert.Equal(t, 10, resp.Usage.CompletionTokens)
	assert.Equal(t, 5, resp.Usage.ReasoningTokens)
}

func TestParseResponseError(t *testing.T) {
	a := &Adaptor{}
	_, err := a.ParseResponse(testMeta(), nil, []byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "overloaded"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestMapStopReason(t *testing.T) {
	assert.Equal(t, relaymodel.FinishReasonStop, mapStopReason("end_turn"))
	assert.Equal(t, relaymodel.FinishReasonStop, mapStopReason("stop_sequence"))
	assert.Equal(t, relaymodel.FinishReasonLength, mapStopReason("max_tokens"))
	assert.Equal(t, relaymodel.FinishReasonToolCalls, mapStopReason("tool_use"))
	assert.Equal(t, "", mapStopReason(""))
	assert.Equal(t, relaymodel.FinishReasonUnknown, mapStopReason("surprise"))
}

func feed(t *testing.T, tr *streamTransformer, data string) []*relaymodel.StreamResponse {
	t.Helper()
	frames, err := tr.Transform(streaming.Event{Data: data})
	require.NoError(t, err)
	return frames
}

func TestStreamTransformer(t *testing.T) {
	a := &Adaptor{}
	tr := a.NewStreamTransformer(testMeta(), nil).(*streamTransformer)

	frames := feed(t, tr, `{"type": "message_start", "message": {"id": "msg_1", "usage": {"input_tokens": 25, "output_tokens": 0}}}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "msg_1", frames[0].Id)
	assert.Equal(t, relaymodel.RoleAssistant, frames[0].Choices[0].Delta.Role)

	frames = feed(t, tr, `{"type": "content_block_start", "index": 0, "content_block": {"type": "text", "text": ""}}`)
	assert.Empty(t, frames)

	frames = feed(t, tr, `{"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "Hello"}}`)
	require.Len(t, frames, 1)
	assert.Equal(t, "Hello", frames[0].Choices[0].Delta.Content)

	frames = feed(t, tr, `{"type": "content_block_delta", "index": 0, "delta": {"type": "thinking_delta", "thinking": "hmm"}}`)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Choices[0].Delta.ReasoningContent)

	frames = feed(t, tr, `{"type": "message_delta", "delta": {"stop_reason": "end_turn"}, "usage": {"output_tokens": 12}}`)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Choices[0].FinishReason)
	assert.Equal(t, relaymodel.FinishReasonStop, *frames[0].Choices[0].FinishReason)
	require.NotNil(t, frames[0].Usage)
	assert.Equal(t, 25, frames[0].Usage.PromptTokens)
	assert.Equal(t, 12, frames[0].Usage.CompletionTokens)

	frames = feed(t, tr, `{"type": "message_stop"}`)
	assert.Empty(t, frames)

	content, reasoning := tr.Content()
	assert.Equal(t, "Hello", content)
	assert.Equal(t, "hmm", reasoning)
	assert.Equal(t, relaymodel.FinishReasonStop, tr.FinishReason())
	require.NotNil(t, tr.Usage())
	assert.Equal(t, 25, tr.Usage().PromptTokens)
	assert.Equal(t, 12, tr.Usage().CompletionTokens)
	assert.Equal(t, 37, tr.Usage().TotalTokens)
}

func TestStreamTransformerEmitsOneUsageFrame(t *testing.T) {
	a := &Adaptor{}
	tr := a.NewStreamTransformer(testMeta(), nil).(*streamTransformer)

	var all []*relaymodel.StreamResponse
	for _, data := range []string{
		`{"type": "message_start", "message": {"id": "msg_1", "usage": {"input_tokens": 10, "output_tokens": 1}}}`,
		`{"type": "content_block_start", "index": 0, "content_block": {"type": "text", "text": ""}}`,
		`{"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "hi"}}`,
		`{"type": "message_delta", "delta": {"stop_reason": "end_turn"}, "usage": {"output_tokens": 4}}`,
		`{"type": "message_stop"}`,
	} {
		all = append(all, feed(t, tr, data)...)
	}

	withUsage := 0
	for _, frame := range all {
		if frame.Usage != nil {
			withUsage++
			assert.Equal(t, 10, frame.Usage.PromptTokens)
			assert.Equal(t, 4, frame.Usage.CompletionTokens)
			require.NotNil(t, frame.Choices[0].FinishReason)
		}
	}
	assert.Equal(t, 1, withUsage)
}

func TestStreamTransformerUsageOnMessageStopFallback(t *testing.T) {
	a := &Adaptor{}
	tr := a.NewStreamTransformer(testMeta(), nil).(*streamTransformer)

	feed(t, tr, `{"type": "message_start", "message": {"id": "msg_1", "usage": {"input_tokens": 7, "output_tokens": 3}}}`)
	feed(t, tr, `{"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "ok"}}`)

	// No stop_reason ever arrives; message_stop closes the stream and still
	// carries the usage captured so far.
	frames := feed(t, tr, `{"type": "message_stop"}`)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Usage)
	assert.Equal(t, 7, frames[0].Usage.PromptTokens)
	require.NotNil(t, frames[0].Choices[0].FinishReason)
	assert.Equal(t, relaymodel.FinishReasonStop, *frames[0].Choices[0].FinishReason)
}

func TestStreamTransformerToolUse(t *testing.T) {
	a := &Adaptor{}
	tr := a.NewStreamTransformer(testMeta(), nil).(*streamTransformer)

	feed(t, tr, `{"type": "message_start", "message": {"id": "msg_1", "usage": {"input_tokens": 5, "output_tokens": 0}}}`)

	frames := feed(t, tr, `{"type": "content_block_start", "index": 1, "content_block": {"type": "tool_use", "id": "toolu_1", "name": "calc"}}`)
	require.Len(t, frames, 1)
	calls := frames[0].Choices[0].Delta.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].Id)
	assert.Equal(t, "calc", calls[0].Function.Name)
	require.NotNil(t, calls[0].Index)
	assert.Equal(t, 0, *calls[0].Index)

	feed(t, tr, `{"type": "content_block_delta", "index": 1, "delta": {"type": "input_json_delta", "partial_json": "{\"expr\":"}}`)
	frames = feed(t, tr, `{"type": "content_block_delta", "index": 1, "delta": {"type": "input_json_delta", "partial_json": "\"2+2\"}"}}`)
	require.Len(t, frames, 1)

	// Arguments accumulate on the matching block index.
	assert.Equal(t, `{"expr":"2+2"}`, tr.toolBlocks[1].Function.Arguments)

	// Deltas for unknown indices are dropped.
	frames = feed(t, tr, `{"type": "content_block_delta", "index": 9, "delta": {"type": "input_json_delta", "partial_json": "x"}}`)
	assert.Empty(t, frames)
}

func TestStreamTransformerErrorEvent(t *testing.T) {
	a := &Adaptor{}
	tr := a.NewStreamTransformer(testMeta(), nil)
	_, err := tr.Transform(streaming.Event{Name: "error", Data: `{"type": "error", "error": {"message": "boom"}}`})
	require.Error(t, err)
}

package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/streaming"
)

// streamTransformer folds Messages stream events into canonical chunks.
// Tool-call argument deltas are matched to their opening content_block_start
// by content-block index.
type streamTransformer struct {
	meta       *meta.Meta
	id         string
	content    strings.Builder
	reasoning  strings.Builder
	toolBlocks map[int]*relaymodel.Tool
	toolIndex  int
	usage      *relaymodel.Usage
	finish     string
}

func (t *streamTransformer) Transform(ev streaming.Event) ([]*relaymodel.StreamResponse, error) {
	if ev.Data == streaming.DoneData {
		return nil, nil
	}
	var event StreamEvent
	if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
		return nil, errors.Wrap(err, "unmarshal anthropic stream event")
	}

	switch event.Type {
	case "message_start":
		if event.Message != nil {
			t.id = event.Message.Id
			if u := event.Message.Usage.canonical(); u != nil {
				t.usage = u
			}
		}
		return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{Role: relaymodel.RoleAssistant}, nil)}, nil

	case "content_block_start":
		if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
			idx := t.toolIndex
			t.toolIndex++
			call := &relaymodel.Tool{
				Id:   event.ContentBlock.Id,
				Type: "function",
				Function: &relaymodel.Function{
					Name: event.ContentBlock.Name,
				},
				Index: &idx,
			}
			t.toolBlocks[event.Index] = call
			return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
				Role:      relaymodel.RoleAssistant,
				ToolCalls: []relaymodel.Tool{*call},
			}, nil)}, nil
		}
		return nil, nil

	case "content_block_delta":
		if event.Delta == nil {
			return nil, nil
		}
		switch event.Delta.Type {
		case "text_delta":
			t.content.WriteString(event.Delta.Text)
			return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
				Role: relaymodel.RoleAssistant, Content: event.Delta.Text,
			}, nil)}, nil
		case "thinking_delta":
			t.reasoning.WriteString(event.Delta.Thinking)
			thinking := event.Delta.Thinking
			return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
				Role: relaymodel.RoleAssistant, ReasoningContent: &thinking,
			}, nil)}, nil
		case "input_json_delta":
			call, ok := t.toolBlocks[event.Index]
			if !ok {
				return nil, nil
			}
			call.Function.Arguments += event.Delta.PartialJSON
			return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
				Role: relaymodel.RoleAssistant,
				ToolCalls: []relaymodel.Tool{{
					Index:    call.Index,
					Type:     "function",
					Function: &relaymodel.Function{Arguments: event.Delta.PartialJSON},
				}},
			}, nil)}, nil
		}
		return nil, nil

	case "message_delta":
		var frames []*relaymodel.StreamResponse
		if event.Usage != nil {
			u := t.mergeUsage(event.Usage)
			t.usage = u
		}
		if event.Delta != nil && event.Delta.StopReason != "" {
			t.finish = mapStopReason(event.Delta.StopReason)
			finish := t.finish
			// The terminal frame carries the merged usage so callers see it
			// before [DONE].
			frame := t.frame(relaymodel.Delta{}, &finish)
			frame.Usage = t.usage
			frames = append(frames, frame)
		}
		return frames, nil

	case "message_stop":
		if t.finish == "" {
			t.finish = relaymodel.FinishReasonStop
			finish := t.finish
			frame := t.frame(relaymodel.Delta{}, &finish)
			frame.Usage = t.usage
			return []*relaymodel.StreamResponse{frame}, nil
		}
		return nil, nil

	case "error":
		return nil, errors.Errorf("upstream stream error event: %s", ev.Data)
	}
	return nil, nil
}

// mergeUsage combines the message_start input count with the message_delta
// output count; either may arrive alone.
func (t *streamTransformer) mergeUsage(u *Usage) *relaymodel.Usage {
	merged := u.canonical()
	if t.usage != nil {
		if merged.PromptTokens == 0 {
			merged.PromptTokens = t.usage.PromptTokens
		}
		if merged.PromptTokensDetails == nil {
			merged.PromptTokensDetails = t.usage.PromptTokensDetails
		}
	}
	merged.TotalTokens = merged.PromptTokens + merged.CompletionTokens + merged.ReasoningTokens
	return merged
}

func (t *streamTransformer) frame(delta relaymodel.Delta, finish *string) *relaymodel.StreamResponse {
	return &relaymodel.StreamResponse{
		Id:      t.id,
		Object:  relaymodel.ObjectChatCompletionChunk,
		Model:   t.meta.UpstreamModel,
		Choices: []relaymodel.ChunkChoice{{Delta: delta, FinishReason: finish}},
	}
}

func (t *streamTransformer) Usage() *relaymodel.Usage { return t.usage }

func (t *streamTransformer) Content() (string, string) {
	return t.content.String(), t.reasoning.String()
}

func (t *streamTransformer) FinishReason() string { return t.finish }

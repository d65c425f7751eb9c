package openai

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/streaming"
)

// chatStreamTransformer rewrites OpenAI-compatible chunks into canonical
// frames: object and delta.role are forced, and the reasoning field is
// renamed to reasoning_content.
type chatStreamTransformer struct {
	meta      *meta.Meta
	content   strings.Builder
	reasoning strings.Builder
	usage     *relaymodel.Usage
	finish    string
}

func (t *chatStreamTransformer) Transform(ev streaming.Event) ([]*relaymodel.StreamResponse, error) {
	if ev.Data == streaming.DoneData {
		return nil, nil
	}
	var chunk chatChunk
	if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
		return nil, errors.Wrap(err, "unmarshal stream chunk")
	}

	out := &relaymodel.StreamResponse{
		Id:      chunk.Id,
		Object:  relaymodel.ObjectChatCompletionChunk,
		Created: chunk.Created,
		Model:   t.meta.UpstreamModel,
	}
	for _, ch := range chunk.Choices {
		delta := relaymodel.Delta{
			Content:          ch.Delta.Content,
			ReasoningContent: ch.Delta.reasoning(),
			ToolCalls:        ch.Delta.ToolCalls,
			Images:           ch.Delta.Images,
		}
		if delta.Content != "" || delta.ReasoningContent != nil ||
			len(delta.ToolCalls) > 0 || len(delta.Images) > 0 || ch.Delta.Role != "" {
			delta.Role = relaymodel.RoleAssistant
		}
		t.content.WriteString(delta.Content)
		if delta.ReasoningContent != nil {
			t.reasoning.WriteString(*delta.ReasoningContent)
		}
		if ch.FinishReason != nil && *ch.FinishReason != "" {
			t.finish = *ch.FinishReason
		}
		out.Choices = append(out.Choices, relaymodel.ChunkChoice{
			Index:        ch.Index,
			Delta:        delta,
			FinishReason: ch.FinishReason,
		})
	}
	if u := chunk.Usage.canonical(); u != nil {
		t.usage = u
		out.Usage = u
	}
	if len(out.Choices) == 0 && out.Usage == nil {
		return nil, nil
	}
	return []*relaymodel.StreamResponse{out}, nil
}

func (t *chatStreamTransformer) Usage() *relaymodel.Usage { return t.usage }

func (t *chatStreamTransformer) Content() (string, string) {
	return t.content.String(), t.reasoning.String()
}

func (t *chatStreamTransformer) FinishReason() string { return t.finish }

package gemini

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/streaming"
	"github.com/llmgateway/llmgateway/relay/tokenizer"
)

// streamTransformer folds streamGenerateContent chunks into canonical frames.
// Gemini repeats usageMetadata on every chunk; the last observed value wins.
type streamTransformer struct {
	meta      *meta.Meta
	request   *relaymodel.GeneralRequest
	content   strings.Builder
	reasoning strings.Builder
	toolIndex int
	lastMeta  *UsageMetadata
	usage     *relaymodel.Usage
	finish    string
}

func (t *streamTransformer) Transform(ev streaming.Event) ([]*relaymodel.StreamResponse, error) {
	if ev.Data == streaming.DoneData {
		return nil, nil
	}
	var chunk Response
	if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
		return nil, errors.Wrap(err, "unmarshal gemini stream chunk")
	}
	if chunk.Error != nil {
		return nil, errors.Errorf("upstream stream error: %s", chunk.Error.Message)
	}
	if chunk.UsageMetadata != nil {
		t.lastMeta = chunk.UsageMetadata
	}
	if len(chunk.Candidates) == 0 {
		return nil, nil
	}
	candidate := chunk.Candidates[0]

	var frames []*relaymodel.StreamResponse
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			arguments, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				arguments = []byte("{}")
			}
			idx := t.toolIndex
			t.toolIndex++
			frames = append(frames, t.frame(relaymodel.Delta{
				Role: relaymodel.RoleAssistant,
				ToolCalls: []relaymodel.Tool{{
					Id:    generateToolCallId(),
					Type:  "function",
					Index: &idx,
					Function: &relaymodel.Function{
						Name:      part.FunctionCall.Name,
						Arguments: string(arguments),
					},
				}},
			}, nil))
		case part.InlineData != nil:
			frames = append(frames, t.frame(relaymodel.Delta{
				Role:   relaymodel.RoleAssistant,
				Images: []string{encodeInlineData(part.InlineData)},
			}, nil))
		case part.Thought:
			t.reasoning.WriteString(part.Text)
			thinking := part.Text
			frames = append(frames, t.frame(relaymodel.Delta{
				Role: relaymodel.RoleAssistant, ReasoningContent: &thinking,
			}, nil))
		case part.Text != "":
			t.content.WriteString(part.Text)
			frames = append(frames, t.frame(relaymodel.Delta{
				Role: relaymodel.RoleAssistant, Content: part.Text,
			}, nil))
		}
	}

	if candidate.FinishReason != "" {
		t.finish = mapFinishReason(candidate.FinishReason)
		if t.toolIndex > 0 {
			t.finish = relaymodel.FinishReasonToolCalls
		}
		t.usage = t.synthesize()
		finish := t.finish
		terminal := t.frame(relaymodel.Delta{}, &finish)
		terminal.Usage = t.usage
		frames = append(frames, terminal)
	}
	return frames, nil
}

// synthesize builds usage from the accumulated metadata, substituting a local
// prompt estimate when upstream reported zero.
func (t *streamTransformer) synthesize() *relaymodel.Usage {
	usage := synthesizeUsage(t.lastMeta, t.content.String())
	if usage.PromptTokens == 0 && t.request != nil {
		usage.PromptTokens = tokenizer.Default().CountMessages(t.request.Messages, t.request.Tools)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens + usage.ReasoningTokens
	}
	return usage
}

func (t *streamTransformer) frame(delta relaymodel.Delta, finish *string) *relaymodel.StreamResponse {
	return &relaymodel.StreamResponse{
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

package openai

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/relay/adaptor"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/provider"
)

// Adaptor serves OpenAI and every OpenAI-compatible provider. The Responses
// API variant is selected per request by the router.
type Adaptor struct{}

var _ adaptor.Adaptor = (*Adaptor)(nil)

func (a *Adaptor) ConvertRequest(m *meta.Meta, request *relaymodel.GeneralRequest) (any, error) {
	if request == nil {
		return nil, errors.New("request is nil")
	}
	if m.UseResponsesAPI {
		return convertResponsesRequest(m, request), nil
	}
	out := *request
	out.Model = m.UpstreamModel
	out.Stream = m.IsStream
	out.Messages = flattenMessages(request.Messages)
	return &out, nil
}

// flattenMessages collapses content arrays with only text blocks back to plain
// strings. Providers accept both, but flat strings avoid tripping the stricter
// OpenAI-compatible validators.
func flattenMessages(messages []relaymodel.Message) []relaymodel.Message {
	out := make([]relaymodel.Message, len(messages))
	for i, msg := range messages {
		out[i] = msg
		if _, isString := msg.Content.(string); !isString && !msg.HasNonTextContent() {
			out[i].Content = msg.StringContent()
		}
	}
	return out
}

func (a *Adaptor) ParseResponse(m *meta.Meta, request *relaymodel.GeneralRequest, body []byte) (*relaymodel.TextResponse, error) {
	if m.UseResponsesAPI {
		return parseResponsesResponse(m, body)
	}

	var upstream chatResponse
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, errors.Wrap(err, "unmarshal chat completion response")
	}
	if upstream.Error != nil && upstream.Error.Message != "" {
		return nil, errors.Errorf("upstream error: %s", upstream.Error.Message)
	}
	if len(upstream.Choices) == 0 {
		return nil, errors.New("upstream response has no choices")
	}

	resp := &relaymodel.TextResponse{
		Id:      upstream.Id,
		Object:  relaymodel.ObjectChatCompletion,
		Created: upstream.Created,
		Model:   m.UpstreamModel,
		Choices: make([]relaymodel.Choice, 0, len(upstream.Choices)),
	}
	for _, ch := range upstream.Choices {
		content := ch.Message.Content
		if m.Mapping != nil && m.Mapping.ProviderID == provider.IDMistral {
			content = stripJSONFence(content)
		}
		resp.Choices = append(resp.Choices, relaymodel.Choice{
			Index: ch.Index,
			Message: relaymodel.ResponseMessage{
				Role:             relaymodel.RoleAssistant,
				Content:          content,
				ReasoningContent: ch.Message.reasoning(),
				ToolCalls:        ch.Message.ToolCalls,
				Images:           ch.Message.Images,
			},
			FinishReason: ch.FinishReason,
		})
	}
	if u := upstream.Usage.canonical(); u != nil {
		resp.Usage = *u
	}

	if m.Mapping != nil && m.Mapping.QuirkToolCallFixup {
		applyToolCallFixup(request, resp)
	}
	return resp, nil
}

func (a *Adaptor) NewStreamTransformer(m *meta.Meta, request *relaymodel.GeneralRequest) adaptor.StreamTransformer {
	if m.UseResponsesAPI {
		return newResponsesStreamTransformer(m)
	}
	return &chatStreamTransformer{meta: m}
}

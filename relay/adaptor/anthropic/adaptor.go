package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/relay/adaptor"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

type Adaptor struct{}

var _ adaptor.Adaptor = (*Adaptor)(nil)

// ConvertRequest rewrites the canonical request into the Messages API shape:
// system turns move to the top-level system field, tool results become
// tool_result blocks on user turns, and assistant tool calls become tool_use
// blocks.
func (a *Adaptor) ConvertRequest(m *meta.Meta, request *relaymodel.GeneralRequest) (any, error) {
	if request == nil {
		return nil, errors.New("request is nil")
	}
	out := &Request{
		Model:       m.UpstreamModel,
		MaxTokens:   request.EffectiveMaxTokens(config.DefaultMaxTokens),
		Temperature: request.Temperature,
		TopP:        request.TopP,
		Stream:      m.IsStream,
	}

	var system []string
	for _, msg := range request.Messages {
		switch msg.Role {
		case relaymodel.RoleSystem:
			system = append(system, msg.StringContent())

		case relaymodel.RoleTool:
			out.Messages = append(out.Messages, Message{
				Role: relaymodel.RoleUser,
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseId: msg.ToolCallID,
					Content:   msg.StringContent(),
				}},
			})

		case relaymodel.RoleAssistant:
			blocks := contentBlocks(msg)
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, ContentBlock{
					Type:  "tool_use",
					Id:    call.Id,
					Name:  call.Function.Name,
					Input: parseArguments(call.Function.Arguments),
				})
			}
			out.Messages = append(out.Messages, Message{Role: relaymodel.RoleAssistant, Content: blocks})

		default:
			out.Messages = append(out.Messages, Message{Role: msg.Role, Content: contentBlocks(msg)})
		}
	}
	out.System = strings.Join(system, "\n")

	for _, tool := range request.Tools {
		out.Tools = append(out.Tools, Tool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: tool.Function.Parameters,
		})
	}
	return out, nil
}

// contentBlocks maps canonical content to Anthropic blocks, converting
// image_url entries (data URLs or plain URLs) to image sources.
func contentBlocks(msg relaymodel.Message) []ContentBlock {
	var blocks []ContentBlock
	for _, part := range msg.ParseContent() {
		switch part.Type {
		case relaymodel.ContentTypeText:
			if part.Text != nil && *part.Text != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: *part.Text})
			}
		case relaymodel.ContentTypeImageURL:
			if part.ImageURL == nil {
				continue
			}
			blocks = append(blocks, ContentBlock{Type: "image", Source: imageSource(part.ImageURL.URL)})
		}
	}
	return blocks
}

func imageSource(url string) *ImageSource {
	if data, ok := strings.CutPrefix(url, "data:"); ok {
		if mediaType, payload, found := strings.Cut(data, ";base64,"); found {
			return &ImageSource{Type: "base64", MediaType: mediaType, Data: payload}
		}
	}
	return &ImageSource{Type: "url", URL: url}
}

// parseArguments turns the stringified tool arguments back into an object for
// the tool_use input field.
func parseArguments(arguments string) any {
	var input any
	if err := json.Unmarshal([]byte(arguments), &input); err != nil || input == nil {
		return map[string]any{}
	}
	return input
}

func (a *Adaptor) ParseResponse(m *meta.Meta, request *relaymodel.GeneralRequest, body []byte) (*relaymodel.TextResponse, error) {
	var upstream Response
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, errors.Wrap(err, "unmarshal anthropic response")
	}
	if upstream.Error != nil {
		return nil, errors.Errorf("upstream error: %s", upstream.Error.Message)
	}

	msg := relaymodel.ResponseMessage{Role: relaymodel.RoleAssistant}
	for _, block := range upstream.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "thinking":
			if msg.ReasoningContent == nil {
				msg.ReasoningContent = new(string)
			}
			*msg.ReasoningContent += block.Thinking
		case "tool_use":
			arguments, err := json.Marshal(block.Input)
			if err != nil {
				arguments = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, relaymodel.Tool{
				Id:   block.Id,
				Type: "function",
				Function: &relaymodel.Function{
					Name:      block.Name,
					Arguments: string(arguments),
				},
			})
		}
	}

	resp := &relaymodel.TextResponse{
		Id:      upstream.Id,
		Object:  relaymodel.ObjectChatCompletion,
		Model:   m.UpstreamModel,
		Choices: []relaymodel.Choice{{Message: msg, FinishReason: mapStopReason(upstream.StopReason)}},
	}
	if u := upstream.Usage.canonical(); u != nil {
		resp.Usage = *u
	}
	return resp, nil
}

func (a *Adaptor) NewStreamTransformer(m *meta.Meta, request *relaymodel.GeneralRequest) adaptor.StreamTransformer {
	return &streamTransformer{meta: m, toolBlocks: map[int]*relaymodel.Tool{}}
}

package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/common/random"
	"github.com/llmgateway/llmgateway/relay/adaptor"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/tokenizer"
)

type Adaptor struct{}

var _ adaptor.Adaptor = (*Adaptor)(nil)

// ConvertRequest reshapes canonical messages into contents/parts. System turns
// become the systemInstruction, assistant maps to the model role, and tool
// results become functionResponse parts.
func (a *Adaptor) ConvertRequest(m *meta.Meta, request *relaymodel.GeneralRequest) (any, error) {
	if request == nil {
		return nil, errors.New("request is nil")
	}
	out := &Request{}

	var system []string
	for _, msg := range request.Messages {
		switch msg.Role {
		case relaymodel.RoleSystem:
			system = append(system, msg.StringContent())

		case relaymodel.RoleTool:
			name := msg.Name
			if name == "" {
				name = msg.ToolCallID
			}
			out.Contents = append(out.Contents, Content{
				Role: "user",
				Parts: []Part{{FunctionResponse: &FunctionResponse{
					Name:     name,
					Response: map[string]any{"content": msg.StringContent()},
				}}},
			})

		case relaymodel.RoleAssistant:
			parts := contentParts(msg)
			for _, call := range msg.ToolCalls {
				var args any
				if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				parts = append(parts, Part{FunctionCall: &FunctionCall{
					Name: call.Function.Name,
					Args: args,
				}})
			}
			out.Contents = append(out.Contents, Content{Role: "model", Parts: parts})

		default:
			out.Contents = append(out.Contents, Content{Role: "user", Parts: contentParts(msg)})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &Content{Parts: []Part{{Text: strings.Join(system, "\n")}}}
	}

	if len(request.Tools) > 0 {
		decls := ToolDecls{}
		for _, tool := range request.Tools {
			decls.FunctionDeclarations = append(decls.FunctionDeclarations, FunctionDeclaration{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			})
		}
		out.Tools = []ToolDecls{decls}
	}

	cfg := &GenerationConfig{
		Temperature:     request.Temperature,
		TopP:            request.TopP,
		MaxOutputTokens: request.MaxTokens,
	}
	if request.ResponseFormat != nil && request.ResponseFormat.Type == relaymodel.ResponseFormatJSONObject {
		cfg.ResponseMimeType = "application/json"
	}
	out.GenerationConfig = cfg
	return out, nil
}

func contentParts(msg relaymodel.Message) []Part {
	var parts []Part
	for _, block := range msg.ParseContent() {
		switch block.Type {
		case relaymodel.ContentTypeText:
			if block.Text != nil && *block.Text != "" {
				parts = append(parts, Part{Text: *block.Text})
			}
		case relaymodel.ContentTypeImageURL:
			if block.ImageURL == nil {
				continue
			}
			if data, ok := strings.CutPrefix(block.ImageURL.URL, "data:"); ok {
				if mimeType, payload, found := strings.Cut(data, ";base64,"); found {
					parts = append(parts, Part{InlineData: &Blob{MimeType: mimeType, Data: payload}})
				}
			}
		}
	}
	return parts
}

func (a *Adaptor) ParseResponse(m *meta.Meta, request *relaymodel.GeneralRequest, body []byte) (*relaymodel.TextResponse, error) {
	var upstream Response
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, errors.Wrap(err, "unmarshal gemini response")
	}
	if upstream.Error != nil {
		return nil, errors.Errorf("upstream error: %s", upstream.Error.Message)
	}
	if len(upstream.Candidates) == 0 {
		return nil, errors.New("gemini response has no candidates")
	}

	msg := relaymodel.ResponseMessage{Role: relaymodel.RoleAssistant}
	candidate := upstream.Candidates[0]
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			arguments, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				arguments = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, relaymodel.Tool{
				Id:   generateToolCallId(),
				Type: "function",
				Function: &relaymodel.Function{
					Name:      part.FunctionCall.Name,
					Arguments: string(arguments),
				},
			})
		case part.InlineData != nil:
			msg.Images = append(msg.Images, encodeInlineData(part.InlineData))
		case part.Thought:
			if msg.ReasoningContent == nil {
				msg.ReasoningContent = new(string)
			}
			*msg.ReasoningContent += part.Text
		default:
			msg.Content += part.Text
		}
	}

	finish := mapFinishReason(candidate.FinishReason)
	if len(msg.ToolCalls) > 0 {
		finish = relaymodel.FinishReasonToolCalls
	}
	resp := &relaymodel.TextResponse{
		Object:  relaymodel.ObjectChatCompletion,
		Model:   m.UpstreamModel,
		Choices: []relaymodel.Choice{{Message: msg, FinishReason: finish}},
	}
	resp.Usage = *synthesizeUsage(upstream.UsageMetadata, msg.Content)
	return resp, nil
}

// synthesizeUsage builds canonical usage from usageMetadata. The upstream
// totalTokenCount is ignored and recomputed as prompt + completion + reasoning.
// A missing candidatesTokenCount is estimated from the produced content.
func synthesizeUsage(meta *UsageMetadata, content string) *relaymodel.Usage {
	usage := &relaymodel.Usage{}
	if meta != nil {
		usage.PromptTokens = meta.PromptTokenCount
		usage.CompletionTokens = meta.CandidatesTokenCount
		usage.ReasoningTokens = meta.ThoughtsTokenCount
		if meta.CachedContentTokenCount > 0 {
			usage.PromptTokensDetails = &relaymodel.UsagePromptTokensDetails{
				CachedTokens: meta.CachedContentTokenCount,
			}
		}
	}
	if usage.CompletionTokens == 0 && content != "" {
		usage.CompletionTokens = tokenizer.Default().CountText(content)
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens + usage.ReasoningTokens
	return usage
}

func encodeInlineData(blob *Blob) string {
	return fmt.Sprintf("data:%s;base64,%s", blob.MimeType, blob.Data)
}

func generateToolCallId() string {
	return "call_" + random.GetRandomString(24)
}

func (a *Adaptor) NewStreamTransformer(m *meta.Meta, request *relaymodel.GeneralRequest) adaptor.StreamTransformer {
	return &streamTransformer{meta: m, request: request}
}

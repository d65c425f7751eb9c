package controller

import (
	"encoding/json"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/random"
	"github.com/llmgateway/llmgateway/relay/adaptor/anthropic"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/router"
)

// ClaudeMessages accepts Anthropic's Messages API shape on /v1/messages,
// rewrites it into the canonical ingress body, dispatches through the shared
// pipeline and rewrites the response back. Streaming is not supported on this
// adapter.
func ClaudeMessages(c *gin.Context) {
	m := meta.GetByContext(c)

	var in anthropic.Request
	if err := common.UnmarshalBodyReusable(c, &in); err != nil {
		abortRoute(c, m, nil, &router.Error{
			StatusCode: http.StatusBadRequest,
			Type:       relaymodel.ErrTypeJSONParseError,
			Err:        errors.Wrap(err, "invalid JSON body"),
		})
		return
	}
	if in.Stream {
		abortRoute(c, m, nil, admissionError(
			errors.New("streaming is not supported on /v1/messages")))
		return
	}

	request := canonicalFromClaude(&in)
	if routeErr := validateRequest(request); routeErr != nil {
		abortRoute(c, m, request, routeErr)
		return
	}
	if routeErr := validatePolicy(m, request); routeErr != nil {
		abortRoute(c, m, request, routeErr)
		return
	}
	if routeErr := rt.Resolve(m, request); routeErr != nil {
		abortRoute(c, m, request, routeErr)
		return
	}
	if routeErr := validateSelection(m, request); routeErr != nil {
		abortRoute(c, m, request, routeErr)
		return
	}

	relayOnce(c, m, request, "", respondClaude)
}

// canonicalFromClaude maps the Messages API body onto the canonical request:
// system becomes a leading system turn, tool_result blocks become tool turns
// and tool_use blocks become assistant tool calls.
func canonicalFromClaude(in *anthropic.Request) *relaymodel.GeneralRequest {
	request := &relaymodel.GeneralRequest{
		Model:       in.Model,
		Temperature: in.Temperature,
		TopP:        in.TopP,
	}
	if in.MaxTokens > 0 {
		maxTokens := in.MaxTokens
		request.MaxTokens = &maxTokens
	}
	if in.System != "" {
		request.Messages = append(request.Messages, relaymodel.Message{
			Role: relaymodel.RoleSystem, Content: in.System,
		})
	}

	for _, msg := range in.Messages {
		var text string
		var blocks []relaymodel.MessageContent
		var toolCalls []relaymodel.Tool

		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				text += block.Text
				t := block.Text
				blocks = append(blocks, relaymodel.MessageContent{
					Type: relaymodel.ContentTypeText, Text: &t,
				})
			case "image":
				if block.Source == nil {
					continue
				}
				url := block.Source.URL
				if block.Source.Type == "base64" {
					url = "data:" + block.Source.MediaType + ";base64," + block.Source.Data
				}
				blocks = append(blocks, relaymodel.MessageContent{
					Type:     relaymodel.ContentTypeImageURL,
					ImageURL: &relaymodel.ImageURL{URL: url},
				})
			case "tool_use":
				arguments, err := json.Marshal(block.Input)
				if err != nil {
					arguments = []byte("{}")
				}
				toolCalls = append(toolCalls, relaymodel.Tool{
					Id:   block.Id,
					Type: "function",
					Function: &relaymodel.Function{
						Name:      block.Name,
						Arguments: string(arguments),
					},
				})
			case "tool_result":
				request.Messages = append(request.Messages, relaymodel.Message{
					Role:       relaymodel.RoleTool,
					ToolCallID: block.ToolUseId,
					Content:    stringifyToolResult(block.Content),
				})
			}
		}

		if len(toolCalls) > 0 || text != "" || len(blocks) > 0 {
			out := relaymodel.Message{Role: msg.Role, ToolCalls: toolCalls}
			if hasNonText(blocks) {
				out.Content = blocks
			} else {
				out.Content = text
			}
			if out.Content == "" && len(toolCalls) == 0 {
				continue
			}
			request.Messages = append(request.Messages, out)
		}
	}

	for _, tool := range in.Tools {
		request.Tools = append(request.Tools, relaymodel.Tool{
			Type: "function",
			Function: &relaymodel.Function{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}
	return request
}

func hasNonText(blocks []relaymodel.MessageContent) bool {
	for _, b := range blocks {
		if b.Type != relaymodel.ContentTypeText {
			return true
		}
	}
	return false
}

func stringifyToolResult(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(raw)
}

// respondClaude rewrites the canonical response into the Messages API shape.
func respondClaude(c *gin.Context, resp *relaymodel.TextResponse) {
	out := &anthropic.Response{
		Id:    resp.Id,
		Type:  "message",
		Role:  relaymodel.RoleAssistant,
		Model: resp.Model,
	}
	if out.Id == "" {
		out.Id = "msg_" + random.GetRandomString(24)
	}

	stopReason := "end_turn"
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			out.Content = append(out.Content, anthropic.ContentBlock{
				Type: "text", Text: choice.Message.Content,
			})
		}
		for _, call := range choice.Message.ToolCalls {
			if call.Function == nil {
				continue
			}
			var input any
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				input = map[string]any{}
			}
			out.Content = append(out.Content, anthropic.ContentBlock{
				Type:  "tool_use",
				Id:    call.Id,
				Name:  call.Function.Name,
				Input: input,
			})
		}
		stopReason = claudeStopReason(choice.FinishReason)
	}
	out.StopReason = stopReason
	out.Usage = &anthropic.Usage{
		InputTokens:           resp.Usage.PromptTokens,
		OutputTokens:          resp.Usage.CompletionTokens,
		ReasoningOutputTokens: resp.Usage.ReasoningTokens,
	}

	c.JSON(http.StatusOK, out)
}

func claudeStopReason(finishReason string) string {
	switch finishReason {
	case relaymodel.FinishReasonLength:
		return "max_tokens"
	case relaymodel.FinishReasonToolCalls:
		return "tool_use"
	default:
		return "end_turn"
	}
}

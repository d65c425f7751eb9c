package openai

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/llmgateway/llmgateway/relay/adaptor"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/streaming"
)

// Responses API wire shapes. Only the fields the gateway consumes are modeled.

type responsesRequest struct {
	Model           string               `json:"model"`
	Input           []responsesInputItem `json:"input"`
	MaxOutputTokens *int                 `json:"max_output_tokens,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	TopP            *float64             `json:"top_p,omitempty"`
	Stream          bool                 `json:"stream,omitempty"`
	Reasoning       *responsesReasoning  `json:"reasoning,omitempty"`
	Tools           []responsesTool      `json:"tools,omitempty"`
}

type responsesInputItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesReasoning struct {
	Effort string `json:"effort"`
}

// responsesTool flattens the nested function wrapper of chat completions.
type responsesTool struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type responsesContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesOutputItem struct {
	Type      string                  `json:"type"`
	Content   []responsesContentBlock `json:"content"`
	Summary   []responsesContentBlock `json:"summary"`
	Name      string                  `json:"name"`
	Arguments string                  `json:"arguments"`
	CallId    string                  `json:"call_id"`
}

type responsesUsage struct {
	InputTokens        int `json:"input_tokens"`
	OutputTokens       int `json:"output_tokens"`
	TotalTokens        int `json:"total_tokens"`
	InputTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	OutputTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
}

func (u *responsesUsage) canonical() *relaymodel.Usage {
	if u == nil {
		return nil
	}
	usage := &relaymodel.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.OutputTokensDetails != nil {
		usage.ReasoningTokens = u.OutputTokensDetails.ReasoningTokens
		// Responses counts reasoning inside output; keep the canonical split.
		if usage.CompletionTokens >= usage.ReasoningTokens {
			usage.CompletionTokens -= usage.ReasoningTokens
		}
	}
	if u.InputTokensDetails != nil && u.InputTokensDetails.CachedTokens > 0 {
		usage.PromptTokensDetails = &relaymodel.UsagePromptTokensDetails{
			CachedTokens: u.InputTokensDetails.CachedTokens,
		}
	}
	return usage
}

type responsesResponse struct {
	Id        string                `json:"id"`
	CreatedAt int64                 `json:"created_at"`
	Status    string                `json:"status"`
	Output    []responsesOutputItem `json:"output"`
	Usage     *responsesUsage       `json:"usage"`
	Error     *relaymodel.Error     `json:"error"`
}

func convertResponsesRequest(m *meta.Meta, request *relaymodel.GeneralRequest) *responsesRequest {
	out := &responsesRequest{
		Model:           m.UpstreamModel,
		MaxOutputTokens: request.MaxTokens,
		Temperature:     request.Temperature,
		TopP:            request.TopP,
		Stream:          m.IsStream,
	}
	for _, msg := range request.Messages {
		out.Input = append(out.Input, responsesInputItem{
			Role:    msg.Role,
			Content: msg.StringContent(),
		})
	}
	if request.ReasoningEffort != "" {
		out.Reasoning = &responsesReasoning{Effort: request.ReasoningEffort}
	}
	for _, tool := range request.Tools {
		out.Tools = append(out.Tools, responsesTool{
			Type:        "function",
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}
	return out
}

func parseResponsesResponse(m *meta.Meta, body []byte) (*relaymodel.TextResponse, error) {
	var upstream responsesResponse
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, errors.Wrap(err, "unmarshal responses body")
	}
	if upstream.Error != nil && upstream.Error.Message != "" {
		return nil, errors.Errorf("upstream error: %s", upstream.Error.Message)
	}

	msg := relaymodel.ResponseMessage{Role: relaymodel.RoleAssistant}
	for _, item := range upstream.Output {
		switch item.Type {
		case "message":
			for _, block := range item.Content {
				if block.Type == "output_text" {
					msg.Content += block.Text
				}
			}
		case "reasoning":
			if len(item.Summary) > 0 {
				text := item.Summary[0].Text
				msg.ReasoningContent = &text
			}
		case "function_call":
			msg.ToolCalls = append(msg.ToolCalls, relaymodel.Tool{
				Id:   item.CallId,
				Type: "function",
				Function: &relaymodel.Function{
					Name:      item.Name,
					Arguments: item.Arguments,
				},
			})
		}
	}

	finish := relaymodel.FinishReasonStop
	if len(msg.ToolCalls) > 0 {
		finish = relaymodel.FinishReasonToolCalls
	}
	resp := &relaymodel.TextResponse{
		Id:      upstream.Id,
		Object:  relaymodel.ObjectChatCompletion,
		Created: upstream.CreatedAt,
		Model:   m.UpstreamModel,
		Choices: []relaymodel.Choice{{Message: msg, FinishReason: finish}},
	}
	if u := upstream.Usage.canonical(); u != nil {
		resp.Usage = *u
	}
	return resp, nil
}

// responsesStreamEvent is the envelope shared by every Responses stream event.
type responsesStreamEvent struct {
	Type        string               `json:"type"`
	Delta       string               `json:"delta"`
	OutputIndex int                  `json:"output_index"`
	Item        *responsesOutputItem `json:"item"`
	Response    *responsesResponse   `json:"response"`
}

type responsesStreamTransformer struct {
	meta      *meta.Meta
	content   []byte
	reasoning []byte
	toolCalls map[int]*relaymodel.Tool
	toolOrder []int
	usage     *relaymodel.Usage
	finish    string
	id        string
}

func newResponsesStreamTransformer(m *meta.Meta) adaptor.StreamTransformer {
	return &responsesStreamTransformer{meta: m, toolCalls: map[int]*relaymodel.Tool{}}
}

func (t *responsesStreamTransformer) Transform(ev streaming.Event) ([]*relaymodel.StreamResponse, error) {
	if ev.Data == streaming.DoneData {
		return nil, nil
	}
	var event responsesStreamEvent
	if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
		return nil, errors.Wrap(err, "unmarshal responses stream event")
	}

	switch event.Type {
	case "response.created":
		if event.Response != nil {
			t.id = event.Response.Id
		}
		return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{Role: relaymodel.RoleAssistant}, nil)}, nil

	case "response.output_text.delta":
		t.content = append(t.content, event.Delta...)
		return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
			Role: relaymodel.RoleAssistant, Content: event.Delta,
		}, nil)}, nil

	case "response.reasoning_summary_text.delta":
		t.reasoning = append(t.reasoning, event.Delta...)
		delta := event.Delta
		return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
			Role: relaymodel.RoleAssistant, ReasoningContent: &delta,
		}, nil)}, nil

	case "response.output_item.added":
		if event.Item != nil && event.Item.Type == "function_call" {
			idx := event.OutputIndex
			t.toolCalls[idx] = &relaymodel.Tool{
				Id:   event.Item.CallId,
				Type: "function",
				Function: &relaymodel.Function{
					Name:      event.Item.Name,
					Arguments: event.Item.Arguments,
				},
				Index: &idx,
			}
			t.toolOrder = append(t.toolOrder, idx)
			return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
				Role:      relaymodel.RoleAssistant,
				ToolCalls: []relaymodel.Tool{*t.toolCalls[idx]},
			}, nil)}, nil
		}
		return nil, nil

	case "response.function_call_arguments.delta":
		call, ok := t.toolCalls[event.OutputIndex]
		if !ok {
			return nil, nil
		}
		call.Function.Arguments += event.Delta
		idx := event.OutputIndex
		return []*relaymodel.StreamResponse{t.frame(relaymodel.Delta{
			Role: relaymodel.RoleAssistant,
			ToolCalls: []relaymodel.Tool{{
				Index:    &idx,
				Type:     "function",
				Function: &relaymodel.Function{Arguments: event.Delta},
			}},
		}, nil)}, nil

	case "response.completed", "response.incomplete":
		t.finish = relaymodel.FinishReasonStop
		if len(t.toolOrder) > 0 {
			t.finish = relaymodel.FinishReasonToolCalls
		}
		var usage *relaymodel.Usage
		if event.Response != nil {
			usage = event.Response.Usage.canonical()
		}
		if usage != nil {
			t.usage = usage
		}
		finish := t.finish
		frame := t.frame(relaymodel.Delta{}, &finish)
		frame.Usage = usage
		return []*relaymodel.StreamResponse{frame}, nil

	case "response.failed":
		return nil, errors.New("upstream reported response.failed")
	}
	return nil, nil
}

func (t *responsesStreamTransformer) frame(delta relaymodel.Delta, finish *string) *relaymodel.StreamResponse {
	return &relaymodel.StreamResponse{
		Id:      t.id,
		Object:  relaymodel.ObjectChatCompletionChunk,
		Model:   t.meta.UpstreamModel,
		Choices: []relaymodel.ChunkChoice{{Delta: delta, FinishReason: finish}},
	}
}

func (t *responsesStreamTransformer) Usage() *relaymodel.Usage { return t.usage }

func (t *responsesStreamTransformer) Content() (string, string) {
	return string(t.content), string(t.reasoning)
}

func (t *responsesStreamTransformer) FinishReason() string { return t.finish }

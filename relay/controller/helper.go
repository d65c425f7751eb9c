package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/helper"
	"github.com/llmgateway/llmgateway/model"
	"github.com/llmgateway/llmgateway/relay/adaptor"
	"github.com/llmgateway/llmgateway/relay/adaptor/anthropic"
	"github.com/llmgateway/llmgateway/relay/adaptor/gemini"
	"github.com/llmgateway/llmgateway/relay/adaptor/openai"
	"github.com/llmgateway/llmgateway/relay/cache"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/pricing"
	"github.com/llmgateway/llmgateway/relay/provider"
	"github.com/llmgateway/llmgateway/relay/router"
	"github.com/llmgateway/llmgateway/relay/tokenizer"
)

var (
	registry   = provider.Default()
	rt         = router.New(registry)
	cacheStore = cache.NewStore()

	httpClient = &http.Client{
		Timeout: time.Duration(config.RelayTimeout) * time.Second,
	}

	openaiAdaptor    = &openai.Adaptor{}
	anthropicAdaptor = &anthropic.Adaptor{}
	geminiAdaptor    = &gemini.Adaptor{}
)

// dialectFor selects the adaptor for the routed provider. Everything that is
// not Anthropic or Google speaks an OpenAI-compatible dialect.
func dialectFor(m *meta.Meta) adaptor.Adaptor {
	if m.Provider == nil {
		return openaiAdaptor
	}
	switch m.Provider.ID {
	case provider.IDAnthropic:
		return anthropicAdaptor
	case provider.IDGoogleAIStudio, provider.IDVertex:
		return geminiAdaptor
	default:
		return openaiAdaptor
	}
}

// finalizeUsage enforces the canonical usage contract: missing counts are
// filled from the local tokenizer, prompt_tokens is floored at 1 and the
// total is recomputed as prompt + completion + reasoning. Returns whether any
// count was estimated locally.
func finalizeUsage(usage *relaymodel.Usage, request *relaymodel.GeneralRequest, content string) bool {
	estimated := false
	if usage.PromptTokens == 0 && request != nil {
		usage.PromptTokens = tokenizer.Default().CountMessages(request.Messages, request.Tools)
		estimated = true
	}
	if usage.CompletionTokens == 0 && content != "" {
		usage.CompletionTokens = tokenizer.Default().CountText(content)
		estimated = true
	}
	if usage.PromptTokens < 1 {
		usage.PromptTokens = 1
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens + usage.ReasoningTokens
	return estimated
}

// applyReasoningVisibility drops reasoning content from responses for
// mappings configured to omit it. The tokens remain billed.
func applyReasoningVisibility(m *meta.Meta, resp *relaymodel.TextResponse) {
	if m.Mapping == nil || m.Mapping.ReasoningOutput != provider.ReasoningOmit {
		return
	}
	for i := range resp.Choices {
		resp.Choices[i].Message.ReasoningContent = nil
	}
}

// unifiedFinishReason maps any upstream finish reason onto the stable set.
func unifiedFinishReason(reason string) string {
	switch reason {
	case relaymodel.FinishReasonStop, relaymodel.FinishReasonLength,
		relaymodel.FinishReasonToolCalls, relaymodel.FinishReasonContentFilter,
		relaymodel.FinishReasonCanceled, relaymodel.FinishReasonUpstreamError,
		relaymodel.FinishReasonClientError, relaymodel.FinishReasonGatewayError:
		return reason
	case "":
		return relaymodel.FinishReasonUnknown
	default:
		return relaymodel.FinishReasonUnknown
	}
}

// logParams collects everything one terminated request contributes to its log
// record.
type logParams struct {
	meta         *meta.Meta
	request      *relaymodel.GeneralRequest
	usage        *relaymodel.Usage
	breakdown    pricing.Breakdown
	content      string
	reasoning    string
	toolResults  []relaymodel.Tool
	finishReason string
	streamed     bool
	canceled     bool
	cached       bool
	err          error
	responseSize int
	rawRequest   []byte
	rawResponse  []byte
}

// emitLog composes the log record and hands it to the worker queue. Exactly
// one record is emitted per terminated request.
func emitLog(p logParams) {
	m := p.meta
	entry := &model.Log{
		RequestId:         m.RequestId,
		UsedMode:          m.KeyMode,
		RequestedModel:    m.RequestedModel,
		RequestedProvider: m.RequestedProvider,
		Duration:          time.Since(m.StartTime).Milliseconds(),
		CreatedAt:         helper.GetTimestamp(),
		ResponseSize:      p.responseSize,
		Streamed:          p.streamed,
		Canceled:          p.canceled,
		Cached:            p.cached,
		Source:            m.Source,
	}
	if m.Organization != nil {
		entry.OrganizationId = m.Organization.Id
	}
	if m.Project != nil {
		entry.ProjectId = m.Project.Id
	}
	if m.ApiKey != nil {
		entry.ApiKeyId = m.ApiKey.Id
	}
	if m.Model != nil {
		entry.UsedModel = m.Model.ID
	} else if m.UpstreamModel != "" {
		entry.UsedModel = m.UpstreamModel
	}
	if m.Provider != nil {
		entry.UsedProvider = m.Provider.ID
	}

	entry.FinishReason = p.finishReason
	entry.UnifiedFinishReason = unifiedFinishReason(p.finishReason)
	if p.canceled {
		entry.FinishReason = relaymodel.FinishReasonCanceled
		entry.UnifiedFinishReason = relaymodel.FinishReasonCanceled
	}

	if p.usage != nil {
		entry.PromptTokens = p.usage.PromptTokens
		entry.CompletionTokens = p.usage.CompletionTokens
		entry.TotalTokens = p.usage.TotalTokens
		entry.ReasoningTokens = p.usage.ReasoningTokens
		entry.CachedTokens = p.usage.CachedTokens()
	}

	entry.Cost = p.breakdown.Total
	entry.InputCost = p.breakdown.Input
	entry.OutputCost = p.breakdown.Output
	entry.CachedInputCost = p.breakdown.CachedInput
	entry.RequestCost = p.breakdown.Request
	entry.EstimatedCost = p.breakdown.Estimated

	if p.err != nil {
		entry.HasError = true
		details := p.err.Error()
		entry.ErrorDetails = &details
		if entry.UnifiedFinishReason == relaymodel.FinishReasonUnknown {
			entry.UnifiedFinishReason = relaymodel.FinishReasonGatewayError
		}
	}

	if p.content != "" {
		entry.Content = &p.content
	}
	if p.reasoning != "" {
		entry.ReasoningContent = &p.reasoning
	}
	if p.request != nil {
		if raw, err := json.Marshal(p.request.Messages); err == nil {
			messages := string(raw)
			entry.Messages = &messages
		}
	}
	if len(p.toolResults) > 0 {
		if raw, err := json.Marshal(p.toolResults); err == nil {
			tools := string(raw)
			entry.ToolResults = &tools
		}
	}
	if len(m.CustomHeaders) > 0 {
		if raw, err := json.Marshal(m.CustomHeaders); err == nil {
			headers := string(raw)
			entry.CustomHeaders = &headers
		}
	}
	if m.Debug {
		if len(p.rawRequest) > 0 {
			raw := string(p.rawRequest)
			entry.RawRequest = &raw
		}
		if len(p.rawResponse) > 0 {
			raw := string(p.rawResponse)
			entry.RawResponse = &raw
		}
	}

	if p.cached {
		// Cache hits cost nothing and took no upstream time.
		entry.Duration = 0
		entry.Cost = 0
		entry.InputCost = 0
		entry.OutputCost = 0
		entry.CachedInputCost = 0
		entry.RequestCost = 0
		entry.EstimatedCost = false
	}

	if m.Organization != nil && m.Organization.RetentionLevel == model.RetentionNone {
		entry.StripRetainedContent()
	}
	model.EnqueueLog(entry)
}

// routeErrorLog records an admission or routing failure before dispatch.
func routeErrorLog(m *meta.Meta, request *relaymodel.GeneralRequest, routeErr *router.Error) {
	reason := relaymodel.FinishReasonClientError
	if routeErr.StatusCode >= http.StatusInternalServerError {
		reason = relaymodel.FinishReasonGatewayError
	}
	emitLog(logParams{
		meta:         m,
		request:      request,
		finishReason: reason,
		err:          routeErr.Err,
	})
}

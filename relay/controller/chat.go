package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/random"
	"github.com/llmgateway/llmgateway/monitor"
	"github.com/llmgateway/llmgateway/relay/cache"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/pricing"
	"github.com/llmgateway/llmgateway/relay/router"
)

// ChatCompletions is the primary ingress. It admits, routes, consults the
// cache, dispatches to the provider dialect and logs exactly one record per
// terminated request.
func ChatCompletions(c *gin.Context) {
	m := meta.GetByContext(c)

	var request relaymodel.GeneralRequest
	if err := common.UnmarshalBodyReusable(c, &request); err != nil {
		abortRoute(c, m, nil, &router.Error{
			StatusCode: http.StatusBadRequest,
			Type:       relaymodel.ErrTypeJSONParseError,
			Err:        errors.Wrap(err, "invalid JSON body"),
		})
		return
	}
	if routeErr := validateRequest(&request); routeErr != nil {
		abortRoute(c, m, &request, routeErr)
		return
	}
	if routeErr := validatePolicy(m, &request); routeErr != nil {
		abortRoute(c, m, &request, routeErr)
		return
	}
	if routeErr := rt.Resolve(m, &request); routeErr != nil {
		abortRoute(c, m, &request, routeErr)
		return
	}
	if routeErr := validateSelection(m, &request); routeErr != nil {
		abortRoute(c, m, &request, routeErr)
		return
	}

	monitor.RequestsTotal.WithLabelValues(providerLabel(m), modelLabel(m)).Inc()

	fingerprint := ""
	if m.Project != nil && m.Project.CachingEnabled {
		fingerprint = cache.Fingerprint(&request)
		if m.IsStream {
			if rec, ok := cacheStore.GetStream(fingerprint); ok {
				replayStream(c, m, &request, rec)
				return
			}
		} else {
			if body, ok := cacheStore.GetResponse(fingerprint); ok {
				respondCached(c, m, &request, body)
				return
			}
		}
	}

	if m.IsStream {
		relayStream(c, m, &request, fingerprint)
		return
	}
	relayOnce(c, m, &request, fingerprint, nil)
}

// respondFunc renders the finished canonical response to the caller. A nil
// respondFunc means plain canonical JSON; the Anthropic-ingress adapter
// substitutes its own rewriter.
type respondFunc func(c *gin.Context, resp *relaymodel.TextResponse)

// relayOnce performs the non-streaming upstream round trip.
func relayOnce(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest, fingerprint string, respond respondFunc) {
	logger := gmw.GetLogger(c)
	adaptor := dialectFor(m)

	upstreamBody, err := adaptor.ConvertRequest(m, request)
	if err != nil {
		abortRoute(c, m, request, &router.Error{
			StatusCode: http.StatusInternalServerError,
			Type:       relaymodel.ErrTypeGatewayError,
			Err:        errors.Wrap(err, "build upstream request"),
		})
		return
	}
	rawRequest, err := json.Marshal(upstreamBody)
	if err != nil {
		abortRoute(c, m, request, &router.Error{
			StatusCode: http.StatusInternalServerError,
			Type:       relaymodel.ErrTypeGatewayError,
			Err:        errors.Wrap(err, "marshal upstream request"),
		})
		return
	}

	resp, err := dispatch(c, m, rawRequest)
	if err != nil {
		if requestCanceled(c) {
			respondCanceled(c, m, request)
			return
		}
		respondError(c, http.StatusInternalServerError, relaymodel.ErrTypeGatewayError, err)
		emitLog(logParams{meta: m, request: request,
			finishReason: relaymodel.FinishReasonGatewayError, err: err, rawRequest: rawRequest})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if requestCanceled(c) {
			respondCanceled(c, m, request)
			return
		}
		respondError(c, http.StatusInternalServerError, relaymodel.ErrTypeUpstreamError,
			errors.Wrap(err, "read upstream response"))
		emitLog(logParams{meta: m, request: request,
			finishReason: relaymodel.FinishReasonUpstreamError, err: err, rawRequest: rawRequest})
		return
	}
	if resp.StatusCode != http.StatusOK {
		relayUpstreamError(c, m, request, resp.StatusCode, body)
		return
	}

	parsed, err := adaptor.ParseResponse(m, request, body)
	if err != nil {
		logger.Error("failed to parse upstream response",
			zap.String("provider", providerLabel(m)), zap.Error(err))
		respondError(c, http.StatusInternalServerError, relaymodel.ErrTypeJSONParseError, err)
		emitLog(logParams{meta: m, request: request,
			finishReason: relaymodel.FinishReasonUpstreamError, err: err,
			rawRequest: rawRequest, rawResponse: body})
		return
	}

	content, reasoning := "", ""
	finish := relaymodel.FinishReasonStop
	var toolResults []relaymodel.Tool
	if len(parsed.Choices) > 0 {
		content = parsed.Choices[0].Message.Content
		if rc := parsed.Choices[0].Message.ReasoningContent; rc != nil {
			reasoning = *rc
		}
		finish = parsed.Choices[0].FinishReason
		toolResults = parsed.Choices[0].Message.ToolCalls
	}

	estimated := finalizeUsage(&parsed.Usage, request, content)
	applyReasoningVisibility(m, parsed)
	if parsed.Id == "" {
		parsed.Id = "chatcmpl-" + random.GetRandomString(24)
	}
	if parsed.Created == 0 {
		parsed.Created = time.Now().Unix()
	}
	parsed.Model = modelLabel(m)

	breakdown := pricing.Calculate(m.Mapping, &parsed.Usage, estimated)
	monitor.ObserveRelay(providerLabel(m), modelLabel(m), time.Since(m.StartTime), breakdown.Total)

	if respond != nil {
		respond(c, parsed)
	} else {
		c.JSON(http.StatusOK, parsed)
	}

	if fingerprint != "" {
		if raw, err := json.Marshal(parsed); err == nil {
			cacheStore.SetResponse(fingerprint, raw, cacheTTL(m))
		}
	}
	emitLog(logParams{
		meta:         m,
		request:      request,
		usage:        &parsed.Usage,
		breakdown:    breakdown,
		content:      content,
		reasoning:    reasoning,
		toolResults:  toolResults,
		finishReason: finish,
		responseSize: len(body),
		rawRequest:   rawRequest,
		rawResponse:  body,
	})
}

// dispatch sends the upstream HTTP request. The client context is forwarded
// only when the provider tolerates mid-flight aborts.
func dispatch(c *gin.Context, m *meta.Meta, body []byte) (*http.Response, error) {
	ctx := context.Background()
	if m.Provider == nil || m.Provider.Cancellation {
		ctx = c.Request.Context()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	router.ApplyAuthHeaders(req, m.Provider, m.Token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", providerLabel(m))
	}
	return resp, nil
}

// respondCached serves a one-shot cache hit verbatim.
func respondCached(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest, body []byte) {
	monitor.CacheHitsTotal.WithLabelValues("response").Inc()
	c.Data(http.StatusOK, "application/json", body)

	var parsed relaymodel.TextResponse
	var usage *relaymodel.Usage
	finish := relaymodel.FinishReasonStop
	content := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		usage = &parsed.Usage
		if len(parsed.Choices) > 0 {
			finish = parsed.Choices[0].FinishReason
			content = parsed.Choices[0].Message.Content
		}
	}
	emitLog(logParams{
		meta:         m,
		request:      request,
		usage:        usage,
		content:      content,
		finishReason: finish,
		cached:       true,
		responseSize: len(body),
	})
}

func respondCanceled(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest) {
	respondError(c, http.StatusBadRequest, relaymodel.ErrTypeCanceled,
		errors.New("request canceled by client"))
	emitLog(logParams{meta: m, request: request, canceled: true})
}

// abortRoute rejects the request with a routing or admission error and still
// writes the log record.
func abortRoute(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest, routeErr *router.Error) {
	logger := gmw.GetLogger(c)
	if routeErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("request aborted", zap.Int("status", routeErr.StatusCode), zap.Error(routeErr.Err))
	} else {
		logger.Warn("request rejected", zap.Int("status", routeErr.StatusCode), zap.Error(routeErr.Err))
	}
	respondError(c, routeErr.StatusCode, routeErr.Type, routeErr.Err)
	routeErrorLog(m, request, routeErr)
}

func requestCanceled(c *gin.Context) bool {
	return c.Request.Context().Err() != nil
}

func providerLabel(m *meta.Meta) string {
	if m.Provider != nil {
		return m.Provider.ID
	}
	return "unknown"
}

func modelLabel(m *meta.Meta) string {
	if m.Model != nil {
		return m.Model.ID
	}
	if m.UpstreamModel != "" {
		return m.UpstreamModel
	}
	return m.RequestedModel
}

func cacheTTL(m *meta.Meta) time.Duration {
	return time.Duration(m.Project.EffectiveCacheDuration()) * time.Second
}

package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/render"
	"github.com/llmgateway/llmgateway/monitor"
	"github.com/llmgateway/llmgateway/relay/cache"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/pricing"
	"github.com/llmgateway/llmgateway/relay/router"
	"github.com/llmgateway/llmgateway/relay/streaming"
	"github.com/llmgateway/llmgateway/relay/tokenizer"
)

// relayStream performs the streaming upstream round trip: reassemble SSE
// events, transform them to canonical frames, capture them for the cache and
// synthesize usage when the upstream never reports it.
func relayStream(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest, fingerprint string) {
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
		emitLog(logParams{meta: m, request: request, streamed: true,
			finishReason: relaymodel.FinishReasonGatewayError, err: err, rawRequest: rawRequest})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(config.StreamErrorBodyLimit)))
		relayUpstreamError(c, m, request, resp.StatusCode, body)
		return
	}

	common.SetEventStreamHeaders(c)
	transformer := adaptor.NewStreamTransformer(m, request)
	parser := streaming.NewParser()
	var recorder *cache.Recorder
	if fingerprint != "" {
		recorder = cache.NewRecorder()
	}

	var responseSize int
	doneSeen := false
	usageSent := false
	buf := make([]byte, 4096)

readLoop:
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			responseSize += n
			for _, ev := range parser.Feed(buf[:n]) {
				if ev.Data == streaming.DoneData {
					doneSeen = true
					break readLoop
				}
				frames, terr := transformer.Transform(ev)
				if terr != nil {
					streamParseError(c, m, request, parser, terr, rawRequest)
					return
				}
				for _, frame := range frames {
					if frame.Usage != nil {
						usageSent = true
					}
					writeFrame(c, recorder, frame)
				}
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && requestCanceled(c) {
				finishCanceledStream(c, m, request, transformer, rawRequest)
				return
			}
			if !errors.Is(readErr, io.EOF) {
				streamParseError(c, m, request, parser,
					errors.Wrap(readErr, "read upstream stream"), rawRequest)
				return
			}
			break
		}
		if requestCanceled(c) && m.Provider != nil && !m.Provider.Cancellation {
			// The upstream keeps running server-side; stop relaying output.
			finishCanceledStream(c, m, request, transformer, rawRequest)
			return
		}
	}
	_ = doneSeen

	if requestCanceled(c) {
		finishCanceledStream(c, m, request, transformer, rawRequest)
		return
	}

	content, reasoning := transformer.Content()
	usage := transformer.Usage()
	if usage == nil {
		usage = &relaymodel.Usage{}
		if reasoning != "" {
			usage.ReasoningTokens = tokenizer.Default().CountText(reasoning)
		}
	}
	estimated := finalizeUsage(usage, request, content)

	// Every stream ends with exactly one usage-bearing frame. Adapters that
	// attach usage to their own terminal frame have already sent it.
	if !usageSent {
		final := &relaymodel.StreamResponse{
			Object:  relaymodel.ObjectChatCompletionChunk,
			Model:   modelLabel(m),
			Choices: []relaymodel.ChunkChoice{{Delta: relaymodel.Delta{}}},
			Usage:   usage,
		}
		writeFrame(c, recorder, final)
	}

	render.StringData(c, streaming.DoneData)
	render.Done(c)
	if recorder != nil {
		recorder.Record("", streaming.DoneData)
		recorder.Record("done", streaming.DoneData)
	}

	finish := transformer.FinishReason()
	if finish == "" {
		finish = relaymodel.FinishReasonStop
	}

	breakdown := pricing.Calculate(m.Mapping, usage, estimated)
	monitor.ObserveRelay(providerLabel(m), modelLabel(m), time.Since(m.StartTime), breakdown.Total)

	if recorder != nil {
		cacheStore.SetStream(fingerprint, recorder.Finish(finish), cacheTTL(m))
	}
	logger.Debug("stream completed",
		zap.String("finish_reason", finish),
		zap.Int("response_size", responseSize))

	emitLog(logParams{
		meta:         m,
		request:      request,
		usage:        usage,
		breakdown:    breakdown,
		content:      content,
		reasoning:    reasoning,
		finishReason: finish,
		streamed:     true,
		responseSize: responseSize,
		rawRequest:   rawRequest,
	})
}

// writeFrame renders one canonical chunk and records it for replay.
func writeFrame(c *gin.Context, recorder *cache.Recorder, frame *relaymodel.StreamResponse) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	render.StringData(c, string(raw))
	if recorder != nil {
		recorder.Record("", string(raw))
	}
}

// streamParseError emits the error SSE event with a bounded excerpt of the
// offending buffer, terminates the stream and logs the failure.
func streamParseError(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest,
	parser *streaming.Parser, cause error, rawRequest []byte) {
	excerpt := parser.Buffered()
	if len(excerpt) > config.StreamErrorBodyLimit {
		excerpt = excerpt[:config.StreamErrorBodyLimit]
	}
	payload, _ := json.Marshal(gin.H{
		"error": relaymodel.Error{
			Message: cause.Error(),
			Type:    relaymodel.ErrTypeStreamingError,
		},
		"buffer": string(excerpt),
	})
	render.Event(c, "error", string(payload))
	render.StringData(c, streaming.DoneData)
	render.Done(c)

	emitLog(logParams{
		meta:         m,
		request:      request,
		streamed:     true,
		finishReason: relaymodel.FinishReasonUpstreamError,
		err:          cause,
		rawRequest:   rawRequest,
	})
}

// finishCanceledStream emits the canceled terminal events and logs the
// cancellation. Cancellation is not an error.
func finishCanceledStream(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest,
	transformer interface{ Content() (string, string) }, rawRequest []byte) {
	render.Event(c, "canceled", "{}")
	render.Done(c)

	content, reasoning := transformer.Content()
	emitLog(logParams{
		meta:       m,
		request:    request,
		content:    content,
		reasoning:  reasoning,
		streamed:   true,
		canceled:   true,
		rawRequest: rawRequest,
	})
}

// replayStream serves a streaming cache hit, approximating the original
// pacing by sleeping up to one second between frames.
func replayStream(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest, rec *cache.StreamRecording) {
	monitor.CacheHitsTotal.WithLabelValues("stream").Inc()
	common.SetEventStreamHeaders(c)

	var usage *relaymodel.Usage
	var prev int64
	for _, chunk := range rec.Chunks {
		if requestCanceled(c) {
			render.Event(c, "canceled", "{}")
			render.Done(c)
			emitLog(logParams{meta: m, request: request,
				streamed: true, canceled: true, cached: true})
			return
		}
		if delta := chunk.Timestamp - prev; delta > 0 {
			if delta > 1000 {
				delta = 1000
			}
			time.Sleep(time.Duration(delta) * time.Millisecond)
		}
		prev = chunk.Timestamp

		if chunk.Event != "" {
			render.Event(c, chunk.Event, chunk.Data)
		} else {
			render.StringData(c, chunk.Data)
		}
		if chunk.Data != streaming.DoneData {
			var frame relaymodel.StreamResponse
			if err := json.Unmarshal([]byte(chunk.Data), &frame); err == nil && frame.Usage != nil {
				usage = frame.Usage
			}
		}
	}

	emitLog(logParams{
		meta:         m,
		request:      request,
		usage:        usage,
		finishReason: rec.Metadata.FinishReason,
		streamed:     true,
		cached:       true,
	})
}

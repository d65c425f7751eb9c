package adaptor

import (
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/streaming"
)

// Adaptor converts between the canonical chat-completions schema and one
// provider dialect. Implementations are stateless; per-stream state lives in
// the StreamTransformer.
type Adaptor interface {
	// ConvertRequest builds the provider wire body from the canonical request.
	ConvertRequest(meta *meta.Meta, request *relaymodel.GeneralRequest) (any, error)

	// ParseResponse maps a one-shot provider body to the canonical response.
	// The original request is available for quirk handling that depends on the
	// input turns. Token enrichment and floors are applied by the caller.
	ParseResponse(meta *meta.Meta, request *relaymodel.GeneralRequest, body []byte) (*relaymodel.TextResponse, error)

	// NewStreamTransformer returns a fresh per-request stream state.
	NewStreamTransformer(meta *meta.Meta, request *relaymodel.GeneralRequest) StreamTransformer
}

// StreamTransformer folds upstream SSE events into canonical streaming frames
// while accumulating what end-of-stream usage synthesis needs.
type StreamTransformer interface {
	// Transform maps one upstream event to zero or more canonical chunks.
	Transform(ev streaming.Event) ([]*relaymodel.StreamResponse, error)

	// Usage returns the upstream-reported usage once seen, else nil.
	Usage() *relaymodel.Usage

	// Content returns the accumulated content and reasoning text so far.
	Content() (content string, reasoning string)

	// FinishReason returns the mapped terminal reason, empty until known.
	FinishReason() string
}

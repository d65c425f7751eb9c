package model

// Usage is the canonical token usage block. ReasoningTokens is never folded
// into CompletionTokens; TotalTokens = prompt + completion + reasoning.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
	// PromptTokensDetails may be empty for some providers
	PromptTokensDetails *UsagePromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

// UsagePromptTokensDetails contains details about the prompt tokens.
type UsagePromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// CachedTokens returns the cached prompt token count, tolerating a nil details block.
func (u *Usage) CachedTokens() int {
	if u == nil || u.PromptTokensDetails == nil {
		return 0
	}
	return u.PromptTokensDetails.CachedTokens
}

// Error is the canonical wire error body.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
	// RawError preserves the original error for diagnostics; never serialized.
	RawError error `json:"-"`
}

type ErrorWithStatusCode struct {
	Error
	StatusCode int `json:"status_code"`
}

// Stable error type strings surfaced in the error envelope.
const (
	ErrTypeInvalidRequest  = "invalid_request_error"
	ErrTypeUnauthorized    = "unauthorized"
	ErrTypePaymentRequired = "payment_required"
	ErrTypeGone            = "gone"
	ErrTypeClientError     = "client_error"
	ErrTypeUpstreamError   = "upstream_error"
	ErrTypeGatewayError    = "gateway_error"
	ErrTypeCanceled        = "canceled"
	ErrTypeStreamingError  = "streaming_error"
	ErrTypeJSONParseError  = "json_parse_error"
)

// Unified finish reasons.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
	FinishReasonCanceled      = "canceled"
	FinishReasonUpstreamError = "upstream_error"
	FinishReasonClientError   = "client_error"
	FinishReasonGatewayError  = "gateway_error"
	FinishReasonUnknown       = "unknown"
)

package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/llmgateway/relay/provider"
)

func TestBuildEndpoint(t *testing.T) {
	openai := &provider.Provider{ID: provider.IDOpenAI, BaseURL: "https://api.openai.com"}
	anthropic := &provider.Provider{ID: provider.IDAnthropic, BaseURL: "https://api.anthropic.com"}
	google := &provider.Provider{ID: provider.IDGoogleAIStudio, BaseURL: "https://generativelanguage.googleapis.com"}
	zai := &provider.Provider{ID: provider.IDZAI, BaseURL: "https://api.z.ai"}
	perplexity := &provider.Provider{ID: provider.IDPerplexity, BaseURL: "https://api.perplexity.ai"}
	custom := &provider.Provider{ID: provider.IDCustom}

	tests := []struct {
		name         string
		p            *provider.Provider
		base         string
		model        string
		token        string
		stream       bool
		useResponses bool
		want         string
	}{
		{name: "openai chat", p: openai, base: openai.BaseURL,
			want: "https://api.openai.com/v1/chat/completions"},
		{name: "openai responses", p: openai, base: openai.BaseURL, useResponses: true,
			want: "https://api.openai.com/v1/responses"},
		{name: "anthropic", p: anthropic, base: anthropic.BaseURL,
			want: "https://api.anthropic.com/v1/messages"},
		{name: "google one-shot", p: google, base: google.BaseURL, model: "gemini-2.0-flash", token: "g-key",
			want: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent?key=g-key"},
		{name: "google stream", p: google, base: google.BaseURL, model: "gemini-2.0-flash", token: "g-key", stream: true,
			want: "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:streamGenerateContent?key=g-key&alt=sse"},
		{name: "zai", p: zai, base: zai.BaseURL,
			want: "https://api.z.ai/api/paas/v4/chat/completions"},
		{name: "perplexity", p: perplexity, base: perplexity.BaseURL,
			want: "https://api.perplexity.ai/chat/completions"},
		{name: "custom trims trailing slash", p: custom, base: "https://my.llm.example/",
			want: "https://my.llm.example/v1/chat/completions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildEndpoint(tt.p, tt.base, tt.model, tt.token, tt.stream, tt.useResponses)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildEndpointEscapesGoogleKey(t *testing.T) {
	google := &provider.Provider{ID: provider.IDGoogleAIStudio, BaseURL: "https://generativelanguage.googleapis.com"}
	got := BuildEndpoint(google, google.BaseURL, "gemini-2.0-flash", "a&b=c", false, false)
	assert.Contains(t, got, "key=a%26b%3Dc")
}

func TestApplyAuthHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, err)
	ApplyAuthHeaders(req, &provider.Provider{ID: provider.IDAnthropic}, "sk-an")
	assert.Equal(t, "sk-an", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
	assert.Empty(t, req.Header.Get("Authorization"))

	req, err = http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, err)
	ApplyAuthHeaders(req, &provider.Provider{ID: provider.IDGoogleAIStudio}, "g-key")
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("x-api-key"))

	req, err = http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, err)
	ApplyAuthHeaders(req, &provider.Provider{ID: provider.IDOpenAI}, "sk-oa")
	assert.Equal(t, "Bearer sk-oa", req.Header.Get("Authorization"))
}

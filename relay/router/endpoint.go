package router

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/llmgateway/llmgateway/relay/provider"
)

// BuildEndpoint derives the upstream URL from the provider, base override and
// streaming mode. Google carries the key in the query string; everyone else
// authenticates via headers.
func BuildEndpoint(p *provider.Provider, base, modelName, token string, stream, useResponses bool) string {
	base = strings.TrimSuffix(base, "/")
	switch p.ID {
	case provider.IDAnthropic:
		return base + "/v1/messages"
	case provider.IDGoogleAIStudio, provider.IDVertex:
		verb := "generateContent"
		if stream {
			verb = "streamGenerateContent"
		}
		endpoint := fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", base, modelName, verb, url.QueryEscape(token))
		if stream {
			endpoint += "&alt=sse"
		}
		return endpoint
	case provider.IDOpenAI:
		if useResponses {
			return base + "/v1/responses"
		}
		return base + "/v1/chat/completions"
	case provider.IDZAI:
		return base + "/api/paas/v4/chat/completions"
	case provider.IDPerplexity, provider.IDNovita:
		return base + "/chat/completions"
	default:
		return base + "/v1/chat/completions"
	}
}

// ApplyAuthHeaders sets the provider's authentication scheme on the upstream
// request.
func ApplyAuthHeaders(req *http.Request, p *provider.Provider, token string) {
	switch p.ID {
	case provider.IDAnthropic:
		req.Header.Set("x-api-key", token)
		req.Header.Set("anthropic-version", "2023-06-01")
	case provider.IDGoogleAIStudio, provider.IDVertex:
		// Key travels in the URL.
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

package meta

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common/ctxkey"
	"github.com/llmgateway/llmgateway/model"
	"github.com/llmgateway/llmgateway/relay/provider"
)

// Meta carries everything a relay needs about one request: identity from
// admission, the routing decision, and the resolved upstream credential. It is
// assembled once by the controller and passed down explicitly; adaptors never
// reach back into the gin context.
type Meta struct {
	RequestId string
	StartTime time.Time

	Organization *model.Organization
	Project      *model.Project
	ApiKey       *model.ApiKey

	// RequestedModel and RequestedProvider are the caller's literal input,
	// before routing. UsedModel and UsedProvider are what actually served it.
	RequestedModel    string
	RequestedProvider string

	Model    *provider.Model
	Mapping  *provider.Mapping
	Provider *provider.Provider

	// UpstreamModel is the provider-native model name sent on the wire.
	UpstreamModel string
	BaseURL       string
	Token         string
	// Endpoint is the fully built upstream URL.
	Endpoint string

	// KeyMode records which credential resolution won: "api-keys" when a
	// customer key was used, "credits" when the gateway's own key was.
	KeyMode string

	IsStream bool
	// UseResponsesAPI is set by the router when the request goes through
	// OpenAI's /v1/responses endpoint instead of chat completions.
	UseResponsesAPI bool
	Debug           bool

	Source        string
	CustomHeaders map[string]string
}

// GetByContext returns the request Meta, building an identity-only skeleton on
// first use. Routing fields are filled in later by the controller.
func GetByContext(c *gin.Context) *Meta {
	if v, ok := c.Get(ctxkey.Meta); ok {
		return v.(*Meta)
	}
	m := &Meta{
		RequestId: c.GetString(ctxkey.RequestId),
		StartTime: time.Now(),
		Source:    c.GetString(ctxkey.Source),
		Debug:     c.GetBool(ctxkey.DebugMode),
	}
	if v, ok := c.Get(ctxkey.Organization); ok {
		m.Organization = v.(*model.Organization)
	}
	if v, ok := c.Get(ctxkey.Project); ok {
		m.Project = v.(*model.Project)
	}
	if v, ok := c.Get(ctxkey.ApiKey); ok {
		m.ApiKey = v.(*model.ApiKey)
	}
	if v, ok := c.Get(ctxkey.CustomHeaders); ok {
		m.CustomHeaders = v.(map[string]string)
	}
	c.Set(ctxkey.Meta, m)
	return m
}

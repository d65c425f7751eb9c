package middleware

import (
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common/ctxkey"
	"github.com/llmgateway/llmgateway/model"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

// customHeaderPrefix marks caller headers that are preserved verbatim onto the
// usage log.
const customHeaderPrefix = "x-llmgateway-"

// TokenAuth authenticates the bearer token and loads the key's project and
// organization onto the context. Admission checks beyond identity (credits,
// plan gating, usage limits) run later, once the requested model is known.
func TokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(auth, "Bearer ") {
			AbortWithError(c, http.StatusUnauthorized, relaymodel.ErrTypeUnauthorized,
				errors.New("missing or malformed Authorization header, expected Bearer token"))
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			AbortWithError(c, http.StatusUnauthorized, relaymodel.ErrTypeUnauthorized,
				errors.New("missing or malformed Authorization header, expected Bearer token"))
			return
		}

		key, err := model.GetApiKeyByToken(token)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, relaymodel.ErrTypeUnauthorized,
				errors.New("invalid API key"))
			return
		}
		if key.Status != model.KeyStatusActive {
			AbortWithError(c, http.StatusUnauthorized, relaymodel.ErrTypeUnauthorized,
				errors.New("API key is disabled"))
			return
		}
		if key.ExceedsUsageLimit() {
			AbortWithError(c, http.StatusUnauthorized, relaymodel.ErrTypeUnauthorized,
				errors.New("API key usage limit exceeded"))
			return
		}

		project, err := model.GetProjectById(key.ProjectId)
		if err != nil {
			AbortWithError(c, http.StatusInternalServerError, relaymodel.ErrTypeGatewayError,
				errors.Wrap(err, "load project"))
			return
		}
		org, err := model.GetOrganizationById(project.OrganizationId)
		if err != nil {
			AbortWithError(c, http.StatusInternalServerError, relaymodel.ErrTypeGatewayError,
				errors.Wrap(err, "load organization"))
			return
		}

		c.Set(ctxkey.ApiKey, key)
		c.Set(ctxkey.Project, project)
		c.Set(ctxkey.Organization, org)

		captureRequestAttributes(c)
		c.Next()
	}
}

// captureRequestAttributes pulls the optional caller headers the log record
// preserves.
func captureRequestAttributes(c *gin.Context) {
	if src := c.GetHeader("x-source"); src != "" {
		c.Set(ctxkey.Source, strings.ToLower(strings.TrimSpace(src)))
	}
	if strings.EqualFold(c.GetHeader("x-debug"), "true") {
		c.Set(ctxkey.DebugMode, true)
	}

	var custom map[string]string
	for name, values := range c.Request.Header {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, customHeaderPrefix) || len(values) == 0 {
			continue
		}
		if custom == nil {
			custom = make(map[string]string)
		}
		custom[lower] = values[0]
	}
	if custom != nil {
		c.Set(ctxkey.CustomHeaders, custom)
	}
}

package controller

import (
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common/helper"
	"github.com/llmgateway/llmgateway/relay/meta"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

// getFinishReasonForError classifies an upstream HTTP error. Provider 5xx is
// an upstream fault; a 400 complaining about the missing "json" keyword is the
// caller's own validation error and passes through; everything else is pinned
// on the gateway.
func getFinishReasonForError(statusCode int, body []byte) string {
	if statusCode >= http.StatusInternalServerError {
		return relaymodel.FinishReasonUpstreamError
	}
	if statusCode == http.StatusBadRequest {
		text := string(body)
		if strings.Contains(text, "'messages' must contain") && strings.Contains(text, "the word 'json'") {
			return relaymodel.FinishReasonClientError
		}
	}
	return relaymodel.FinishReasonGatewayError
}

// relayUpstreamError responds to the caller for a failed upstream call and
// writes the log record. client_error bodies are returned verbatim with their
// original status; other failures are wrapped in the gateway envelope.
func relayUpstreamError(c *gin.Context, m *meta.Meta, request *relaymodel.GeneralRequest,
	statusCode int, body []byte) {
	reason := getFinishReasonForError(statusCode, body)

	switch reason {
	case relaymodel.FinishReasonClientError:
		c.Data(statusCode, "application/json", body)
	case relaymodel.FinishReasonUpstreamError:
		respondError(c, http.StatusInternalServerError, relaymodel.ErrTypeUpstreamError,
			errors.Errorf("upstream returned status %d", statusCode))
	default:
		respondError(c, http.StatusInternalServerError, relaymodel.ErrTypeGatewayError,
			errors.Errorf("upstream request failed with status %d", statusCode))
	}

	emitLog(logParams{
		meta:         m,
		request:      request,
		finishReason: reason,
		err:          errors.Errorf("upstream status %d: %s", statusCode, truncate(body, 2048)),
		rawResponse:  body,
	})
}

// respondError writes the canonical error envelope without aborting a
// middleware chain; the controller owns the response at this point.
func respondError(c *gin.Context, statusCode int, errType string, err error) {
	c.JSON(statusCode, gin.H{
		"error": relaymodel.Error{
			Message: helper.MessageWithRequestId(err.Error(), c.GetString(helper.RequestIdKey)),
			Type:    errType,
		},
	})
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit])
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common/helper"
)

// RequestId attaches an id to every request, honouring an inbound header so
// callers can correlate retries.
func RequestId() func(c *gin.Context) {
	return func(c *gin.Context) {
		id := c.GetHeader(helper.RequestIdKey)
		if id == "" {
			id = helper.GenRequestID()
		}
		c.Set(helper.RequestIdKey, id)
		c.Header(helper.RequestIdKey, id)
		c.Next()
	}
}

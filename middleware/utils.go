package middleware

import (
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common/helper"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

// AbortWithError terminates the request with the canonical error envelope.
func AbortWithError(c *gin.Context, statusCode int, errType string, err error) {
	logger := gmw.GetLogger(c)
	if statusCode >= 500 {
		logger.Error("server abort",
			zap.Int("status_code", statusCode),
			zap.String("type", errType),
			zap.Error(err))
	} else {
		logger.Warn("request rejected",
			zap.Int("status_code", statusCode),
			zap.String("type", errType),
			zap.Error(err))
	}

	c.JSON(statusCode, gin.H{
		"error": relaymodel.Error{
			Message: helper.MessageWithRequestId(err.Error(), c.GetString(helper.RequestIdKey)),
			Type:    errType,
		},
	})
	c.Abort()
}

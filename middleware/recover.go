package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/llmgateway/common"
	"github.com/llmgateway/llmgateway/common/logger"
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
)

func RelayPanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				body, _ := common.GetRequestBody(c)
				logger.Logger.Error("panic detected",
					zap.Any("panic", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("request_body", body))
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": relaymodel.Error{
						Message: fmt.Sprintf("internal error: %v", err),
						Type:    relaymodel.ErrTypeGatewayError,
					},
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

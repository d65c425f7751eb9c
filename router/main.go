package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/middleware"
	"github.com/llmgateway/llmgateway/relay/controller"
)

// SetRouter registers every HTTP route on the server. The relay surface lives
// under /v1 behind bearer-token auth; health and metrics are unauthenticated.
func SetRouter(server *gin.Engine) {
	server.Use(middleware.RequestId())
	server.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-Id", "X-Source", "X-Debug"},
		ExposeHeaders: []string{"X-Request-Id"},
	}))

	server.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if config.EnablePrometheusMetrics {
		server.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := server.Group("/v1")
	v1.Use(middleware.RelayPanicRecover(), middleware.TokenAuth())
	{
		v1.POST("/chat/completions", controller.ChatCompletions)
		v1.POST("/messages", controller.ClaudeMessages)
	}
}

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftline/driftline/internal/common/httpmw"
	"github.com/driftline/driftline/internal/common/logger"
	gateways "github.com/driftline/driftline/internal/gateway/websocket"
	"github.com/driftline/driftline/internal/orchestrator"

	convhandlers "github.com/driftline/driftline/internal/conversation/handlers"
	dirhandlers "github.com/driftline/driftline/internal/directory/handlers"
	flowhandlers "github.com/driftline/driftline/internal/flow/handlers"
)

// buildRouter mounts the whole HTTP surface: the widget endpoints (no
// auth), the agent dashboard API behind bearer auth, and the WebSocket
// endpoint.
func buildRouter(gw *gateways.Gateway, svcs *Services, orch *orchestrator.Orchestrator, defaultTenant string, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.CORS())
	router.Use(httpmw.OtelTracing("driftline"))
	router.Use(httpmw.RequestLogger(log, "driftline"))

	// Realtime transport
	gw.SetupRoutes(router)

	// Widget surface: anonymous visitors
	widget := router.Group("/api")
	convhandlers.NewVisitorHandler(svcs.Conversations, orch, log).RegisterRoutes(widget)
	dirhandlers.NewHandler(svcs.Directory, defaultTenant, log).RegisterWidgetRoutes(widget)

	// Agent dashboard surface: bearer token auth
	agent := router.Group("/api/agent")
	agent.Use(httpmw.AgentAuth(svcs.Directory))
	convhandlers.NewAgentHandler(svcs.Conversations, orch, log).RegisterRoutes(agent)
	dirhandlers.NewHandler(svcs.Directory, defaultTenant, log).RegisterAgentRoutes(agent)
	flowhandlers.NewHandler(svcs.Flows, log).RegisterRoutes(agent)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "driftline",
			"clients": gw.Hub.ClientCount(),
		})
	})

	return router
}

package websocket

import (
	"github.com/gin-gonic/gin"

	"github.com/driftline/driftline/internal/common/logger"
	convservice "github.com/driftline/driftline/internal/conversation/service"
	dirservice "github.com/driftline/driftline/internal/directory/service"
	"github.com/driftline/driftline/internal/orchestrator"
)

// Gateway bundles the hub, the connection handler, and the services the
// socket events touch.
type Gateway struct {
	Hub     *Hub
	Handler *Handler

	orch  *orchestrator.Orchestrator
	convo *convservice.Service
	dir   *dirservice.Service

	logger *logger.Logger
}

// NewGateway creates the realtime gateway. The orchestrator is attached
// afterwards via SetOrchestrator because it needs the hub as its Realtime
// sink.
func NewGateway(convo *convservice.Service, dir *dirservice.Service, log *logger.Logger) *Gateway {
	gw := &Gateway{
		Hub:    NewHub(log),
		convo:  convo,
		dir:    dir,
		logger: log,
	}
	gw.Handler = NewHandler(gw, log)
	return gw
}

// SetOrchestrator closes the hub/orchestrator cycle.
func (g *Gateway) SetOrchestrator(orch *orchestrator.Orchestrator) {
	g.orch = orch
}

// SetupRoutes adds the WebSocket endpoint to the Gin engine.
func (g *Gateway) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", g.Handler.HandleConnection)
}

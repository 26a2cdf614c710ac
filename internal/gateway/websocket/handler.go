package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/logger"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the widget embeds on arbitrary customer domains
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket connections.
type Handler struct {
	gw     *Gateway
	logger *logger.Logger
}

// NewHandler creates the connection handler.
func NewHandler(gw *Gateway, log *logger.Logger) *Handler {
	return &Handler{
		gw:     gw,
		logger: log.WithFields(zap.String("component", "ws-handler")),
	}
}

// HandleConnection upgrades the request and runs the client pumps. Both
// widget and agent sockets share this endpoint; identity arrives in-band
// via widget:join or agent:join.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	h.logger.Debug("connection established",
		zap.String("client_id", clientID),
		zap.String("remote_addr", c.Request.RemoteAddr))

	client := NewClient(clientID, conn, h.gw, h.logger)
	h.gw.Hub.register(client)

	go client.WritePump()
	client.ReadPump(c.Request.Context())
}

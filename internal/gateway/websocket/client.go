package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/logger"
	ws "github.com/driftline/driftline/pkg/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB

	sendBufferSize = 256
)

// Client is a single WebSocket connection, widget or agent dashboard.
// The identity fields are guarded by the hub's mutex.
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	gw   *Gateway
	send chan []byte

	// set by agent:join
	isAgent  bool
	agentID  string
	tenantID string

	// typing presence owned by this socket, cleared on disconnect
	typingSession        string
	visitorTypingSession string

	logger *logger.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(id string, conn *websocket.Conn, gw *Gateway, log *logger.Logger) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		hub:    gw.Hub,
		gw:     gw,
		send:   make(chan []byte, sendBufferSize),
		logger: log.WithFields(zap.String("client_id", id)),
	}
}

// ReadPump pumps frames from the socket into the event dispatch.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", zap.Error(err))
			}
			break
		}

		msg, err := ws.Decode(raw)
		if err != nil {
			c.logger.Debug("dropping unparseable frame", zap.Error(err))
			c.sendError(ws.EventAuthError, ws.ErrorCodeBadRequest, "invalid message format")
			continue
		}
		c.gw.dispatch(ctx, c, msg)
	}
}

// sendEnvelope serializes and queues one envelope for this client only.
func (c *Client) sendEnvelope(event string, data interface{}) {
	msg, err := ws.NewMessage(event, data)
	if err != nil {
		c.logger.Error("failed to build envelope", zap.String("event", event), zap.Error(err))
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		c.logger.Error("failed to encode envelope", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("client send buffer full", zap.String("event", event))
	}
}

func (c *Client) sendError(event, code, message string) {
	c.sendEnvelope(event, ws.ErrorData{Code: code, Message: message})
}

// WritePump pumps queued frames to the socket, batching whatever has
// accumulated and keeping the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			// Batch additional queued frames
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

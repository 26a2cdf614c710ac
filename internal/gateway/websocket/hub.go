// Package websocket is the realtime gateway: one hub fans persisted
// conversation events out to widget and agent dashboard sockets and
// aggregates typing presence per session.
package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/logger"
	convmodels "github.com/driftline/driftline/internal/conversation/models"
	ws "github.com/driftline/driftline/pkg/websocket"
)

// Hub indexes connected sockets. One mutex guards every map; emits
// serialize the envelope once and push to per-client buffered queues
// without ever blocking the emitter.
type Hub struct {
	mu sync.Mutex

	clients map[string]*Client
	// authenticated agent dashboard sockets
	agents map[string]*Client
	// visitor sockets watching a session, plus agents that explicitly
	// watched it
	sessionWatchers map[string]map[string]*Client
	// the one session a client currently watches
	watchedSession map[string]string

	// per-session typing presence
	typing map[string]*sessionTyping

	logger *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]*Client),
		agents:          make(map[string]*Client),
		sessionWatchers: make(map[string]map[string]*Client),
		watchedSession:  make(map[string]string),
		typing:          make(map[string]*sessionTyping),
		logger:          log.WithFields(zap.String("component", "ws-hub")),
	}
}

// MessagePayload is the message:new wire payload.
type MessagePayload struct {
	SessionID string              `json:"sessionId"`
	Message   *convmodels.Message `json:"message"`
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("client registered", zap.String("client_id", client.ID))
}

// unregister tears down every index referencing the client and emits
// typing-off events for presence state it owned.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	delete(h.agents, client.ID)

	if sessionID := h.watchedSession[client.ID]; sessionID != "" {
		h.dropWatcher(client.ID, sessionID)
	}
	delete(h.watchedSession, client.ID)

	if client.typingSession != "" {
		h.setHumanTyperLocked(client, client.typingSession, false)
	}
	if client.visitorTypingSession != "" {
		h.relayVisitorTypingLocked(client.visitorTypingSession, "", false)
		client.visitorTypingSession = ""
	}

	close(client.send)
	h.logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

func (h *Hub) dropWatcher(clientID, sessionID string) {
	if watchers, ok := h.sessionWatchers[sessionID]; ok {
		delete(watchers, clientID)
		if len(watchers) == 0 {
			delete(h.sessionWatchers, sessionID)
		}
	}
}

// watchSession points the client at a session, replacing any previous
// watch. Used by widget:join and agent:watch-session.
func (h *Hub) watchSession(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := h.watchedSession[client.ID]; prev != "" && prev != sessionID {
		h.dropWatcher(client.ID, prev)
	}
	h.watchedSession[client.ID] = sessionID
	if _, ok := h.sessionWatchers[sessionID]; !ok {
		h.sessionWatchers[sessionID] = make(map[string]*Client)
	}
	h.sessionWatchers[sessionID][client.ID] = client
}

// markAgent promotes a client to an authenticated agent socket.
func (h *Hub) markAgent(client *Client, agentID, tenantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.isAgent = true
	client.agentID = agentID
	client.tenantID = tenantID
	h.agents[client.ID] = client
}

// EmitMessage fans a persisted message out as message:new to the
// session's watchers and the tenant's agents. Agent-only messages (team,
// notes, most system lines) skip visitor sockets.
func (h *Hub) EmitMessage(session *convmodels.Session, msg *convmodels.Message) {
	payload := &MessagePayload{SessionID: msg.SessionID, Message: msg}
	visitorVisible := msg.VisibleToVisitor()

	h.mu.Lock()
	defer h.mu.Unlock()

	recipients := make(map[string]*Client)
	for id, c := range h.sessionWatchers[msg.SessionID] {
		if !visitorVisible && !c.isAgent {
			continue
		}
		recipients[id] = c
	}
	for id, c := range h.agents {
		if c.tenantID == "" || session == nil || c.tenantID == session.TenantID {
			recipients[id] = c
		}
	}
	h.emitLocked(ws.EventMessageNew, payload, recipients)
}

// EmitToClient targets one socket by client id; unknown ids are dropped.
func (h *Hub) EmitToClient(clientID, event string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		h.emitLocked(event, data, map[string]*Client{clientID: c})
	}
}

// EmitToAgents pushes an event to every agent socket of the tenant. An
// empty tenantID addresses all agents.
func (h *Hub) EmitToAgents(tenantID, event string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	recipients := make(map[string]*Client)
	for id, c := range h.agents {
		if tenantID == "" || c.tenantID == "" || c.tenantID == tenantID {
			recipients[id] = c
		}
	}
	h.emitLocked(event, data, recipients)
}

// emitLocked serializes once and pushes to each recipient's queue. A full
// queue drops the frame for that client rather than blocking.
func (h *Hub) emitLocked(event string, data interface{}, recipients map[string]*Client) {
	if len(recipients) == 0 {
		return
	}
	msg, err := ws.NewMessage(event, data)
	if err != nil {
		h.logger.Error("failed to build envelope", zap.String("event", event), zap.Error(err))
		return
	}
	frame, err := msg.Encode()
	if err != nil {
		h.logger.Error("failed to encode envelope", zap.String("event", event), zap.Error(err))
		return
	}
	for _, c := range recipients {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("client send buffer full, dropping frame",
				zap.String("client_id", c.ID),
				zap.String("event", event))
		}
	}
}

// sessionRecipientsLocked is the typing recipient set: the session's
// watchers plus every agent socket.
func (h *Hub) sessionRecipientsLocked(sessionID string) map[string]*Client {
	recipients := make(map[string]*Client)
	for id, c := range h.sessionWatchers[sessionID] {
		recipients[id] = c
	}
	for id, c := range h.agents {
		recipients[id] = c
	}
	return recipients
}

// ClientCount reports connected sockets, for the health endpoint.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every client queue.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.agents = make(map[string]*Client)
	h.sessionWatchers = make(map[string]map[string]*Client)
	h.watchedSession = make(map[string]string)
	h.typing = make(map[string]*sessionTyping)
}

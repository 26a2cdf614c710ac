package websocket

import (
	ws "github.com/driftline/driftline/pkg/websocket"
)

// sessionTyping is the per-session presence state. The aggregate "agent
// side is typing" boolean is autoCount > 0 or humanTypers non-empty; only
// transitions of the aggregate hit the wire.
type sessionTyping struct {
	// nested bot typing intervals opened by the flow interpreter
	autoCount int
	// agent client ids with an active composer indicator
	humanTypers map[string]bool
}

// TypingPayload is the typing wire payload pushed to watchers and agents.
type TypingPayload struct {
	SessionID string `json:"sessionId"`
	Active    bool   `json:"active"`
}

// VisitorTypingPayload is the visitor:typing relay pushed to agents. Text
// carries the composer preview.
type VisitorTypingPayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text,omitempty"`
	Active    bool   `json:"active"`
}

func (s *sessionTyping) active() bool {
	return s.autoCount > 0 || len(s.humanTypers) > 0
}

func (h *Hub) typingState(sessionID string) *sessionTyping {
	s, ok := h.typing[sessionID]
	if !ok {
		s = &sessionTyping{humanTypers: make(map[string]bool)}
		h.typing[sessionID] = s
	}
	return s
}

func (h *Hub) dropTypingStateIfIdle(sessionID string, s *sessionTyping) {
	if s.autoCount == 0 && len(s.humanTypers) == 0 {
		delete(h.typing, sessionID)
	}
}

// BotTypingStart opens one bot typing interval; intervals nest, so only
// the 0→1 transition emits.
func (h *Hub) BotTypingStart(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.typingState(sessionID)
	was := s.active()
	s.autoCount++
	h.emitTypingTransitionLocked(sessionID, s, was)
}

// BotTypingStop closes one bot typing interval.
func (h *Hub) BotTypingStop(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.typing[sessionID]
	if !ok || s.autoCount == 0 {
		return
	}
	was := s.active()
	s.autoCount--
	h.emitTypingTransitionLocked(sessionID, s, was)
	h.dropTypingStateIfIdle(sessionID, s)
}

// AgentTyping updates the agent's composer indicator. An agent types in
// at most one session: switching from A to B clears A first and emits
// A-off when that was a transition.
func (h *Hub) AgentTyping(client *Client, sessionID string, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if active {
		if prev := client.typingSession; prev != "" && prev != sessionID {
			h.setHumanTyperLocked(client, prev, false)
		}
		h.setHumanTyperLocked(client, sessionID, true)
		return
	}
	h.setHumanTyperLocked(client, sessionID, false)
}

func (h *Hub) setHumanTyperLocked(client *Client, sessionID string, active bool) {
	s := h.typingState(sessionID)
	was := s.active()
	if active {
		s.humanTypers[client.ID] = true
		client.typingSession = sessionID
	} else {
		delete(s.humanTypers, client.ID)
		if client.typingSession == sessionID {
			client.typingSession = ""
		}
	}
	h.emitTypingTransitionLocked(sessionID, s, was)
	h.dropTypingStateIfIdle(sessionID, s)
}

// VisitorTyping relays the widget composer state to the tenant's agents
// and remembers it for disconnect cleanup.
func (h *Hub) VisitorTyping(client *Client, sessionID, text string, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if active {
		client.visitorTypingSession = sessionID
	} else if client.visitorTypingSession == sessionID {
		client.visitorTypingSession = ""
	}
	h.relayVisitorTypingLocked(sessionID, text, active)
}

func (h *Hub) relayVisitorTypingLocked(sessionID, text string, active bool) {
	recipients := make(map[string]*Client, len(h.agents))
	for id, c := range h.agents {
		recipients[id] = c
	}
	h.emitLocked(ws.EventVisitorTyping, &VisitorTypingPayload{
		SessionID: sessionID,
		Text:      text,
		Active:    active,
	}, recipients)
}

func (h *Hub) emitTypingTransitionLocked(sessionID string, s *sessionTyping, was bool) {
	now := s.active()
	if now == was {
		return
	}
	h.emitLocked(ws.EventTyping, &TypingPayload{SessionID: sessionID, Active: now},
		h.sessionRecipientsLocked(sessionID))
}

// TypingActive reports the aggregate for a session, used to seed a
// freshly joined widget client.
func (h *Hub) TypingActive(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.typing[sessionID]
	return ok && s.active()
}

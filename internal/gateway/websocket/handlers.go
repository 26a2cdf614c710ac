package websocket

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/orchestrator"
	ws "github.com/driftline/driftline/pkg/websocket"
)

// Inbound payloads. Field names mirror the widget and dashboard wire
// format (camelCase).

type widgetJoinRequest struct {
	SessionID string `json:"sessionId"`
	VisitorID string `json:"visitorId,omitempty"`
}

type widgetMessageRequest struct {
	SessionID string `json:"sessionId"`
	VisitorID string `json:"visitorId,omitempty"`
	Text      string `json:"text"`
}

type visitorTypingRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text,omitempty"`
	Active    bool   `json:"active"`
}

type agentJoinRequest struct {
	Token string `json:"token"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type agentTypingRequest struct {
	SessionID string `json:"sessionId"`
	Active    bool   `json:"active"`
}

type agentMessageRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Internal  bool   `json:"internal,omitempty"`
}

// Outbound payloads.

type sessionHistoryPayload struct {
	SessionID string      `json:"sessionId"`
	Messages  interface{} `json:"messages"`
}

type sessionsListPayload struct {
	Sessions interface{} `json:"sessions"`
}

// dispatch routes one decoded envelope to its handler.
func (g *Gateway) dispatch(ctx context.Context, c *Client, msg *ws.Message) {
	switch msg.Event {
	case ws.EventWidgetJoin:
		g.handleWidgetJoin(ctx, c, msg)
	case ws.EventWidgetMessage:
		g.handleWidgetMessage(ctx, c, msg)
	case ws.EventWidgetOpened:
		g.handleWidgetOpened(ctx, c, msg)
	case ws.EventVisitorTyping:
		g.handleVisitorTyping(c, msg)
	case ws.EventAgentJoin:
		g.handleAgentJoin(ctx, c, msg)
	case ws.EventAgentWatchSession:
		g.handleAgentHistory(ctx, c, msg, true)
	case ws.EventAgentRequestHistory:
		g.handleAgentHistory(ctx, c, msg, false)
	case ws.EventAgentTyping:
		g.handleAgentTyping(c, msg)
	case ws.EventAgentMessage:
		g.handleAgentMessage(ctx, c, msg)
	default:
		c.logger.Debug("unknown event", zap.String("event", msg.Event))
	}
}

// handleWidgetJoin registers the socket as a watcher and replies with the
// visitor-visible history plus the current typing state.
func (g *Gateway) handleWidgetJoin(ctx context.Context, c *Client, msg *ws.Message) {
	var req widgetJoinRequest
	if err := msg.ParseData(&req); err != nil {
		c.logger.Debug("bad widget:join payload", zap.Error(err))
		return
	}
	session, err := g.orch.EnsureSession(ctx, c.ID, req.SessionID, req.VisitorID)
	if err != nil {
		c.logger.Error("widget:join failed", zap.Error(err))
		return
	}
	g.Hub.watchSession(c, session.ID)

	history, err := g.convo.VisibleHistory(ctx, session.ID)
	if err != nil {
		c.logger.Error("failed to load history", zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	c.sendEnvelope(ws.EventSessionHistory, &sessionHistoryPayload{
		SessionID: session.ID,
		Messages:  history,
	})
	if g.Hub.TypingActive(session.ID) {
		c.sendEnvelope(ws.EventTyping, &TypingPayload{SessionID: session.ID, Active: true})
	}
}

func (g *Gateway) handleWidgetMessage(ctx context.Context, c *Client, msg *ws.Message) {
	var req widgetMessageRequest
	if err := msg.ParseData(&req); err != nil || req.Text == "" {
		c.logger.Debug("bad widget:message payload", zap.Error(err))
		return
	}
	session, _, err := g.orch.HandleVisitorMessage(ctx, c.ID, &orchestrator.VisitorMessage{
		SessionID: req.SessionID,
		VisitorID: req.VisitorID,
		Channel:   "widget",
		Text:      req.Text,
	})
	if err != nil {
		c.logger.Error("widget:message failed", zap.Error(err))
		return
	}
	// follow retargets: the client watches whatever session the message
	// actually landed in
	g.Hub.watchSession(c, session.ID)
}

func (g *Gateway) handleWidgetOpened(ctx context.Context, c *Client, msg *ws.Message) {
	var req widgetJoinRequest
	if err := msg.ParseData(&req); err != nil {
		c.logger.Debug("bad widget:opened payload", zap.Error(err))
		return
	}
	session, err := g.orch.HandleWidgetOpened(ctx, c.ID, req.SessionID, req.VisitorID)
	if err != nil {
		c.logger.Error("widget:opened failed", zap.Error(err))
		return
	}
	g.Hub.watchSession(c, session.ID)
}

func (g *Gateway) handleVisitorTyping(c *Client, msg *ws.Message) {
	var req visitorTypingRequest
	if err := msg.ParseData(&req); err != nil || req.SessionID == "" {
		return
	}
	g.Hub.VisitorTyping(c, req.SessionID, req.Text, req.Active)
}

// handleAgentJoin authenticates the socket and replies with the tenant's
// session list, or auth:error.
func (g *Gateway) handleAgentJoin(ctx context.Context, c *Client, msg *ws.Message) {
	var req agentJoinRequest
	if err := msg.ParseData(&req); err != nil {
		c.sendError(ws.EventAuthError, ws.ErrorCodeBadRequest, "invalid payload")
		return
	}
	agentID, tenantID, err := g.dir.ResolveToken(ctx, req.Token)
	if err != nil {
		c.sendError(ws.EventAuthError, ws.ErrorCodeUnauthorized, "invalid or expired token")
		return
	}
	g.Hub.markAgent(c, agentID, tenantID)

	sessions, err := g.convo.ListSessions(ctx, tenantID)
	if err != nil {
		c.logger.Error("failed to list sessions", zap.Error(err))
		return
	}
	c.sendEnvelope(ws.EventSessionsList, &sessionsListPayload{Sessions: sessions})
}

// handleAgentHistory serves agent:watch-session and agent:request-history;
// both reply with the unfiltered timeline, watch additionally switches the
// agent's watched session.
func (g *Gateway) handleAgentHistory(ctx context.Context, c *Client, msg *ws.Message, watch bool) {
	if !c.isAgent {
		c.sendError(ws.EventAuthError, ws.ErrorCodeUnauthorized, "agent:join required")
		return
	}
	var req sessionRequest
	if err := msg.ParseData(&req); err != nil || req.SessionID == "" {
		return
	}
	if watch {
		g.Hub.watchSession(c, req.SessionID)
	}
	history, err := g.convo.ListMessages(ctx, req.SessionID)
	if err != nil {
		c.logger.Error("failed to load history", zap.String("session_id", req.SessionID), zap.Error(err))
		return
	}
	c.sendEnvelope(ws.EventSessionHistory, &sessionHistoryPayload{
		SessionID: req.SessionID,
		Messages:  history,
	})
}

func (g *Gateway) handleAgentTyping(c *Client, msg *ws.Message) {
	if !c.isAgent {
		return
	}
	var req agentTypingRequest
	if err := msg.ParseData(&req); err != nil || req.SessionID == "" {
		return
	}
	g.Hub.AgentTyping(c, req.SessionID, req.Active)
}

func (g *Gateway) handleAgentMessage(ctx context.Context, c *Client, msg *ws.Message) {
	if !c.isAgent {
		c.sendError(ws.EventAuthError, ws.ErrorCodeUnauthorized, "agent:join required")
		return
	}
	var req agentMessageRequest
	if err := msg.ParseData(&req); err != nil || req.SessionID == "" || req.Text == "" {
		return
	}
	if _, err := g.orch.HandleAgentMessage(ctx, &orchestrator.AgentMessage{
		SessionID: req.SessionID,
		AgentID:   c.agentID,
		Text:      req.Text,
		Internal:  req.Internal,
	}); err != nil {
		c.logger.Error("agent:message failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
	}
}

// Package handlers exposes the conversation REST surface: the widget's
// visitor endpoints and the agent dashboard's session administration.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/conversation/service"
	"github.com/driftline/driftline/internal/orchestrator"
)

// VisitorHandler serves the unauthenticated widget endpoints. Everything
// that can mutate a conversation goes through the orchestrator so WS and
// REST ingress share one path.
type VisitorHandler struct {
	convo  *service.Service
	orch   *orchestrator.Orchestrator
	logger *logger.Logger
}

// NewVisitorHandler creates the widget-facing handler.
func NewVisitorHandler(convo *service.Service, orch *orchestrator.Orchestrator, log *logger.Logger) *VisitorHandler {
	return &VisitorHandler{
		convo:  convo,
		orch:   orch,
		logger: log.WithFields(zap.String("component", "visitor-api")),
	}
}

// RegisterRoutes mounts the visitor endpoints under /api.
func (h *VisitorHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/session", h.createSession)
	api.GET("/session/:id/messages", h.listMessages)
	api.POST("/session/:id/message", h.postMessage)
	api.POST("/session/:id/close", h.closeSession)
	api.POST("/session/:id/csat", h.submitCSAT)
}

type createSessionRequest struct {
	VisitorID string `json:"visitorId"`
	Channel   string `json:"channel"`
}

func (h *VisitorHandler) createSession(c *gin.Context) {
	var req createSessionRequest
	// body is optional for anonymous widget sessions
	_ = c.ShouldBindJSON(&req)

	session, err := h.orch.EnsureSession(c.Request.Context(), "", "", req.VisitorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// listMessages returns the visitor-visible timeline; internal notes, team
// chatter, and most system lines are filtered out.
func (h *VisitorHandler) listMessages(c *gin.Context) {
	messages, err := h.convo.VisibleHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type postMessageRequest struct {
	Sender    string `json:"sender"`
	Text      string `json:"text" binding:"required"`
	VisitorID string `json:"visitorId"`
}

func (h *VisitorHandler) postMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	session, msg, err := h.orch.HandleVisitorMessage(c.Request.Context(), "", &orchestrator.VisitorMessage{
		SessionID: c.Param("id"),
		VisitorID: req.VisitorID,
		Channel:   "widget",
		Text:      req.Text,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessionId": session.ID, "message": msg})
}

func (h *VisitorHandler) closeSession(c *gin.Context) {
	if err := h.orch.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

type csatRequest struct {
	Score   int    `json:"score" binding:"required"`
	Comment string `json:"comment"`
}

func (h *VisitorHandler) submitCSAT(c *gin.Context) {
	var req csatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score is required"})
		return
	}
	survey, err := h.orch.HandleCSATSubmitted(c.Request.Context(), c.Param("id"), req.Score, req.Comment)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, survey)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/httpmw"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/conversation/models"
	"github.com/driftline/driftline/internal/conversation/service"
	"github.com/driftline/driftline/internal/orchestrator"
)

// AgentHandler serves the authenticated dashboard endpoints for
// conversations, contacts, tags, attributes, notes, and CSAT reporting.
type AgentHandler struct {
	convo  *service.Service
	orch   *orchestrator.Orchestrator
	logger *logger.Logger
}

// NewAgentHandler creates the dashboard-facing handler.
func NewAgentHandler(convo *service.Service, orch *orchestrator.Orchestrator, log *logger.Logger) *AgentHandler {
	return &AgentHandler{
		convo:  convo,
		orch:   orch,
		logger: log.WithFields(zap.String("component", "agent-api")),
	}
}

// RegisterRoutes mounts the agent endpoints; the group must carry the
// AgentAuth middleware.
func (h *AgentHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/sessions", h.listSessions)
	api.GET("/sessions/:id", h.getSession)
	api.PATCH("/sessions/:id", h.patchSession)
	api.GET("/sessions/:id/messages", h.listMessages)
	api.POST("/sessions/:id/message", h.postMessage)

	api.GET("/sessions/:id/notes", h.listNotes)
	api.POST("/sessions/:id/notes", h.addNote)

	api.GET("/sessions/:id/tags", h.sessionTags)
	api.POST("/sessions/:id/tags", h.tagSession)
	api.DELETE("/sessions/:id/tags/:name", h.untagSession)

	api.GET("/sessions/:id/attributes", h.conversationAttributes)
	api.PUT("/sessions/:id/attributes", h.setConversationAttribute)

	api.GET("/contacts", h.listContacts)
	api.POST("/contacts", h.createContact)
	api.GET("/contacts/:id", h.getContact)
	api.PATCH("/contacts/:id", h.updateContact)
	api.GET("/contacts/:id/attributes", h.contactAttributes)

	api.GET("/tags", h.listTags)
	api.POST("/tags", h.upsertTag)
	api.DELETE("/tags/:id", h.deleteTag)

	api.GET("/csat/summary", h.csatSummary)
}

func tenantID(c *gin.Context) string {
	return c.GetString(httpmw.ContextTenantID)
}

func (h *AgentHandler) listSessions(c *gin.Context) {
	sessions, err := h.convo.ListSessions(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *AgentHandler) getSession(c *gin.Context) {
	summary, err := h.convo.GetSessionSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type patchSessionRequest struct {
	Status          *models.SessionStatus   `json:"status"`
	Priority        *models.SessionPriority `json:"priority"`
	AssigneeAgentID *string                 `json:"assigneeAgentId"`
	TeamID          *string                 `json:"teamId"`
	InboxID         *string                 `json:"inboxId"`
	FlowID          *string                 `json:"flowId"`
	Channel         *string                 `json:"channel"`
	ContactID       *string                 `json:"contactId"`
	Handover        *bool                   `json:"handoverActive"`
}

func (h *AgentHandler) patchSession(c *gin.Context) {
	var req patchSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch body"})
		return
	}
	summary, err := h.convo.PatchSession(c.Request.Context(), c.Param("id"), &service.SessionPatch{
		Status:          req.Status,
		Priority:        req.Priority,
		AssigneeAgentID: req.AssigneeAgentID,
		TeamID:          req.TeamID,
		InboxID:         req.InboxID,
		FlowID:          req.FlowID,
		Channel:         req.Channel,
		ContactID:       req.ContactID,
		Handover:        req.Handover,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AgentHandler) listMessages(c *gin.Context) {
	messages, err := h.convo.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type agentMessageRequest struct {
	Text     string `json:"text" binding:"required"`
	Internal bool   `json:"internal"`
}

func (h *AgentHandler) postMessage(c *gin.Context) {
	var req agentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	msg, err := h.orch.HandleAgentMessage(c.Request.Context(), &orchestrator.AgentMessage{
		SessionID: c.Param("id"),
		AgentID:   c.GetString(httpmw.ContextAgentID),
		Text:      req.Text,
		Internal:  req.Internal,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *AgentHandler) listNotes(c *gin.Context) {
	notes, err := h.convo.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

type noteRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *AgentHandler) addNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	note, err := h.convo.AddNote(c.Request.Context(), c.Param("id"), c.GetString(httpmw.ContextAgentID), req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *AgentHandler) sessionTags(c *gin.Context) {
	tags, err := h.convo.SessionTags(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

type tagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (h *AgentHandler) tagSession(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if err := h.convo.TagSession(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgentHandler) untagSession(c *gin.Context) {
	if err := h.convo.UntagSession(c.Request.Context(), c.Param("id"), c.Param("name")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgentHandler) conversationAttributes(c *gin.Context) {
	attrs, err := h.convo.ConversationAttributes(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attributes": attrs})
}

type attributeRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

func (h *AgentHandler) setConversationAttribute(c *gin.Context) {
	var req attributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	if err := h.convo.SetConversationAttribute(c.Request.Context(), c.Param("id"), req.Key, req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgentHandler) listContacts(c *gin.Context) {
	contacts, err := h.convo.ListContacts(c.Request.Context(), tenantID(c), c.Query("query"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

type contactRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	Location string `json:"location"`
}

func (h *AgentHandler) createContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact body"})
		return
	}
	contact, err := h.convo.CreateContact(c.Request.Context(), &models.Contact{
		TenantID: tenantID(c),
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Company:  req.Company,
		Location: req.Location,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *AgentHandler) getContact(c *gin.Context) {
	contact, err := h.convo.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *AgentHandler) updateContact(c *gin.Context) {
	contact, err := h.convo.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact body"})
		return
	}
	if req.Name != "" {
		contact.Name = req.Name
	}
	if req.Email != "" {
		contact.Email = req.Email
	}
	if req.Phone != "" {
		contact.Phone = req.Phone
	}
	if req.Company != "" {
		contact.Company = req.Company
	}
	if req.Location != "" {
		contact.Location = req.Location
	}
	if err := h.convo.UpdateContact(c.Request.Context(), contact); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *AgentHandler) contactAttributes(c *gin.Context) {
	attrs, err := h.convo.ContactAttributes(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attributes": attrs})
}

func (h *AgentHandler) listTags(c *gin.Context) {
	tags, err := h.convo.ListTags(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *AgentHandler) upsertTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	tag, err := h.convo.UpsertTag(c.Request.Context(), tenantID(c), req.Name, req.Color)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (h *AgentHandler) deleteTag(c *gin.Context) {
	if err := h.convo.DeleteTag(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgentHandler) csatSummary(c *gin.Context) {
	summary, err := h.convo.CSATSummary(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

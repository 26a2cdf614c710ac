// Package handlers exposes the workspace directory REST surface: teams,
// inboxes, agents, canned replies, tenant settings, and the widget
// bootstrap.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/httpmw"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/directory/models"
	"github.com/driftline/driftline/internal/directory/service"
)

// Handler serves the directory endpoints.
type Handler struct {
	dir           *service.Service
	defaultTenant string
	logger        *logger.Logger
}

// NewHandler creates the directory handler. defaultTenant backs the
// widget bootstrap when the request carries no tenant id.
func NewHandler(dir *service.Service, defaultTenant string, log *logger.Logger) *Handler {
	return &Handler{
		dir:           dir,
		defaultTenant: defaultTenant,
		logger:        log.WithFields(zap.String("component", "directory-api")),
	}
}

// RegisterWidgetRoutes mounts the unauthenticated widget bootstrap.
func (h *Handler) RegisterWidgetRoutes(api *gin.RouterGroup) {
	api.GET("/widget/bootstrap", h.widgetBootstrap)
}

// RegisterAgentRoutes mounts the authenticated directory CRUD; the group
// must carry the AgentAuth middleware.
func (h *Handler) RegisterAgentRoutes(api *gin.RouterGroup) {
	api.GET("/me", h.me)

	api.GET("/agents", h.listAgents)
	api.POST("/agents", h.registerAgent)
	api.PATCH("/agents/:id", h.updateAgent)
	api.DELETE("/agents/:id", h.deleteAgent)

	api.GET("/teams", h.listTeams)
	api.POST("/teams", h.createTeam)
	api.PATCH("/teams/:id", h.renameTeam)
	api.DELETE("/teams/:id", h.deleteTeam)

	api.GET("/inboxes", h.listInboxes)
	api.POST("/inboxes", h.createInbox)
	api.PATCH("/inboxes/:id", h.renameInbox)
	api.DELETE("/inboxes/:id", h.deleteInbox)

	api.GET("/canned-replies", h.listCannedReplies)
	api.POST("/canned-replies", h.createCannedReply)
	api.PATCH("/canned-replies/:id", h.updateCannedReply)
	api.DELETE("/canned-replies/:id", h.deleteCannedReply)

	api.GET("/settings", h.getSettings)
	api.PUT("/settings", h.updateSettings)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) tenantID(c *gin.Context) string {
	return c.GetString(httpmw.ContextTenantID)
}

// widgetBootstrap returns the branding the embeddable widget needs before
// joining a session.
func (h *Handler) widgetBootstrap(c *gin.Context) {
	tenant := c.Query("tenantId")
	if tenant == "" {
		tenant = h.defaultTenant
	}
	settings, err := h.dir.GetTenantSettings(c.Request.Context(), tenant)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenantId":       tenant,
		"brandName":      settings.BrandName,
		"brandColor":     settings.BrandColor,
		"widgetGreeting": settings.WidgetGreeting,
	})
}

func (h *Handler) me(c *gin.Context) {
	agent, err := h.dir.GetAgent(c.Request.Context(), c.GetString(httpmw.ContextAgentID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *Handler) listAgents(c *gin.Context) {
	agents, err := h.dir.ListAgents(c.Request.Context(), h.tenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

type registerAgentRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Role  string `json:"role"`
}

func (h *Handler) registerAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
		return
	}
	agent, token, err := h.dir.RegisterAgent(c.Request.Context(), &service.RegisterAgentRequest{
		TenantID: h.tenantID(c),
		Name:     req.Name,
		Email:    req.Email,
		Role:     models.AgentRole(req.Role),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"agent": agent, "token": token.Token})
}

type updateAgentRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

func (h *Handler) updateAgent(c *gin.Context) {
	var req updateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent body"})
		return
	}
	patch := &service.UpdateAgentRequest{Name: req.Name, Email: req.Email}
	if req.Role != nil {
		role := models.AgentRole(*req.Role)
		patch.Role = &role
	}
	agent, err := h.dir.UpdateAgent(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *Handler) deleteAgent(c *gin.Context) {
	if err := h.dir.DeleteAgent(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) listTeams(c *gin.Context) {
	teams, err := h.dir.ListTeams(c.Request.Context(), h.tenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

func (h *Handler) createTeam(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	team, err := h.dir.CreateTeam(c.Request.Context(), h.tenantID(c), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (h *Handler) renameTeam(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	team, err := h.dir.RenameTeam(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *Handler) deleteTeam(c *gin.Context) {
	if err := h.dir.DeleteTeam(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listInboxes(c *gin.Context) {
	inboxes, err := h.dir.ListInboxes(c.Request.Context(), h.tenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inboxes": inboxes})
}

func (h *Handler) createInbox(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	inbox, err := h.dir.CreateInbox(c.Request.Context(), h.tenantID(c), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inbox)
}

func (h *Handler) renameInbox(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	inbox, err := h.dir.RenameInbox(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inbox)
}

func (h *Handler) deleteInbox(c *gin.Context) {
	if err := h.dir.DeleteInbox(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type cannedReplyRequest struct {
	ShortCode string `json:"shortCode" binding:"required"`
	Title     string `json:"title" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

func (h *Handler) listCannedReplies(c *gin.Context) {
	replies, err := h.dir.ListCannedReplies(c.Request.Context(), h.tenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cannedReplies": replies})
}

func (h *Handler) createCannedReply(c *gin.Context) {
	var req cannedReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shortCode, title, and text are required"})
		return
	}
	reply, err := h.dir.CreateCannedReply(c.Request.Context(), h.tenantID(c), &service.CannedReplyRequest{
		ShortCode: req.ShortCode,
		Title:     req.Title,
		Text:      req.Text,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (h *Handler) updateCannedReply(c *gin.Context) {
	var req cannedReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shortCode, title, and text are required"})
		return
	}
	reply, err := h.dir.UpdateCannedReply(c.Request.Context(), c.Param("id"), &service.CannedReplyRequest{
		ShortCode: req.ShortCode,
		Title:     req.Title,
		Text:      req.Text,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) deleteCannedReply(c *gin.Context) {
	if err := h.dir.DeleteCannedReply(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getSettings(c *gin.Context) {
	settings, err := h.dir.GetTenantSettings(c.Request.Context(), h.tenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

type settingsRequest struct {
	BrandName      string `json:"brandName"`
	BrandColor     string `json:"brandColor"`
	WidgetGreeting string `json:"widgetGreeting"`
}

func (h *Handler) updateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings body"})
		return
	}
	settings := &models.TenantSettings{
		TenantID:       h.tenantID(c),
		BrandName:      req.BrandName,
		BrandColor:     req.BrandColor,
		WidgetGreeting: req.WidgetGreeting,
	}
	if err := h.dir.UpdateTenantSettings(c.Request.Context(), settings); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

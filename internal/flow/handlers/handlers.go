// Package handlers exposes flow CRUD to the agent dashboard.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/httpmw"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/flow/models"
	"github.com/driftline/driftline/internal/flow/service"
)

// Handler serves the flow administration endpoints.
type Handler struct {
	flows  *service.Service
	logger *logger.Logger
}

// NewHandler creates the flow handler.
func NewHandler(flows *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		flows:  flows,
		logger: log.WithFields(zap.String("component", "flow-api")),
	}
}

// RegisterRoutes mounts the flow endpoints; the group must carry the
// AgentAuth middleware.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/flows", h.listFlows)
	api.POST("/flows", h.createFlow)
	api.GET("/flows/:id", h.getFlow)
	api.PUT("/flows/:id", h.updateFlow)
	api.DELETE("/flows/:id", h.deleteFlow)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
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

func (h *Handler) listFlows(c *gin.Context) {
	enabledOnly, _ := strconv.ParseBool(c.Query("enabled"))
	flows, err := h.flows.ListFlows(c.Request.Context(), h.tenantID(c), enabledOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flows": flows})
}

func (h *Handler) createFlow(c *gin.Context) {
	var flow models.Flow
	if err := c.ShouldBindJSON(&flow); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flow body"})
		return
	}
	flow.TenantID = h.tenantID(c)
	created, err := h.flows.CreateFlow(c.Request.Context(), &flow)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) getFlow(c *gin.Context) {
	flow, err := h.flows.GetFlow(c.Request.Context(), h.tenantID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (h *Handler) updateFlow(c *gin.Context) {
	var flow models.Flow
	if err := c.ShouldBindJSON(&flow); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flow body"})
		return
	}
	flow.ID = c.Param("id")
	flow.TenantID = h.tenantID(c)
	updated, err := h.flows.UpdateFlow(c.Request.Context(), &flow)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteFlow(c *gin.Context) {
	if err := h.flows.DeleteFlow(c.Request.Context(), h.tenantID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

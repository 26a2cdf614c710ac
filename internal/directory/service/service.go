// Package service implements the directory business rules: tenant and agent
// management, bearer-token auth, teams, inboxes, canned replies, and widget
// branding.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/directory/models"
	"github.com/driftline/driftline/internal/directory/repository"
)

// Service provides directory business logic
type Service struct {
	repo   repository.Repository
	logger *logger.Logger
}

// NewService creates a new directory service
func NewService(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log.WithFields(zap.String("component", "directory-service")),
	}
}

// Tenant operations

// CreateTenant creates a tenant with the given display name
func (s *Service) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("tenant name is required")
	}
	tenant := &models.Tenant{Name: name}
	if err := s.repo.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	s.logger.Info("tenant created", zap.String("tenant_id", tenant.ID))
	return tenant, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	return s.repo.GetTenant(ctx, id)
}

// ListTenants returns all tenants
func (s *Service) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	return s.repo.ListTenants(ctx)
}

// RenameTenant updates a tenant's display name
func (s *Service) RenameTenant(ctx context.Context, id, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("tenant name is required")
	}
	tenant, err := s.repo.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	tenant.Name = name
	if err := s.repo.UpdateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Agent operations

// RegisterAgentRequest carries the fields for agent registration
type RegisterAgentRequest struct {
	TenantID string
	Name     string
	Email    string
	Role     models.AgentRole
}

// RegisterAgent creates an agent and mints its first bearer token.
// A duplicate email within the tenant is a conflict.
func (s *Service) RegisterAgent(ctx context.Context, req *RegisterAgentRequest) (*models.Agent, *models.AuthToken, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.TenantID == "" {
		return nil, nil, apperr.Validationf("tenant_id is required")
	}
	if req.Name == "" || req.Email == "" {
		return nil, nil, apperr.Validationf("name and email are required")
	}
	if _, err := s.repo.GetTenant(ctx, req.TenantID); err != nil {
		return nil, nil, err
	}

	agent := &models.Agent{
		TenantID: req.TenantID,
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
	}
	if err := s.repo.CreateAgent(ctx, agent); err != nil {
		return nil, nil, err
	}

	token := &models.AuthToken{AgentID: agent.ID, TenantID: agent.TenantID}
	if err := s.repo.CreateAuthToken(ctx, token); err != nil {
		return nil, nil, err
	}

	s.logger.Info("agent registered",
		zap.String("agent_id", agent.ID),
		zap.String("tenant_id", agent.TenantID))
	return agent, token, nil
}

// GetAgent retrieves an agent by ID
func (s *Service) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	return s.repo.GetAgent(ctx, id)
}

// ListAgents returns all agents for a tenant
func (s *Service) ListAgents(ctx context.Context, tenantID string) ([]*models.Agent, error) {
	return s.repo.ListAgents(ctx, tenantID)
}

// UpdateAgentRequest carries optional agent fields to patch
type UpdateAgentRequest struct {
	Name  *string
	Email *string
	Role  *models.AgentRole
}

// UpdateAgent patches an agent
func (s *Service) UpdateAgent(ctx context.Context, id string, req *UpdateAgentRequest) (*models.Agent, error) {
	agent, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		agent.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		agent.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		agent.Role = *req.Role
	}
	if agent.Name == "" || agent.Email == "" {
		return nil, apperr.Validationf("name and email are required")
	}
	if err := s.repo.UpdateAgent(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// DeleteAgent removes an agent and revokes its tokens
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	if err := s.repo.DeleteAuthTokensByAgent(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteAgent(ctx, id)
}

// Auth token operations

// IssueToken mints a new bearer token for an agent
func (s *Service) IssueToken(ctx context.Context, agentID string) (*models.AuthToken, error) {
	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	token := &models.AuthToken{AgentID: agent.ID, TenantID: agent.TenantID}
	if err := s.repo.CreateAuthToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// RevokeToken deletes a bearer token
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	return s.repo.DeleteAuthToken(ctx, token)
}

// ResolveToken maps a bearer token to (agent_id, tenant_id). An unknown or
// expired token is an unauthorized error.
func (s *Service) ResolveToken(ctx context.Context, token string) (string, string, error) {
	if token == "" {
		return "", "", apperr.Unauthorizedf("missing token")
	}
	rec, err := s.repo.GetAuthToken(ctx, token)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", "", apperr.Unauthorizedf("invalid token")
		}
		return "", "", err
	}
	if rec.Expired(time.Now().UTC()) {
		return "", "", apperr.Unauthorizedf("token expired")
	}
	return rec.AgentID, rec.TenantID, nil
}

// Team operations

// CreateTeam creates a team within a tenant
func (s *Service) CreateTeam(ctx context.Context, tenantID, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("team name is required")
	}
	team := &models.Team{TenantID: tenantID, Name: name}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// GetTeam retrieves a team by ID
func (s *Service) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	return s.repo.GetTeam(ctx, id)
}

// ListTeams returns all teams for a tenant
func (s *Service) ListTeams(ctx context.Context, tenantID string) ([]*models.Team, error) {
	return s.repo.ListTeams(ctx, tenantID)
}

// RenameTeam updates a team's name
func (s *Service) RenameTeam(ctx context.Context, id, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("team name is required")
	}
	team, err := s.repo.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	team.Name = name
	if err := s.repo.UpdateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// DeleteTeam removes a team
func (s *Service) DeleteTeam(ctx context.Context, id string) error {
	return s.repo.DeleteTeam(ctx, id)
}

// Inbox operations

// CreateInbox creates an inbox within a tenant
func (s *Service) CreateInbox(ctx context.Context, tenantID, name string) (*models.Inbox, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("inbox name is required")
	}
	inbox := &models.Inbox{TenantID: tenantID, Name: name}
	if err := s.repo.CreateInbox(ctx, inbox); err != nil {
		return nil, err
	}
	return inbox, nil
}

// GetInbox retrieves an inbox by ID
func (s *Service) GetInbox(ctx context.Context, id string) (*models.Inbox, error) {
	return s.repo.GetInbox(ctx, id)
}

// ListInboxes returns all inboxes for a tenant
func (s *Service) ListInboxes(ctx context.Context, tenantID string) ([]*models.Inbox, error) {
	return s.repo.ListInboxes(ctx, tenantID)
}

// RenameInbox updates an inbox's name
func (s *Service) RenameInbox(ctx context.Context, id, name string) (*models.Inbox, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("inbox name is required")
	}
	inbox, err := s.repo.GetInbox(ctx, id)
	if err != nil {
		return nil, err
	}
	inbox.Name = name
	if err := s.repo.UpdateInbox(ctx, inbox); err != nil {
		return nil, err
	}
	return inbox, nil
}

// DeleteInbox removes an inbox
func (s *Service) DeleteInbox(ctx context.Context, id string) error {
	return s.repo.DeleteInbox(ctx, id)
}

// Canned reply operations

// CannedReplyRequest carries the fields for creating or updating a canned reply
type CannedReplyRequest struct {
	ShortCode string
	Title     string
	Text      string
}

// CreateCannedReply creates a canned reply within a tenant
func (s *Service) CreateCannedReply(ctx context.Context, tenantID string, req *CannedReplyRequest) (*models.CannedReply, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Text = strings.TrimSpace(req.Text)
	if req.Title == "" || req.Text == "" {
		return nil, apperr.Validationf("title and text are required")
	}
	reply := &models.CannedReply{
		TenantID:  tenantID,
		ShortCode: strings.TrimSpace(req.ShortCode),
		Title:     req.Title,
		Text:      req.Text,
	}
	if err := s.repo.CreateCannedReply(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// ListCannedReplies returns all canned replies for a tenant
func (s *Service) ListCannedReplies(ctx context.Context, tenantID string) ([]*models.CannedReply, error) {
	return s.repo.ListCannedReplies(ctx, tenantID)
}

// UpdateCannedReply replaces the editable fields of a canned reply
func (s *Service) UpdateCannedReply(ctx context.Context, id string, req *CannedReplyRequest) (*models.CannedReply, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Text = strings.TrimSpace(req.Text)
	if req.Title == "" || req.Text == "" {
		return nil, apperr.Validationf("title and text are required")
	}
	reply, err := s.repo.GetCannedReply(ctx, id)
	if err != nil {
		return nil, err
	}
	reply.ShortCode = strings.TrimSpace(req.ShortCode)
	reply.Title = req.Title
	reply.Text = req.Text
	if err := s.repo.UpdateCannedReply(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// DeleteCannedReply removes a canned reply
func (s *Service) DeleteCannedReply(ctx context.Context, id string) error {
	return s.repo.DeleteCannedReply(ctx, id)
}

// Tenant settings operations

// GetTenantSettings returns the widget branding for a tenant, falling back
// to empty defaults when none were saved.
func (s *Service) GetTenantSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	settings, err := s.repo.GetTenantSettings(ctx, tenantID)
	if apperr.IsNotFound(err) {
		return &models.TenantSettings{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateTenantSettings replaces the widget branding for a tenant
func (s *Service) UpdateTenantSettings(ctx context.Context, settings *models.TenantSettings) error {
	if settings.TenantID == "" {
		return apperr.Validationf("tenant_id is required")
	}
	if _, err := s.repo.GetTenant(ctx, settings.TenantID); err != nil {
		return err
	}
	return s.repo.UpsertTenantSettings(ctx, settings)
}

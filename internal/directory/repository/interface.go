package repository

import (
	"context"

	"github.com/driftline/driftline/internal/directory/models"
)

// Repository defines the interface for directory storage operations
type Repository interface {
	// Tenant operations
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	ListTenants(ctx context.Context) ([]*models.Tenant, error)

	// Agent operations
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetAgentByEmail(ctx context.Context, tenantID, email string) (*models.Agent, error)
	UpdateAgent(ctx context.Context, agent *models.Agent) error
	DeleteAgent(ctx context.Context, id string) error
	ListAgents(ctx context.Context, tenantID string) ([]*models.Agent, error)

	// Auth token operations
	CreateAuthToken(ctx context.Context, token *models.AuthToken) error
	GetAuthToken(ctx context.Context, token string) (*models.AuthToken, error)
	DeleteAuthToken(ctx context.Context, token string) error
	DeleteAuthTokensByAgent(ctx context.Context, agentID string) error

	// Team operations
	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error
	DeleteTeam(ctx context.Context, id string) error
	ListTeams(ctx context.Context, tenantID string) ([]*models.Team, error)

	// Inbox operations
	CreateInbox(ctx context.Context, inbox *models.Inbox) error
	GetInbox(ctx context.Context, id string) (*models.Inbox, error)
	UpdateInbox(ctx context.Context, inbox *models.Inbox) error
	DeleteInbox(ctx context.Context, id string) error
	ListInboxes(ctx context.Context, tenantID string) ([]*models.Inbox, error)

	// Canned reply operations
	CreateCannedReply(ctx context.Context, reply *models.CannedReply) error
	GetCannedReply(ctx context.Context, id string) (*models.CannedReply, error)
	UpdateCannedReply(ctx context.Context, reply *models.CannedReply) error
	DeleteCannedReply(ctx context.Context, id string) error
	ListCannedReplies(ctx context.Context, tenantID string) ([]*models.CannedReply, error)

	// Tenant settings operations
	GetTenantSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error)
	UpsertTenantSettings(ctx context.Context, settings *models.TenantSettings) error

	// Close closes the repository (for database connections)
	Close() error
}

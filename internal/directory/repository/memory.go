package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/directory/models"
)

// MemoryRepository provides in-memory directory storage operations
type MemoryRepository struct {
	tenants  map[string]*models.Tenant
	agents   map[string]*models.Agent
	tokens   map[string]*models.AuthToken
	teams    map[string]*models.Team
	inboxes  map[string]*models.Inbox
	replies  map[string]*models.CannedReply
	settings map[string]*models.TenantSettings
	mu       sync.RWMutex
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a new in-memory directory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants:  make(map[string]*models.Tenant),
		agents:   make(map[string]*models.Agent),
		tokens:   make(map[string]*models.AuthToken),
		teams:    make(map[string]*models.Team),
		inboxes:  make(map[string]*models.Inbox),
		replies:  make(map[string]*models.CannedReply),
		settings: make(map[string]*models.TenantSettings),
	}
}

// Close is a no-op for in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}

// Tenant operations

func (r *MemoryRepository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *MemoryRepository) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenant, ok := r.tenants[id]
	if !ok {
		return nil, apperr.NotFoundf("tenant not found: %s", id)
	}
	return tenant, nil
}

func (r *MemoryRepository) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[tenant.ID]; !ok {
		return apperr.NotFoundf("tenant not found: %s", tenant.ID)
	}
	tenant.UpdatedAt = time.Now().UTC()
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *MemoryRepository) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Tenant, 0, len(r.tenants))
	for _, tenant := range r.tenants {
		result = append(result, tenant)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Agent operations

func (r *MemoryRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.agents {
		if existing.TenantID == agent.TenantID && existing.Email == agent.Email {
			return apperr.Conflictf("agent email already registered: %s", agent.Email)
		}
	}

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if agent.Role == "" {
		agent.Role = models.RoleAgent
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	r.agents[agent.ID] = agent
	return nil
}

func (r *MemoryRepository) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, apperr.NotFoundf("agent not found: %s", id)
	}
	return agent, nil
}

func (r *MemoryRepository) GetAgentByEmail(ctx context.Context, tenantID, email string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, agent := range r.agents {
		if agent.TenantID == tenantID && agent.Email == email {
			return agent, nil
		}
	}
	return nil, apperr.NotFoundf("agent not found: %s", email)
}

func (r *MemoryRepository) UpdateAgent(ctx context.Context, agent *models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agent.ID]; !ok {
		return apperr.NotFoundf("agent not found: %s", agent.ID)
	}
	for _, existing := range r.agents {
		if existing.ID != agent.ID && existing.TenantID == agent.TenantID && existing.Email == agent.Email {
			return apperr.Conflictf("agent email already registered: %s", agent.Email)
		}
	}
	agent.UpdatedAt = time.Now().UTC()
	r.agents[agent.ID] = agent
	return nil
}

func (r *MemoryRepository) DeleteAgent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return apperr.NotFoundf("agent not found: %s", id)
	}
	delete(r.agents, id)
	return nil
}

func (r *MemoryRepository) ListAgents(ctx context.Context, tenantID string) ([]*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Agent
	for _, agent := range r.agents {
		if agent.TenantID == tenantID {
			result = append(result, agent)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Auth token operations

func (r *MemoryRepository) CreateAuthToken(ctx context.Context, token *models.AuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token.Token == "" {
		token.Token = uuid.New().String()
	}
	token.CreatedAt = time.Now().UTC()
	r.tokens[token.Token] = token
	return nil
}

func (r *MemoryRepository) GetAuthToken(ctx context.Context, token string) (*models.AuthToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tokens[token]
	if !ok {
		return nil, apperr.NotFoundf("token not found")
	}
	return rec, nil
}

func (r *MemoryRepository) DeleteAuthToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; !ok {
		return apperr.NotFoundf("token not found")
	}
	delete(r.tokens, token)
	return nil
}

func (r *MemoryRepository) DeleteAuthTokensByAgent(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, rec := range r.tokens {
		if rec.AgentID == agentID {
			delete(r.tokens, token)
		}
	}
	return nil
}

// Team operations

func (r *MemoryRepository) CreateTeam(ctx context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now

	r.teams[team.ID] = team
	return nil
}

func (r *MemoryRepository) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	team, ok := r.teams[id]
	if !ok {
		return nil, apperr.NotFoundf("team not found: %s", id)
	}
	return team, nil
}

func (r *MemoryRepository) UpdateTeam(ctx context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.teams[team.ID]; !ok {
		return apperr.NotFoundf("team not found: %s", team.ID)
	}
	team.UpdatedAt = time.Now().UTC()
	r.teams[team.ID] = team
	return nil
}

func (r *MemoryRepository) DeleteTeam(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.teams[id]; !ok {
		return apperr.NotFoundf("team not found: %s", id)
	}
	delete(r.teams, id)
	return nil
}

func (r *MemoryRepository) ListTeams(ctx context.Context, tenantID string) ([]*models.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Team
	for _, team := range r.teams {
		if team.TenantID == tenantID {
			result = append(result, team)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Inbox operations

func (r *MemoryRepository) CreateInbox(ctx context.Context, inbox *models.Inbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inbox.ID == "" {
		inbox.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	inbox.CreatedAt = now
	inbox.UpdatedAt = now

	r.inboxes[inbox.ID] = inbox
	return nil
}

func (r *MemoryRepository) GetInbox(ctx context.Context, id string) (*models.Inbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inbox, ok := r.inboxes[id]
	if !ok {
		return nil, apperr.NotFoundf("inbox not found: %s", id)
	}
	return inbox, nil
}

func (r *MemoryRepository) UpdateInbox(ctx context.Context, inbox *models.Inbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.inboxes[inbox.ID]; !ok {
		return apperr.NotFoundf("inbox not found: %s", inbox.ID)
	}
	inbox.UpdatedAt = time.Now().UTC()
	r.inboxes[inbox.ID] = inbox
	return nil
}

func (r *MemoryRepository) DeleteInbox(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.inboxes[id]; !ok {
		return apperr.NotFoundf("inbox not found: %s", id)
	}
	delete(r.inboxes, id)
	return nil
}

func (r *MemoryRepository) ListInboxes(ctx context.Context, tenantID string) ([]*models.Inbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Inbox
	for _, inbox := range r.inboxes {
		if inbox.TenantID == tenantID {
			result = append(result, inbox)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Canned reply operations

func (r *MemoryRepository) CreateCannedReply(ctx context.Context, reply *models.CannedReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	reply.CreatedAt = now
	reply.UpdatedAt = now

	r.replies[reply.ID] = reply
	return nil
}

func (r *MemoryRepository) GetCannedReply(ctx context.Context, id string) (*models.CannedReply, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reply, ok := r.replies[id]
	if !ok {
		return nil, apperr.NotFoundf("canned reply not found: %s", id)
	}
	return reply, nil
}

func (r *MemoryRepository) UpdateCannedReply(ctx context.Context, reply *models.CannedReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.replies[reply.ID]; !ok {
		return apperr.NotFoundf("canned reply not found: %s", reply.ID)
	}
	reply.UpdatedAt = time.Now().UTC()
	r.replies[reply.ID] = reply
	return nil
}

func (r *MemoryRepository) DeleteCannedReply(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.replies[id]; !ok {
		return apperr.NotFoundf("canned reply not found: %s", id)
	}
	delete(r.replies, id)
	return nil
}

func (r *MemoryRepository) ListCannedReplies(ctx context.Context, tenantID string) ([]*models.CannedReply, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.CannedReply
	for _, reply := range r.replies {
		if reply.TenantID == tenantID {
			result = append(result, reply)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Title < result[j].Title })
	return result, nil
}

// Tenant settings operations

func (r *MemoryRepository) GetTenantSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	settings, ok := r.settings[tenantID]
	if !ok {
		return nil, apperr.NotFoundf("tenant settings not found: %s", tenantID)
	}
	return settings, nil
}

func (r *MemoryRepository) UpsertTenantSettings(ctx context.Context, settings *models.TenantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings.UpdatedAt = time.Now().UTC()
	r.settings[settings.TenantID] = settings
	return nil
}

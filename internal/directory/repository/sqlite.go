package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/db"
	"github.com/driftline/driftline/internal/db/dialect"
	"github.com/driftline/driftline/internal/directory/models"
)

// SQLRepository provides SQL-backed directory storage (SQLite or Postgres).
type SQLRepository struct {
	db *sqlx.DB // writer
	ro *sqlx.DB // reader
}

// NewSQLRepository creates a directory repository on a shared pool and
// initializes the schema.
func NewSQLRepository(pool *db.Pool) (*SQLRepository, error) {
	repo := &SQLRepository{db: pool.Writer(), ro: pool.Reader()}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize directory schema: %w", err)
	}
	return repo, nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *SQLRepository) Close() error {
	return nil
}

// initSchema creates the directory tables if they don't exist
func (r *SQLRepository) initSchema() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'agent',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE,
		UNIQUE(tenant_id, email)
	);

	CREATE TABLE IF NOT EXISTS auth_tokens (
		token TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP,
		FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS inboxes (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS canned_replies (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		short_code TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tenant_settings (
		tenant_id TEXT PRIMARY KEY,
		brand_name TEXT NOT NULL DEFAULT '',
		brand_color TEXT NOT NULL DEFAULT '',
		widget_greeting TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_agents_tenant_id ON agents(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_auth_tokens_agent_id ON auth_tokens(agent_id);
	CREATE INDEX IF NOT EXISTS idx_teams_tenant_id ON teams(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_inboxes_tenant_id ON inboxes(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_canned_replies_tenant_id ON canned_replies(tenant_id);
	`)
	return err
}

// isUniqueViolation reports whether err is a unique-constraint error from
// either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// Tenant operations

// CreateTenant creates a new tenant
func (r *SQLRepository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO tenants (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`), tenant.ID, tenant.Name, tenant.CreatedAt, tenant.UpdatedAt)
	return err
}

// GetTenant retrieves a tenant by ID
func (r *SQLRepository) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT id, name, created_at, updated_at FROM tenants WHERE id = ?
	`), id).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("tenant not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// UpdateTenant updates an existing tenant
func (r *SQLRepository) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE tenants SET name = ?, updated_at = ? WHERE id = ?
	`), tenant.Name, tenant.UpdatedAt, tenant.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("tenant not found: %s", tenant.ID)
	}
	return nil
}

// ListTenants returns all tenants
func (r *SQLRepository) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := r.ro.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM tenants ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, tenant)
	}
	return result, rows.Err()
}

// Agent operations

// CreateAgent creates a new agent
func (r *SQLRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if agent.Role == "" {
		agent.Role = models.RoleAgent
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO agents (id, tenant_id, name, email, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), agent.ID, agent.TenantID, agent.Name, agent.Email, agent.Role, agent.CreatedAt, agent.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflictf("agent email already registered: %s", agent.Email)
	}
	return err
}

// GetAgent retrieves an agent by ID
func (r *SQLRepository) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	agent := &models.Agent{}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, email, role, created_at, updated_at
		FROM agents WHERE id = ?
	`), id).Scan(&agent.ID, &agent.TenantID, &agent.Name, &agent.Email, &agent.Role, &agent.CreatedAt, &agent.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("agent not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// GetAgentByEmail retrieves an agent by tenant and email
func (r *SQLRepository) GetAgentByEmail(ctx context.Context, tenantID, email string) (*models.Agent, error) {
	agent := &models.Agent{}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, email, role, created_at, updated_at
		FROM agents WHERE tenant_id = ? AND email = ?
	`), tenantID, email).Scan(&agent.ID, &agent.TenantID, &agent.Name, &agent.Email, &agent.Role, &agent.CreatedAt, &agent.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("agent not found: %s", email)
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// UpdateAgent updates an existing agent
func (r *SQLRepository) UpdateAgent(ctx context.Context, agent *models.Agent) error {
	agent.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE agents SET name = ?, email = ?, role = ?, updated_at = ? WHERE id = ?
	`), agent.Name, agent.Email, agent.Role, agent.UpdatedAt, agent.ID)
	if isUniqueViolation(err) {
		return apperr.Conflictf("agent email already registered: %s", agent.Email)
	}
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("agent not found: %s", agent.ID)
	}
	return nil
}

// DeleteAgent deletes an agent by ID
func (r *SQLRepository) DeleteAgent(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM agents WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("agent not found: %s", id)
	}
	return nil
}

// ListAgents returns all agents for a tenant
func (r *SQLRepository) ListAgents(ctx context.Context, tenantID string) ([]*models.Agent, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, email, role, created_at, updated_at
		FROM agents WHERE tenant_id = ? ORDER BY created_at
	`), tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Agent
	for rows.Next() {
		agent := &models.Agent{}
		if err := rows.Scan(&agent.ID, &agent.TenantID, &agent.Name, &agent.Email, &agent.Role, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, agent)
	}
	return result, rows.Err()
}

// Auth token operations

// CreateAuthToken stores a bearer token for an agent
func (r *SQLRepository) CreateAuthToken(ctx context.Context, token *models.AuthToken) error {
	if token.Token == "" {
		token.Token = uuid.New().String()
	}
	token.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO auth_tokens (token, agent_id, tenant_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`), token.Token, token.AgentID, token.TenantID, token.CreatedAt, token.ExpiresAt)
	return err
}

// GetAuthToken retrieves a token record by its opaque value
func (r *SQLRepository) GetAuthToken(ctx context.Context, token string) (*models.AuthToken, error) {
	rec := &models.AuthToken{}
	var expiresAt sql.NullTime
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT token, agent_id, tenant_id, created_at, expires_at
		FROM auth_tokens WHERE token = ?
	`), token).Scan(&rec.Token, &rec.AgentID, &rec.TenantID, &rec.CreatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("token not found")
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		rec.ExpiresAt = &expiresAt.Time
	}
	return rec, nil
}

// DeleteAuthToken removes a token
func (r *SQLRepository) DeleteAuthToken(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM auth_tokens WHERE token = ?`), token)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("token not found")
	}
	return nil
}

// DeleteAuthTokensByAgent removes all tokens issued to an agent
func (r *SQLRepository) DeleteAuthTokensByAgent(ctx context.Context, agentID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM auth_tokens WHERE agent_id = ?`), agentID)
	return err
}

// Team operations

// CreateTeam creates a new team
func (r *SQLRepository) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO teams (id, tenant_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), team.ID, team.TenantID, team.Name, team.CreatedAt, team.UpdatedAt)
	return err
}

// GetTeam retrieves a team by ID
func (r *SQLRepository) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	team := &models.Team{}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, created_at, updated_at FROM teams WHERE id = ?
	`), id).Scan(&team.ID, &team.TenantID, &team.Name, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("team not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

// UpdateTeam updates an existing team
func (r *SQLRepository) UpdateTeam(ctx context.Context, team *models.Team) error {
	team.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE teams SET name = ?, updated_at = ? WHERE id = ?
	`), team.Name, team.UpdatedAt, team.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("team not found: %s", team.ID)
	}
	return nil
}

// DeleteTeam deletes a team by ID
func (r *SQLRepository) DeleteTeam(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM teams WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("team not found: %s", id)
	}
	return nil
}

// ListTeams returns all teams for a tenant
func (r *SQLRepository) ListTeams(ctx context.Context, tenantID string) ([]*models.Team, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, created_at, updated_at
		FROM teams WHERE tenant_id = ? ORDER BY name
	`), tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Team
	for rows.Next() {
		team := &models.Team{}
		if err := rows.Scan(&team.ID, &team.TenantID, &team.Name, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, team)
	}
	return result, rows.Err()
}

// Inbox operations

// CreateInbox creates a new inbox
func (r *SQLRepository) CreateInbox(ctx context.Context, inbox *models.Inbox) error {
	if inbox.ID == "" {
		inbox.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	inbox.CreatedAt = now
	inbox.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO inboxes (id, tenant_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), inbox.ID, inbox.TenantID, inbox.Name, inbox.CreatedAt, inbox.UpdatedAt)
	return err
}

// GetInbox retrieves an inbox by ID
func (r *SQLRepository) GetInbox(ctx context.Context, id string) (*models.Inbox, error) {
	inbox := &models.Inbox{}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, created_at, updated_at FROM inboxes WHERE id = ?
	`), id).Scan(&inbox.ID, &inbox.TenantID, &inbox.Name, &inbox.CreatedAt, &inbox.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("inbox not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return inbox, nil
}

// UpdateInbox updates an existing inbox
func (r *SQLRepository) UpdateInbox(ctx context.Context, inbox *models.Inbox) error {
	inbox.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE inboxes SET name = ?, updated_at = ? WHERE id = ?
	`), inbox.Name, inbox.UpdatedAt, inbox.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("inbox not found: %s", inbox.ID)
	}
	return nil
}

// DeleteInbox deletes an inbox by ID
func (r *SQLRepository) DeleteInbox(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM inboxes WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("inbox not found: %s", id)
	}
	return nil
}

// ListInboxes returns all inboxes for a tenant
func (r *SQLRepository) ListInboxes(ctx context.Context, tenantID string) ([]*models.Inbox, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, created_at, updated_at
		FROM inboxes WHERE tenant_id = ? ORDER BY name
	`), tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Inbox
	for rows.Next() {
		inbox := &models.Inbox{}
		if err := rows.Scan(&inbox.ID, &inbox.TenantID, &inbox.Name, &inbox.CreatedAt, &inbox.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, inbox)
	}
	return result, rows.Err()
}

// Canned reply operations

// CreateCannedReply creates a new canned reply
func (r *SQLRepository) CreateCannedReply(ctx context.Context, reply *models.CannedReply) error {
	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	reply.CreatedAt = now
	reply.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO canned_replies (id, tenant_id, short_code, title, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), reply.ID, reply.TenantID, reply.ShortCode, reply.Title, reply.Text, reply.CreatedAt, reply.UpdatedAt)
	return err
}

// GetCannedReply retrieves a canned reply by ID
func (r *SQLRepository) GetCannedReply(ctx context.Context, id string) (*models.CannedReply, error) {
	reply := &models.CannedReply{}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, short_code, title, text, created_at, updated_at
		FROM canned_replies WHERE id = ?
	`), id).Scan(&reply.ID, &reply.TenantID, &reply.ShortCode, &reply.Title, &reply.Text, &reply.CreatedAt, &reply.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("canned reply not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// UpdateCannedReply updates an existing canned reply
func (r *SQLRepository) UpdateCannedReply(ctx context.Context, reply *models.CannedReply) error {
	reply.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE canned_replies SET short_code = ?, title = ?, text = ?, updated_at = ? WHERE id = ?
	`), reply.ShortCode, reply.Title, reply.Text, reply.UpdatedAt, reply.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("canned reply not found: %s", reply.ID)
	}
	return nil
}

// DeleteCannedReply deletes a canned reply by ID
func (r *SQLRepository) DeleteCannedReply(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM canned_replies WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("canned reply not found: %s", id)
	}
	return nil
}

// ListCannedReplies returns all canned replies for a tenant
func (r *SQLRepository) ListCannedReplies(ctx context.Context, tenantID string) ([]*models.CannedReply, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, short_code, title, text, created_at, updated_at
		FROM canned_replies WHERE tenant_id = ? ORDER BY title
	`), tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.CannedReply
	for rows.Next() {
		reply := &models.CannedReply{}
		if err := rows.Scan(&reply.ID, &reply.TenantID, &reply.ShortCode, &reply.Title, &reply.Text, &reply.CreatedAt, &reply.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, reply)
	}
	return result, rows.Err()
}

// Tenant settings operations

// GetTenantSettings retrieves widget settings for a tenant
func (r *SQLRepository) GetTenantSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	settings := &models.TenantSettings{}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT tenant_id, brand_name, brand_color, widget_greeting, updated_at
		FROM tenant_settings WHERE tenant_id = ?
	`), tenantID).Scan(&settings.TenantID, &settings.BrandName, &settings.BrandColor, &settings.WidgetGreeting, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("tenant settings not found: %s", tenantID)
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpsertTenantSettings inserts or replaces widget settings for a tenant
func (r *SQLRepository) UpsertTenantSettings(ctx context.Context, settings *models.TenantSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO tenant_settings (tenant_id, brand_name, brand_color, widget_greeting, updated_at)
		VALUES (?, ?, ?, ?, ?)` +
		dialect.Upsert("tenant_id",
			"brand_name = excluded.brand_name, brand_color = excluded.brand_color, widget_greeting = excluded.widget_greeting, updated_at = excluded.updated_at")
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		settings.TenantID, settings.BrandName, settings.BrandColor, settings.WidgetGreeting, settings.UpdatedAt)
	return err
}

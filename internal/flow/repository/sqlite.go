package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/db"
	"github.com/driftline/driftline/internal/db/dialect"
	"github.com/driftline/driftline/internal/flow/models"
)

// SQLRepository provides SQL-backed flow storage (SQLite or Postgres).
// Node, edge, and input-variable lists are stored as JSON columns; the
// graph is always read and written whole.
type SQLRepository struct {
	db     *sqlx.DB // writer
	ro     *sqlx.DB // reader
	driver string
}

// Ensure SQLRepository implements Repository interface
var _ Repository = (*SQLRepository)(nil)

// NewSQLRepository creates a flow repository on a shared pool and
// initializes the schema.
func NewSQLRepository(pool *db.Pool) (*SQLRepository, error) {
	repo := &SQLRepository{db: pool.Writer(), ro: pool.Reader(), driver: pool.Driver()}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize flow schema: %w", err)
	}
	return repo, nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *SQLRepository) Close() error {
	return nil
}

func (r *SQLRepository) initSchema() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS flows (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		input_variables TEXT NOT NULL DEFAULT '[]',
		ai_tool INTEGER NOT NULL DEFAULT 0,
		ai_tool_description TEXT NOT NULL DEFAULT '',
		nodes TEXT NOT NULL DEFAULT '[]',
		edges TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS flow_cursors (
		tenant_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		flow_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		node_type TEXT NOT NULL,
		variables TEXT NOT NULL DEFAULT '{}',
		version INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (tenant_id, session_id)
	);

	CREATE TABLE IF NOT EXISTS flow_trigger_fires (
		session_id TEXT NOT NULL,
		trigger_key TEXT NOT NULL,
		fired_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, trigger_key)
	);

	CREATE INDEX IF NOT EXISTS idx_flows_tenant ON flows(tenant_id);
	`)
	return err
}

// Flow definitions

const flowColumns = `id, tenant_id, name, enabled, input_variables, ai_tool,
	ai_tool_description, nodes, edges, created_at, updated_at`

func scanFlow(row interface{ Scan(...any) error }) (*models.Flow, error) {
	f := &models.Flow{}
	var enabled, aiTool int
	var inputVars, nodes, edges string
	err := row.Scan(&f.ID, &f.TenantID, &f.Name, &enabled, &inputVars, &aiTool,
		&f.AIToolDescription, &nodes, &edges, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Enabled = enabled != 0
	f.AITool = aiTool != 0
	if err := json.Unmarshal([]byte(inputVars), &f.InputVariables); err != nil {
		return nil, fmt.Errorf("failed to decode flow input variables: %w", err)
	}
	if err := json.Unmarshal([]byte(nodes), &f.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode flow nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(edges), &f.Edges); err != nil {
		return nil, fmt.Errorf("failed to decode flow edges: %w", err)
	}
	return f, nil
}

func encodeFlow(f *models.Flow) (inputVars, nodes, edges string, err error) {
	iv, err := json.Marshal(orEmptyVars(f.InputVariables))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode flow input variables: %w", err)
	}
	n, err := json.Marshal(orEmptyNodes(f.Nodes))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode flow nodes: %w", err)
	}
	e, err := json.Marshal(orEmptyEdges(f.Edges))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode flow edges: %w", err)
	}
	return string(iv), string(n), string(e), nil
}

func orEmptyVars(v []models.InputVariable) []models.InputVariable {
	if v == nil {
		return []models.InputVariable{}
	}
	return v
}

func orEmptyNodes(v []models.Node) []models.Node {
	if v == nil {
		return []models.Node{}
	}
	return v
}

func orEmptyEdges(v []models.Edge) []models.Edge {
	if v == nil {
		return []models.Edge{}
	}
	return v
}

func (r *SQLRepository) CreateFlow(ctx context.Context, flow *models.Flow) error {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	flow.CreatedAt = now
	flow.UpdatedAt = now
	inputVars, nodes, edges, err := encodeFlow(flow)
	if err != nil {
		return err
	}
	query := r.db.Rebind(`INSERT INTO flows (` + flowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		flow.ID, flow.TenantID, flow.Name, dialect.BoolToInt(flow.Enabled),
		inputVars, dialect.BoolToInt(flow.AITool), flow.AIToolDescription,
		nodes, edges, flow.CreatedAt, flow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	query := r.ro.Rebind(`SELECT ` + flowColumns + ` FROM flows WHERE id = ?`)
	flow, err := scanFlow(r.ro.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("flow %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	return flow, nil
}

func (r *SQLRepository) UpdateFlow(ctx context.Context, flow *models.Flow) error {
	flow.UpdatedAt = time.Now().UTC()
	inputVars, nodes, edges, err := encodeFlow(flow)
	if err != nil {
		return err
	}
	query := r.db.Rebind(`UPDATE flows SET name = ?, enabled = ?, input_variables = ?,
		ai_tool = ?, ai_tool_description = ?, nodes = ?, edges = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		flow.Name, dialect.BoolToInt(flow.Enabled), inputVars,
		dialect.BoolToInt(flow.AITool), flow.AIToolDescription,
		nodes, edges, flow.UpdatedAt, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("flow %s not found", flow.ID)
	}
	return nil
}

func (r *SQLRepository) DeleteFlow(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM flows WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("flow %s not found", id)
	}
	return nil
}

func (r *SQLRepository) ListFlows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	return r.listFlows(ctx, tenantID, false)
}

func (r *SQLRepository) ListEnabledFlows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	return r.listFlows(ctx, tenantID, true)
}

func (r *SQLRepository) listFlows(ctx context.Context, tenantID string, enabledOnly bool) ([]*models.Flow, error) {
	q := `SELECT ` + flowColumns + ` FROM flows WHERE tenant_id = ?`
	if enabledOnly {
		q += ` AND enabled = 1`
	}
	q += ` ORDER BY created_at`
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(q), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var flows []*models.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// Execution cursors

func (r *SQLRepository) GetCursor(ctx context.Context, tenantID, sessionID string) (*models.FlowCursor, error) {
	query := r.ro.Rebind(`SELECT tenant_id, session_id, flow_id, node_id, node_type,
		variables, version, updated_at
		FROM flow_cursors WHERE tenant_id = ? AND session_id = ?`)
	c := &models.FlowCursor{}
	var variables string
	err := r.ro.QueryRowContext(ctx, query, tenantID, sessionID).Scan(
		&c.TenantID, &c.SessionID, &c.FlowID, &c.NodeID, &c.NodeType,
		&variables, &c.Version, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("no flow cursor for session %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow cursor: %w", err)
	}
	if err := json.Unmarshal([]byte(variables), &c.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode cursor variables: %w", err)
	}
	return c, nil
}

func (r *SQLRepository) PutCursor(ctx context.Context, cursor *models.FlowCursor) error {
	cursor.UpdatedAt = time.Now().UTC()
	vars := cursor.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	encoded, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("failed to encode cursor variables: %w", err)
	}
	query := r.db.Rebind(`INSERT INTO flow_cursors
		(tenant_id, session_id, flow_id, node_id, node_type, variables, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ` +
		dialect.Upsert("tenant_id, session_id",
			"flow_id = excluded.flow_id, node_id = excluded.node_id, "+
				"node_type = excluded.node_type, variables = excluded.variables, "+
				"version = excluded.version, updated_at = excluded.updated_at"))
	_, err = r.db.ExecContext(ctx, query,
		cursor.TenantID, cursor.SessionID, cursor.FlowID, cursor.NodeID,
		cursor.NodeType, string(encoded), cursor.Version, cursor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put flow cursor: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteCursor(ctx context.Context, tenantID, sessionID string) error {
	query := r.db.Rebind(`DELETE FROM flow_cursors WHERE tenant_id = ? AND session_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, tenantID, sessionID); err != nil {
		return fmt.Errorf("failed to delete flow cursor: %w", err)
	}
	return nil
}

// Trigger guards

func (r *SQLRepository) MarkTriggerFired(ctx context.Context, sessionID, trigger string) (bool, error) {
	query := r.db.Rebind(`INSERT INTO flow_trigger_fires
		(session_id, trigger_key, fired_at)
		VALUES (?, ?, ?) ` + dialect.InsertIgnore("session_id, trigger_key"))
	res, err := r.db.ExecContext(ctx, query, sessionID, trigger, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark trigger fired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark trigger fired: %w", err)
	}
	return n > 0, nil
}

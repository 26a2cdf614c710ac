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
	"github.com/driftline/driftline/internal/conversation/models"
	"github.com/driftline/driftline/internal/db"
	"github.com/driftline/driftline/internal/db/dialect"
)

// SQLRepository provides SQL-backed conversation storage (SQLite or Postgres).
type SQLRepository struct {
	db     *sqlx.DB // writer
	ro     *sqlx.DB // reader
	driver string
}

// Ensure SQLRepository implements Repository interface
var _ Repository = (*SQLRepository)(nil)

// NewSQLRepository creates a conversation repository on a shared pool and
// initializes the schema.
func NewSQLRepository(pool *db.Pool) (*SQLRepository, error) {
	repo := &SQLRepository{db: pool.Writer(), ro: pool.Reader(), driver: pool.Driver()}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize conversation schema: %w", err)
	}
	return repo, nil
}

// Close is a no-op; the pool is owned by the caller.
func (r *SQLRepository) Close() error {
	return nil
}

// initSchema creates the conversation tables if they don't exist
func (r *SQLRepository) initSchema() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		visitor_id TEXT NOT NULL DEFAULT '',
		contact_id TEXT NOT NULL DEFAULT '',
		channel TEXT NOT NULL DEFAULT 'widget',
		status TEXT NOT NULL DEFAULT 'open',
		priority TEXT NOT NULL DEFAULT 'normal',
		flow_id TEXT NOT NULL DEFAULT '',
		assignee_agent_id TEXT NOT NULL DEFAULT '',
		inbox_id TEXT NOT NULL DEFAULT '',
		team_id TEXT NOT NULL DEFAULT '',
		handover_active INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		suggestions TEXT NOT NULL DEFAULT '',
		widget TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contact_custom_attributes (
		contact_id TEXT NOT NULL,
		attribute_key TEXT NOT NULL,
		attribute_value TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (contact_id, attribute_key),
		FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS conversation_custom_attributes (
		session_id TEXT NOT NULL,
		attribute_key TEXT NOT NULL,
		attribute_value TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, attribute_key),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE (tenant_id, name)
	);

	CREATE TABLE IF NOT EXISTS conversation_tags (
		session_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (session_id, tag_id),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS conversation_notes (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS csat_surveys (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		submitted_at TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_tenant_updated ON sessions(tenant_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_visitor ON sessions(tenant_id, visitor_id);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_contacts_tenant ON contacts(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_csat_tenant ON csat_surveys(tenant_id);
	`)
	return err
}

// Session operations

const sessionColumns = `id, tenant_id, visitor_id, contact_id, channel, status, priority,
	flow_id, assignee_agent_id, inbox_id, team_id, handover_active, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	s := &models.Session{}
	var handover int
	err := row.Scan(&s.ID, &s.TenantID, &s.VisitorID, &s.ContactID, &s.Channel,
		&s.Status, &s.Priority, &s.FlowID, &s.AssigneeAgentID, &s.InboxID,
		&s.TeamID, &handover, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.HandoverActive = handover != 0
	return s, nil
}

// CreateSession persists a new session
func (r *SQLRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = models.StatusOpen
	}
	if session.Priority == "" {
		session.Priority = models.PriorityNormal
	}
	if session.Channel == "" {
		session.Channel = "widget"
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), session.ID, session.TenantID, session.VisitorID, session.ContactID,
		session.Channel, session.Status, session.Priority, session.FlowID,
		session.AssigneeAgentID, session.InboxID, session.TeamID,
		dialect.BoolToInt(session.HandoverActive), session.CreatedAt, session.UpdatedAt)
	return err
}

// GetSession retrieves a session by ID
func (r *SQLRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT `+sessionColumns+` FROM sessions WHERE id = ?
	`), id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("session not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession rewrites all mutable session fields
func (r *SQLRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sessions SET visitor_id = ?, contact_id = ?, channel = ?, status = ?,
			priority = ?, flow_id = ?, assignee_agent_id = ?, inbox_id = ?, team_id = ?,
			handover_active = ?, updated_at = ?
		WHERE id = ?
	`), session.VisitorID, session.ContactID, session.Channel, session.Status,
		session.Priority, session.FlowID, session.AssigneeAgentID, session.InboxID,
		session.TeamID, dialect.BoolToInt(session.HandoverActive), session.UpdatedAt, session.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("session not found: %s", session.ID)
	}
	return nil
}

const summaryColumns = sessionColumns + `,
	(SELECT COUNT(*) FROM messages m WHERE m.session_id = sessions.id) AS message_count,
	COALESCE((SELECT m.text FROM messages m WHERE m.session_id = sessions.id ORDER BY m.created_at DESC, m.id DESC LIMIT 1), '') AS last_message,
	COALESCE((SELECT m.created_at FROM messages m WHERE m.session_id = sessions.id ORDER BY m.created_at DESC, m.id DESC LIMIT 1), created_at) AS last_message_at`

func scanSummary(row interface{ Scan(...any) error }) (*models.SessionSummary, error) {
	s := &models.SessionSummary{}
	var handover int
	err := row.Scan(&s.ID, &s.TenantID, &s.VisitorID, &s.ContactID, &s.Channel,
		&s.Status, &s.Priority, &s.FlowID, &s.AssigneeAgentID, &s.InboxID,
		&s.TeamID, &handover, &s.CreatedAt, &s.UpdatedAt,
		&s.MessageCount, &s.LastMessage, &s.LastMessageAt)
	if err != nil {
		return nil, err
	}
	s.HandoverActive = handover != 0
	return s, nil
}

// ListSessions returns session summaries sorted by updated_at descending.
// An empty tenantID lists across all tenants.
func (r *SQLRepository) ListSessions(ctx context.Context, tenantID string) ([]*models.SessionSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM sessions`
	args := []any{}
	if tenantID != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

// GetSessionSummary retrieves one session with computed list fields
func (r *SQLRepository) GetSessionSummary(ctx context.Context, id string) (*models.SessionSummary, error) {
	row := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT `+summaryColumns+` FROM sessions WHERE id = ?
	`), id)
	summary, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("session not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// SetSessionStatus updates the status, reporting whether it changed
func (r *SQLRepository) SetSessionStatus(ctx context.Context, id string, status models.SessionStatus) (*models.SessionSummary, bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status != ?
	`), status, time.Now().UTC(), id, status)
	if err != nil {
		return nil, false, err
	}
	rows, _ := result.RowsAffected()

	summary, err := r.GetSessionSummary(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return summary, rows > 0, nil
}

// SetSessionHandover updates the handover flag, reporting whether it changed
func (r *SQLRepository) SetSessionHandover(ctx context.Context, id string, active bool) (*models.SessionSummary, bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sessions SET handover_active = ?, updated_at = ? WHERE id = ? AND handover_active != ?
	`), dialect.BoolToInt(active), time.Now().UTC(), id, dialect.BoolToInt(active))
	if err != nil {
		return nil, false, err
	}
	rows, _ := result.RowsAffected()

	summary, err := r.GetSessionSummary(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return summary, rows > 0, nil
}

// FindContactIDByVisitor returns the contact linked via another session with
// the same visitor id, newest first.
func (r *SQLRepository) FindContactIDByVisitor(ctx context.Context, tenantID, visitorID, excludeSessionID string) (string, error) {
	var contactID string
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT contact_id FROM sessions
		WHERE tenant_id = ? AND visitor_id = ? AND id != ? AND contact_id != ''
		ORDER BY updated_at DESC LIMIT 1
	`), tenantID, visitorID, excludeSessionID).Scan(&contactID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return contactID, nil
}

// Message operations

// InsertMessage persists a message idempotently by id and bumps the owning
// session's updated_at.
func (r *SQLRepository) InsertMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	suggestions := ""
	if len(message.Suggestions) > 0 {
		raw, err := json.Marshal(message.Suggestions)
		if err != nil {
			return fmt.Errorf("failed to encode suggestions: %w", err)
		}
		suggestions = string(raw)
	}
	widget := ""
	if message.Widget != nil {
		raw, err := json.Marshal(message.Widget)
		if err != nil {
			return fmt.Errorf("failed to encode widget: %w", err)
		}
		widget = string(raw)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO messages (id, session_id, sender, text, suggestions, widget, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`+dialect.InsertIgnore("id"),
	), message.ID, message.SessionID, message.Sender, message.Text, suggestions, widget, message.CreatedAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Duplicate id: already persisted, do not bump the session again.
		return nil
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sessions SET updated_at = ? WHERE id = ?
	`), message.CreatedAt, message.SessionID)
	return err
}

func scanMessage(rows *sql.Rows) (*models.Message, error) {
	m := &models.Message{}
	var suggestions, widget string
	if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Text, &suggestions, &widget, &m.CreatedAt); err != nil {
		return nil, err
	}
	if suggestions != "" {
		if err := json.Unmarshal([]byte(suggestions), &m.Suggestions); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions for message %s: %w", m.ID, err)
		}
	}
	if widget != "" {
		m.Widget = &models.Widget{}
		if err := json.Unmarshal([]byte(widget), m.Widget); err != nil {
			return nil, fmt.Errorf("failed to decode widget for message %s: %w", m.ID, err)
		}
	}
	return m, nil
}

// ListMessages returns a session's messages ordered ascending by creation
func (r *SQLRepository) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, session_id, sender, text, suggestions, widget, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at, id
	`), sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, message)
	}
	return result, rows.Err()
}

// ListRecentMessages returns the newest messages in chronological order,
// capped at limit. Used to build AI transcripts.
func (r *SQLRepository) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, session_id, sender, text, suggestions, widget, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`), sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// CountMessagesBySender counts a session's messages from one sender
func (r *SQLRepository) CountMessagesBySender(ctx context.Context, sessionID string, sender models.Sender) (int, error) {
	var count int
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT COUNT(*) FROM messages WHERE session_id = ? AND sender = ?
	`), sessionID, sender).Scan(&count)
	return count, err
}

// Contact operations

// CreateContact persists a new contact
func (r *SQLRepository) CreateContact(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO contacts (id, tenant_id, name, email, phone, company, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), contact.ID, contact.TenantID, contact.Name, contact.Email, contact.Phone,
		contact.Company, contact.Location, contact.CreatedAt, contact.UpdatedAt)
	return err
}

const contactColumns = `id, tenant_id, name, email, phone, company, location, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	c := &models.Contact{}
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Company,
		&c.Location, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetContact retrieves a contact by ID
func (r *SQLRepository) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	row := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT `+contactColumns+` FROM contacts WHERE id = ?
	`), id)
	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("contact not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// GetContactByEmail retrieves a contact by tenant and email
func (r *SQLRepository) GetContactByEmail(ctx context.Context, tenantID, email string) (*models.Contact, error) {
	row := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT `+contactColumns+` FROM contacts WHERE tenant_id = ? AND email = ?
		ORDER BY created_at LIMIT 1
	`), tenantID, email)
	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("contact not found: %s", email)
	}
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// UpdateContact updates an existing contact
func (r *SQLRepository) UpdateContact(ctx context.Context, contact *models.Contact) error {
	contact.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE contacts SET name = ?, email = ?, phone = ?, company = ?, location = ?, updated_at = ?
		WHERE id = ?
	`), contact.Name, contact.Email, contact.Phone, contact.Company, contact.Location,
		contact.UpdatedAt, contact.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("contact not found: %s", contact.ID)
	}
	return nil
}

// ListContacts returns a tenant's contacts, optionally filtered by a
// case-insensitive substring match on name or email.
func (r *SQLRepository) ListContacts(ctx context.Context, tenantID, query string) ([]*models.Contact, error) {
	sqlQuery := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = ?`
	args := []any{tenantID}
	if query != "" {
		like := dialect.Like(r.driver)
		sqlQuery += ` AND (name ` + like + ` ? OR email ` + like + ` ?)`
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern)
	}
	sqlQuery += ` ORDER BY updated_at DESC`

	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(sqlQuery), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, contact)
	}
	return result, rows.Err()
}

// Custom attribute operations

// SetContactAttribute upserts one contact attribute
func (r *SQLRepository) SetContactAttribute(ctx context.Context, contactID, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO contact_custom_attributes (contact_id, attribute_key, attribute_value, updated_at)
		VALUES (?, ?, ?, ?)`+
		dialect.Upsert("contact_id, attribute_key", "attribute_value = excluded.attribute_value, updated_at = excluded.updated_at"),
	), contactID, key, value, time.Now().UTC())
	return err
}

// ListContactAttributes returns a contact's custom attributes
func (r *SQLRepository) ListContactAttributes(ctx context.Context, contactID string) ([]*models.CustomAttribute, error) {
	return r.listAttributes(ctx, `
		SELECT contact_id, attribute_key, attribute_value, updated_at
		FROM contact_custom_attributes WHERE contact_id = ? ORDER BY attribute_key
	`, contactID)
}

// SetConversationAttribute upserts one conversation attribute
func (r *SQLRepository) SetConversationAttribute(ctx context.Context, sessionID, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO conversation_custom_attributes (session_id, attribute_key, attribute_value, updated_at)
		VALUES (?, ?, ?, ?)`+
		dialect.Upsert("session_id, attribute_key", "attribute_value = excluded.attribute_value, updated_at = excluded.updated_at"),
	), sessionID, key, value, time.Now().UTC())
	return err
}

// ListConversationAttributes returns a session's custom attributes
func (r *SQLRepository) ListConversationAttributes(ctx context.Context, sessionID string) ([]*models.CustomAttribute, error) {
	return r.listAttributes(ctx, `
		SELECT session_id, attribute_key, attribute_value, updated_at
		FROM conversation_custom_attributes WHERE session_id = ? ORDER BY attribute_key
	`, sessionID)
}

func (r *SQLRepository) listAttributes(ctx context.Context, query, ownerID string) ([]*models.CustomAttribute, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(query), ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.CustomAttribute
	for rows.Next() {
		attr := &models.CustomAttribute{}
		if err := rows.Scan(&attr.OwnerID, &attr.Key, &attr.Value, &attr.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, attr)
	}
	return result, rows.Err()
}

// Tag operations

// UpsertTag inserts a tag or returns the existing row on a (tenant, name) hit
func (r *SQLRepository) UpsertTag(ctx context.Context, tenantID, name, color string) (*models.Tag, error) {
	tag := &models.Tag{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO tags (id, tenant_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)`+dialect.InsertIgnore("tenant_id, name"),
	), tag.ID, tag.TenantID, tag.Name, tag.Color, tag.CreatedAt)
	if err != nil {
		return nil, err
	}

	// Read back; on conflict the pre-existing row wins.
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, tenant_id, name, color, created_at FROM tags WHERE tenant_id = ? AND name = ?
	`), tenantID, name)
	found := &models.Tag{}
	if err := row.Scan(&found.ID, &found.TenantID, &found.Name, &found.Color, &found.CreatedAt); err != nil {
		return nil, err
	}
	return found, nil
}

// ListTags returns a tenant's tags ordered by name
func (r *SQLRepository) ListTags(ctx context.Context, tenantID string) ([]*models.Tag, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, tenant_id, name, color, created_at FROM tags WHERE tenant_id = ? ORDER BY name
	`), tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Tag
	for rows.Next() {
		tag := &models.Tag{}
		if err := rows.Scan(&tag.ID, &tag.TenantID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

// DeleteTag removes a tag and its session links
func (r *SQLRepository) DeleteTag(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tags WHERE id = ?`), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFoundf("tag not found: %s", id)
	}
	return nil
}

// AddSessionTag links a tag to a session (no-op when already linked)
func (r *SQLRepository) AddSessionTag(ctx context.Context, sessionID, tagID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO conversation_tags (session_id, tag_id) VALUES (?, ?)`+
		dialect.InsertIgnore("session_id, tag_id"),
	), sessionID, tagID)
	return err
}

// RemoveSessionTag unlinks a tag from a session
func (r *SQLRepository) RemoveSessionTag(ctx context.Context, sessionID, tagID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM conversation_tags WHERE session_id = ? AND tag_id = ?
	`), sessionID, tagID)
	return err
}

// ListSessionTags returns the tags linked to a session
func (r *SQLRepository) ListSessionTags(ctx context.Context, sessionID string) ([]*models.Tag, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT t.id, t.tenant_id, t.name, t.color, t.created_at
		FROM tags t JOIN conversation_tags ct ON ct.tag_id = t.id
		WHERE ct.session_id = ? ORDER BY t.name
	`), sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Tag
	for rows.Next() {
		tag := &models.Tag{}
		if err := rows.Scan(&tag.ID, &tag.TenantID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

// Note operations

// CreateNote persists an internal conversation note
func (r *SQLRepository) CreateNote(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO conversation_notes (id, session_id, agent_id, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), note.ID, note.SessionID, note.AgentID, note.Text, note.CreatedAt)
	return err
}

// ListNotes returns a session's notes ordered by creation
func (r *SQLRepository) ListNotes(ctx context.Context, sessionID string) ([]*models.Note, error) {
	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(`
		SELECT id, session_id, agent_id, text, created_at
		FROM conversation_notes WHERE session_id = ? ORDER BY created_at, id
	`), sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Note
	for rows.Next() {
		note := &models.Note{}
		if err := rows.Scan(&note.ID, &note.SessionID, &note.AgentID, &note.Text, &note.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, note)
	}
	return result, rows.Err()
}

// CSAT operations

// InsertCSAT persists a survey response
func (r *SQLRepository) InsertCSAT(ctx context.Context, survey *models.CSATSurvey) error {
	if survey.ID == "" {
		survey.ID = uuid.New().String()
	}
	if survey.SubmittedAt.IsZero() {
		survey.SubmittedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO csat_surveys (id, session_id, tenant_id, score, comment, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), survey.ID, survey.SessionID, survey.TenantID, survey.Score, survey.Comment, survey.SubmittedAt)
	return err
}

// CSATSummary returns the count and average score for a tenant
func (r *SQLRepository) CSATSummary(ctx context.Context, tenantID string) (*models.CSATSummary, error) {
	summary := &models.CSATSummary{TenantID: tenantID}
	err := r.ro.QueryRowContext(ctx, r.ro.Rebind(`
		SELECT COUNT(*), COALESCE(AVG(score), 0) FROM csat_surveys WHERE tenant_id = ?
	`), tenantID).Scan(&summary.Count, &summary.Average)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

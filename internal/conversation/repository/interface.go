// Package repository provides storage for the conversational entities.
// Consumers see typed operations only, never SQL.
package repository

import (
	"context"

	"github.com/driftline/driftline/internal/conversation/models"
)

// Repository defines the interface for conversation storage operations.
//
// Guarantees: every mutation is durable before the call returns; reads are
// read-committed. InsertMessage is idempotent by message id and bumps the
// owning session's updated_at.
type Repository interface {
	// Session operations
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	ListSessions(ctx context.Context, tenantID string) ([]*models.SessionSummary, error)
	GetSessionSummary(ctx context.Context, id string) (*models.SessionSummary, error)
	SetSessionStatus(ctx context.Context, id string, status models.SessionStatus) (*models.SessionSummary, bool, error)
	SetSessionHandover(ctx context.Context, id string, active bool) (*models.SessionSummary, bool, error)
	// FindContactIDByVisitor returns the contact linked to the most recently
	// updated other session carrying the same visitor id, or "" when none.
	FindContactIDByVisitor(ctx context.Context, tenantID, visitorID, excludeSessionID string) (string, error)

	// Message operations
	InsertMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error)
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
	CountMessagesBySender(ctx context.Context, sessionID string, sender models.Sender) (int, error)

	// Contact operations
	CreateContact(ctx context.Context, contact *models.Contact) error
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	GetContactByEmail(ctx context.Context, tenantID, email string) (*models.Contact, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	ListContacts(ctx context.Context, tenantID, query string) ([]*models.Contact, error)

	// Custom attribute operations (keys unique per owner)
	SetContactAttribute(ctx context.Context, contactID, key, value string) error
	ListContactAttributes(ctx context.Context, contactID string) ([]*models.CustomAttribute, error)
	SetConversationAttribute(ctx context.Context, sessionID, key, value string) error
	ListConversationAttributes(ctx context.Context, sessionID string) ([]*models.CustomAttribute, error)

	// Tag operations (names unique per tenant; UpsertTag returns the
	// existing row on a name hit)
	UpsertTag(ctx context.Context, tenantID, name, color string) (*models.Tag, error)
	ListTags(ctx context.Context, tenantID string) ([]*models.Tag, error)
	DeleteTag(ctx context.Context, id string) error
	AddSessionTag(ctx context.Context, sessionID, tagID string) error
	RemoveSessionTag(ctx context.Context, sessionID, tagID string) error
	ListSessionTags(ctx context.Context, sessionID string) ([]*models.Tag, error)

	// Note operations
	CreateNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, sessionID string) ([]*models.Note, error)

	// CSAT operations
	InsertCSAT(ctx context.Context, survey *models.CSATSurvey) error
	CSATSummary(ctx context.Context, tenantID string) (*models.CSATSummary, error)

	// Close closes the repository (for database connections)
	Close() error
}

// Package repository provides storage for flows, execution cursors, and
// once-per-session trigger guards.
package repository

import (
	"context"

	"github.com/driftline/driftline/internal/flow/models"
)

// Repository defines the interface for flow storage operations.
//
// Cursor rows are unique per (tenant, session): PutCursor overwrites any
// prior cursor for the session. MarkTriggerFired is an insert-if-absent
// guard; it reports true exactly once per (session, trigger) key, no
// matter which flow ends up handling the event.
type Repository interface {
	// Flow definitions
	CreateFlow(ctx context.Context, flow *models.Flow) error
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
	UpdateFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) error
	ListFlows(ctx context.Context, tenantID string) ([]*models.Flow, error)
	ListEnabledFlows(ctx context.Context, tenantID string) ([]*models.Flow, error)

	// Execution cursors
	GetCursor(ctx context.Context, tenantID, sessionID string) (*models.FlowCursor, error)
	PutCursor(ctx context.Context, cursor *models.FlowCursor) error
	DeleteCursor(ctx context.Context, tenantID, sessionID string) error

	// Trigger guards
	MarkTriggerFired(ctx context.Context, sessionID, trigger string) (bool, error)

	// Close closes the repository (for database connections)
	Close() error
}

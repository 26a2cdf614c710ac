package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/flow/models"
)

// MemoryRepository is an in-memory flow store for tests and ephemeral runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	flows    map[string]*models.Flow
	cursors  map[string]*models.FlowCursor // keyed tenant|session
	triggers map[string]struct{}           // keyed session|flow|trigger
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory flow repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		flows:    make(map[string]*models.Flow),
		cursors:  make(map[string]*models.FlowCursor),
		triggers: make(map[string]struct{}),
	}
}

func (r *MemoryRepository) Close() error {
	return nil
}

func cursorKey(tenantID, sessionID string) string {
	return tenantID + "|" + sessionID
}

func copyFlow(f *models.Flow) *models.Flow {
	c := *f
	c.InputVariables = append([]models.InputVariable(nil), f.InputVariables...)
	c.Nodes = append([]models.Node(nil), f.Nodes...)
	c.Edges = append([]models.Edge(nil), f.Edges...)
	return &c
}

func copyCursor(c *models.FlowCursor) *models.FlowCursor {
	d := *c
	d.Variables = make(map[string]string, len(c.Variables))
	for k, v := range c.Variables {
		d.Variables[k] = v
	}
	return &d
}

// Flow definitions

func (r *MemoryRepository) CreateFlow(ctx context.Context, flow *models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	flow.CreatedAt = now
	flow.UpdatedAt = now
	r.flows[flow.ID] = copyFlow(flow)
	return nil
}

func (r *MemoryRepository) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flow, ok := r.flows[id]
	if !ok {
		return nil, apperr.NotFoundf("flow %s not found", id)
	}
	return copyFlow(flow), nil
}

func (r *MemoryRepository) UpdateFlow(ctx context.Context, flow *models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.flows[flow.ID]
	if !ok {
		return apperr.NotFoundf("flow %s not found", flow.ID)
	}
	flow.CreatedAt = existing.CreatedAt
	flow.UpdatedAt = time.Now().UTC()
	r.flows[flow.ID] = copyFlow(flow)
	return nil
}

func (r *MemoryRepository) DeleteFlow(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[id]; !ok {
		return apperr.NotFoundf("flow %s not found", id)
	}
	delete(r.flows, id)
	return nil
}

func (r *MemoryRepository) ListFlows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	return r.listFlows(tenantID, false), nil
}

func (r *MemoryRepository) ListEnabledFlows(ctx context.Context, tenantID string) ([]*models.Flow, error) {
	return r.listFlows(tenantID, true), nil
}

func (r *MemoryRepository) listFlows(tenantID string, enabledOnly bool) []*models.Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var flows []*models.Flow
	for _, f := range r.flows {
		if f.TenantID != tenantID {
			continue
		}
		if enabledOnly && !f.Enabled {
			continue
		}
		flows = append(flows, copyFlow(f))
	}
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].ID < flows[j].ID
		}
		return flows[i].CreatedAt.Before(flows[j].CreatedAt)
	})
	return flows
}

// Execution cursors

func (r *MemoryRepository) GetCursor(ctx context.Context, tenantID, sessionID string) (*models.FlowCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cursor, ok := r.cursors[cursorKey(tenantID, sessionID)]
	if !ok {
		return nil, apperr.NotFoundf("no flow cursor for session %s", sessionID)
	}
	return copyCursor(cursor), nil
}

func (r *MemoryRepository) PutCursor(ctx context.Context, cursor *models.FlowCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cursor.UpdatedAt = time.Now().UTC()
	stored := copyCursor(cursor)
	if stored.Variables == nil {
		stored.Variables = map[string]string{}
	}
	r.cursors[cursorKey(cursor.TenantID, cursor.SessionID)] = stored
	return nil
}

func (r *MemoryRepository) DeleteCursor(ctx context.Context, tenantID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cursors, cursorKey(tenantID, sessionID))
	return nil
}

// Trigger guards

func (r *MemoryRepository) MarkTriggerFired(ctx context.Context, sessionID, trigger string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join([]string{sessionID, trigger}, "|")
	if _, fired := r.triggers[key]; fired {
		return false, nil
	}
	r.triggers[key] = struct{}{}
	return true, nil
}

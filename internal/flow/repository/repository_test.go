package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/flow/models"
)

func testFlow(tenantID, name string) *models.Flow {
	return &models.Flow{
		TenantID: tenantID,
		Name:     name,
		Enabled:  true,
		Nodes: []models.Node{
			{ID: "n1", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "n2", Type: models.NodeMessage, Data: models.NodeData{Text: "Hello!"}},
		},
		Edges: []models.Edge{{Source: "n1", Target: "n2"}},
	}
}

func TestFlowCRUD(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	flow := testFlow("t1", "welcome")
	require.NoError(t, repo.CreateFlow(ctx, flow))
	require.NotEmpty(t, flow.ID)

	got, err := repo.GetFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.Name)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)

	got.Name = "renamed"
	got.Enabled = false
	require.NoError(t, repo.UpdateFlow(ctx, got))

	got, err = repo.GetFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.False(t, got.Enabled)

	require.NoError(t, repo.DeleteFlow(ctx, flow.ID))
	_, err = repo.GetFlow(ctx, flow.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListEnabledFlows(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	on := testFlow("t1", "on")
	off := testFlow("t1", "off")
	off.Enabled = false
	other := testFlow("t2", "other-tenant")
	require.NoError(t, repo.CreateFlow(ctx, on))
	require.NoError(t, repo.CreateFlow(ctx, off))
	require.NoError(t, repo.CreateFlow(ctx, other))

	all, err := repo.ListFlows(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := repo.ListEnabledFlows(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "on", enabled[0].Name)
}

func TestCursorOverwrite(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first := &models.FlowCursor{
		TenantID:  "t1",
		SessionID: "s1",
		FlowID:    "f1",
		NodeID:    "n1",
		NodeType:  models.NodeButtons,
		Variables: map[string]string{"name": "Ada"},
		Version:   models.CursorVersion,
	}
	require.NoError(t, repo.PutCursor(ctx, first))

	second := &models.FlowCursor{
		TenantID:  "t1",
		SessionID: "s1",
		FlowID:    "f2",
		NodeID:    "n9",
		NodeType:  models.NodeQuickInput,
		Version:   models.CursorVersion,
	}
	require.NoError(t, repo.PutCursor(ctx, second))

	got, err := repo.GetCursor(ctx, "t1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "f2", got.FlowID)
	assert.Equal(t, "n9", got.NodeID)
	assert.Empty(t, got.Variables)

	require.NoError(t, repo.DeleteCursor(ctx, "t1", "s1"))
	_, err = repo.GetCursor(ctx, "t1", "s1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestCursorScopedByTenant(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.PutCursor(ctx, &models.FlowCursor{
		TenantID: "t1", SessionID: "s1", FlowID: "f1", NodeID: "n1",
		NodeType: models.NodeSelect, Version: models.CursorVersion,
	}))

	_, err := repo.GetCursor(ctx, "t2", "s1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestMarkTriggerFiredOnce(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	fresh, err := repo.MarkTriggerFired(ctx, "s1", "widget_open")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = repo.MarkTriggerFired(ctx, "s1", "widget_open")
	require.NoError(t, err)
	assert.False(t, fresh)

	// distinct keys fire independently
	fresh, err = repo.MarkTriggerFired(ctx, "s1", "page_open")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = repo.MarkTriggerFired(ctx, "s2", "widget_open")
	require.NoError(t, err)
	assert.True(t, fresh)
}

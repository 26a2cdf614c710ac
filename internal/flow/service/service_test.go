package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/flow/models"
	"github.com/driftline/driftline/internal/flow/repository"
)

func newTestService() *Service {
	return NewService(repository.NewMemoryRepository(), logger.Default())
}

func validFlow(tenantID string) *models.Flow {
	return &models.Flow{
		TenantID: tenantID,
		Name:     "welcome",
		Enabled:  true,
		Nodes: []models.Node{
			{ID: "start", Type: models.NodeTrigger, Data: models.NodeData{On: models.TriggerWidgetOpen}},
			{ID: "hello", Type: models.NodeMessage, Data: models.NodeData{Text: "Hi there"}},
		},
		Edges: []models.Edge{{Source: "start", Target: "hello"}},
	}
}

func TestCreateFlowValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.Flow)
	}{
		{"missing name", func(f *models.Flow) { f.Name = "  " }},
		{"missing tenant", func(f *models.Flow) { f.TenantID = "" }},
		{"duplicate node id", func(f *models.Flow) {
			f.Nodes = append(f.Nodes, models.Node{ID: "start", Type: models.NodeEnd})
		}},
		{"unknown node type", func(f *models.Flow) {
			f.Nodes = append(f.Nodes, models.Node{ID: "x", Type: "teleport"})
		}},
		{"dangling edge source", func(f *models.Flow) {
			f.Edges = append(f.Edges, models.Edge{Source: "ghost", Target: "hello"})
		}},
		{"dangling edge target", func(f *models.Flow) {
			f.Edges = append(f.Edges, models.Edge{Source: "start", Target: "ghost"})
		}},
		{"input variable without key", func(f *models.Flow) {
			f.InputVariables = []models.InputVariable{{Label: "Order number"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := validFlow("t1")
			tt.mutate(flow)
			_, err := svc.CreateFlow(ctx, flow)
			assert.True(t, apperr.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestFlowTenantScoping(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	flow, err := svc.CreateFlow(ctx, validFlow("t1"))
	require.NoError(t, err)

	_, err = svc.GetFlow(ctx, "t2", flow.ID)
	assert.True(t, apperr.IsNotFound(err))

	err = svc.DeleteFlow(ctx, "t2", flow.ID)
	assert.True(t, apperr.IsNotFound(err))

	got, err := svc.GetFlow(ctx, "t1", flow.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.Name)
}

func TestToolFlows(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	plain := validFlow("t1")
	_, err := svc.CreateFlow(ctx, plain)
	require.NoError(t, err)

	tool := validFlow("t1")
	tool.Name = "order-status"
	tool.AITool = true
	tool.AIToolDescription = "Look up an order by number"
	tool.InputVariables = []models.InputVariable{{Key: "order_number", Label: "Order number", Required: true}}
	_, err = svc.CreateFlow(ctx, tool)
	require.NoError(t, err)

	disabledTool := validFlow("t1")
	disabledTool.Name = "retired"
	disabledTool.AITool = true
	disabledTool.Enabled = false
	_, err = svc.CreateFlow(ctx, disabledTool)
	require.NoError(t, err)

	tools, err := svc.ToolFlows(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "order-status", tools[0].Name)
}

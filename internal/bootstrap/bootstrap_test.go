package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/common/logger"
	dirrepo "github.com/driftline/driftline/internal/directory/repository"
	flowmodels "github.com/driftline/driftline/internal/flow/models"
	flowrepo "github.com/driftline/driftline/internal/flow/repository"
	flowservice "github.com/driftline/driftline/internal/flow/service"
)

const seedYAML = `
tenant:
  id: tenant-acme
  name: Acme
  settings:
    brandName: Acme
    brandColor: "#112233"
    widgetGreeting: "Hello from Acme"

agents:
  - name: Sam
    email: sam@acme.test
    role: admin
    token: seed-token

teams:
  - Support

inboxes:
  - Website

cannedReplies:
  - shortCode: hi
    title: Greeting
    text: "Hello!"

flows:
  - id: flow-seeded
    name: Seeded
    enabled: true
    nodes:
      - id: n1
        type: trigger
        data:
          on: widget_open
      - id: n2
        type: message
        data:
          text: "seeded message"
    edges:
      - source: n1
        target: n2
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bootstrap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newLoader(t *testing.T) (*Loader, dirrepo.Repository, *flowservice.Service) {
	t.Helper()
	log := logger.Default()
	dir := dirrepo.NewMemoryRepository()
	flows := flowservice.NewService(flowrepo.NewMemoryRepository(), log)
	return NewLoader(dir, flows, log), dir, flows
}

func TestApplySeedsEverything(t *testing.T) {
	loader, dir, flows := newLoader(t)
	ctx := context.Background()

	tenantID, err := loader.Apply(ctx, writeSeed(t, seedYAML))
	require.NoError(t, err)
	assert.Equal(t, "tenant-acme", tenantID)

	tenant, err := dir.GetTenant(ctx, "tenant-acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", tenant.Name)

	settings, err := dir.GetTenantSettings(ctx, "tenant-acme")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Acme", settings.WidgetGreeting)

	agent, err := dir.GetAgentByEmail(ctx, "tenant-acme", "sam@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "Sam", agent.Name)

	token, err := dir.GetAuthToken(ctx, "seed-token")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, token.AgentID)
	assert.Equal(t, "tenant-acme", token.TenantID)

	teams, err := dir.ListTeams(ctx, "tenant-acme")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Support", teams[0].Name)

	inboxes, err := dir.ListInboxes(ctx, "tenant-acme")
	require.NoError(t, err)
	require.Len(t, inboxes, 1)

	replies, err := dir.ListCannedReplies(ctx, "tenant-acme")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "hi", replies[0].ShortCode)

	flow, err := flows.GetFlow(ctx, "tenant-acme", "flow-seeded")
	require.NoError(t, err)
	assert.Equal(t, "Seeded", flow.Name)
	assert.True(t, flow.Enabled)
	require.Len(t, flow.Nodes, 2)
	assert.Equal(t, flowmodels.NodeTrigger, flow.Nodes[0].Type)
	assert.Equal(t, "seeded message", flow.Nodes[1].Data.Text)
}

func TestApplyIsIdempotent(t *testing.T) {
	loader, dir, flows := newLoader(t)
	ctx := context.Background()
	path := writeSeed(t, seedYAML)

	_, err := loader.Apply(ctx, path)
	require.NoError(t, err)

	// Simulate a dashboard edit between restarts.
	flow, err := flows.GetFlow(ctx, "tenant-acme", "flow-seeded")
	require.NoError(t, err)
	flow.Name = "Edited"
	_, err = flows.UpdateFlow(ctx, flow)
	require.NoError(t, err)

	_, err = loader.Apply(ctx, path)
	require.NoError(t, err)

	agents, err := dir.ListAgents(ctx, "tenant-acme")
	require.NoError(t, err)
	assert.Len(t, agents, 1)

	teams, err := dir.ListTeams(ctx, "tenant-acme")
	require.NoError(t, err)
	assert.Len(t, teams, 1)

	flow, err = flows.GetFlow(ctx, "tenant-acme", "flow-seeded")
	require.NoError(t, err)
	assert.Equal(t, "Edited", flow.Name, "reseeding must not clobber edits")

	all, err := flows.ListFlows(ctx, "tenant-acme", false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApplyMissingFileIsNoop(t *testing.T) {
	loader, _, _ := newLoader(t)
	tenantID, err := loader.Apply(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tenantID)
}

func TestApplyEmptyPathIsNoop(t *testing.T) {
	loader, _, _ := newLoader(t)
	tenantID, err := loader.Apply(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, tenantID)
}

func TestApplyRejectsBadYAML(t *testing.T) {
	loader, _, _ := newLoader(t)
	_, err := loader.Apply(context.Background(), writeSeed(t, "tenant: ["))
	assert.Error(t, err)
}

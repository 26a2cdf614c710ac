package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/directory/models"
	"github.com/driftline/driftline/internal/directory/repository"
)

func newTestService(t *testing.T) (*Service, repository.Repository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	return NewService(repo, logger.Default()), repo
}

func mustTenant(t *testing.T, svc *Service) *models.Tenant {
	t.Helper()
	tenant, err := svc.CreateTenant(context.Background(), "Acme")
	require.NoError(t, err)
	return tenant
}

func TestRegisterAgentMintsToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	agent, token, err := svc.RegisterAgent(ctx, &RegisterAgentRequest{
		TenantID: tenant.ID,
		Name:     "  Dana  ",
		Email:    "Dana@Acme.COM",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana", agent.Name)
	assert.Equal(t, "dana@acme.com", agent.Email)
	require.NotEmpty(t, token.Token)

	agentID, tenantID, err := svc.ResolveToken(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, agentID)
	assert.Equal(t, tenant.ID, tenantID)
}

func TestRegisterAgentRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	req := &RegisterAgentRequest{TenantID: tenant.ID, Name: "Dana", Email: "dana@acme.com"}
	_, _, err := svc.RegisterAgent(ctx, req)
	require.NoError(t, err)

	_, _, err = svc.RegisterAgent(ctx, &RegisterAgentRequest{TenantID: tenant.ID, Name: "Other", Email: "dana@acme.com"})
	assert.True(t, apperr.IsConflict(err))
}

func TestRegisterAgentRequiresFields(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := mustTenant(t, svc)

	_, _, err := svc.RegisterAgent(context.Background(), &RegisterAgentRequest{TenantID: tenant.ID, Name: "Dana"})
	assert.True(t, apperr.IsValidation(err))

	_, _, err = svc.RegisterAgent(context.Background(), &RegisterAgentRequest{Name: "Dana", Email: "d@a.com"})
	assert.True(t, apperr.IsValidation(err))
}

func TestResolveTokenRejectsUnknownAndExpired(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	_, _, err := svc.ResolveToken(ctx, "")
	assert.True(t, apperr.IsUnauthorized(err))

	_, _, err = svc.ResolveToken(ctx, "nope")
	assert.True(t, apperr.IsUnauthorized(err))

	agent, _, err := svc.RegisterAgent(ctx, &RegisterAgentRequest{TenantID: tenant.ID, Name: "Dana", Email: "dana@acme.com"})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.CreateAuthToken(ctx, &models.AuthToken{
		Token:     "stale",
		AgentID:   agent.ID,
		TenantID:  tenant.ID,
		ExpiresAt: &past,
	}))
	_, _, err = svc.ResolveToken(ctx, "stale")
	assert.True(t, apperr.IsUnauthorized(err))
}

func TestRevokedTokenStopsResolving(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	_, token, err := svc.RegisterAgent(ctx, &RegisterAgentRequest{TenantID: tenant.ID, Name: "Dana", Email: "dana@acme.com"})
	require.NoError(t, err)
	require.NoError(t, svc.RevokeToken(ctx, token.Token))

	_, _, err = svc.ResolveToken(ctx, token.Token)
	assert.True(t, apperr.IsUnauthorized(err))
}

func TestDeleteAgentRevokesTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	agent, token, err := svc.RegisterAgent(ctx, &RegisterAgentRequest{TenantID: tenant.ID, Name: "Dana", Email: "dana@acme.com"})
	require.NoError(t, err)
	extra, err := svc.IssueToken(ctx, agent.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAgent(ctx, agent.ID))

	for _, tok := range []string{token.Token, extra.Token} {
		_, _, err := svc.ResolveToken(ctx, tok)
		assert.True(t, apperr.IsUnauthorized(err))
	}
}

func TestUpdateAgentPatchesFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	agent, _, err := svc.RegisterAgent(ctx, &RegisterAgentRequest{TenantID: tenant.ID, Name: "Dana", Email: "dana@acme.com"})
	require.NoError(t, err)

	role := models.RoleAdmin
	updated, err := svc.UpdateAgent(ctx, agent.ID, &UpdateAgentRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.Equal(t, "Dana", updated.Name)

	empty := " "
	_, err = svc.UpdateAgent(ctx, agent.ID, &UpdateAgentRequest{Name: &empty})
	assert.True(t, apperr.IsValidation(err))
}

func TestTeamLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	team, err := svc.CreateTeam(ctx, tenant.ID, "Support")
	require.NoError(t, err)

	renamed, err := svc.RenameTeam(ctx, team.ID, "Tier 1")
	require.NoError(t, err)
	assert.Equal(t, "Tier 1", renamed.Name)

	require.NoError(t, svc.DeleteTeam(ctx, team.ID))
	teams, err := svc.ListTeams(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, teams)
}

func TestCannedReplyLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	_, err := svc.CreateCannedReply(ctx, tenant.ID, &CannedReplyRequest{ShortCode: "hi", Title: "Greeting"})
	assert.True(t, apperr.IsValidation(err), "text is required")

	reply, err := svc.CreateCannedReply(ctx, tenant.ID, &CannedReplyRequest{
		ShortCode: "hi", Title: "Greeting", Text: "Hello there",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateCannedReply(ctx, reply.ID, &CannedReplyRequest{
		ShortCode: "hi", Title: "Greeting", Text: "Hi, thanks for writing in",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi, thanks for writing in", updated.Text)

	require.NoError(t, svc.DeleteCannedReply(ctx, reply.ID))
	replies, err := svc.ListCannedReplies(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestTenantSettingsDefaultsAndUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tenant := mustTenant(t, svc)

	settings, err := svc.GetTenantSettings(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, settings.TenantID)

	settings.BrandName = "Acme"
	settings.WidgetGreeting = "Hi!"
	require.NoError(t, svc.UpdateTenantSettings(ctx, settings))

	got, err := svc.GetTenantSettings(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi!", got.WidgetGreeting)
}

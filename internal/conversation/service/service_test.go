package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/conversation/models"
	"github.com/driftline/driftline/internal/conversation/repository"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/events/bus"
)

const testTenant = "tenant-1"

func newTestService(t *testing.T) (*Service, *bus.MemoryEventBus) {
	t.Helper()
	log := logger.Default()
	eventBus := bus.NewMemoryEventBus(log)
	return NewService(repository.NewMemoryRepository(), eventBus, log), eventBus
}

func mustSession(t *testing.T, svc *Service) *models.Session {
	t.Helper()
	session, created, err := svc.EnsureSession(context.Background(), testTenant, "", "visitor-1", "widget")
	require.NoError(t, err)
	require.True(t, created)
	return session
}

func TestEnsureSessionCreatesAndReuses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, created, err := svc.EnsureSession(ctx, testTenant, "", "visitor-1", "widget")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.StatusOpen, session.Status)

	again, created, err := svc.EnsureSession(ctx, testTenant, session.ID, "", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, session.ID, again.ID)
}

func TestEnsureSessionCarriesContactAcrossSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := mustSession(t, svc)
	contact, err := svc.LinkContactByEmail(ctx, first.ID, "Pat@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", contact.Email)

	second, created, err := svc.EnsureSession(ctx, testTenant, "", "visitor-1", "widget")
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, contact.ID, second.ContactID, "returning visitor keeps their contact")
}

func TestAppendMessageDropsBlankWithoutWidget(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)

	msg, err := svc.AppendMessage(context.Background(), &models.Message{
		SessionID: session.ID,
		Text:      "   \n\t ",
	})
	require.NoError(t, err)
	assert.Nil(t, msg)

	history, err := svc.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAppendMessageDefaultsAndCaps(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)

	suggestions := make([]string, models.MaxSuggestions+3)
	for i := range suggestions {
		suggestions[i] = "chip"
	}
	msg, err := svc.AppendMessage(context.Background(), &models.Message{
		SessionID:   session.ID,
		Text:        "  hello  ",
		Suggestions: suggestions,
	})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, models.SenderVisitor, msg.Sender)
	assert.Equal(t, "hello", msg.Text)
	assert.Len(t, msg.Suggestions, models.MaxSuggestions)
}

func TestVisibleHistoryFiltersAgentOnlyMessages(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)
	ctx := context.Background()

	for _, m := range []*models.Message{
		{SessionID: session.ID, Sender: models.SenderVisitor, Text: "hi"},
		{SessionID: session.ID, Sender: models.SenderAgent, Text: "hello"},
		{SessionID: session.ID, Sender: models.SenderTeam, Text: "internal reply"},
		{SessionID: session.ID, Sender: models.SenderNote, Text: "watch this one"},
		{SessionID: session.ID, Sender: models.SenderSystem, Text: "Assigned to Support"},
		{SessionID: session.ID, Sender: models.SenderSystem, Text: "Conversation closed - ended the chat"},
	} {
		_, err := svc.AppendMessage(ctx, m)
		require.NoError(t, err)
	}

	visible, err := svc.VisibleHistory(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, visible, 3)
	assert.Equal(t, "hi", visible[0].Text)
	assert.Equal(t, "hello", visible[1].Text)
	assert.True(t, strings.Contains(visible[2].Text, "ended the chat"))

	all, err := svc.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestSetStatusWritesSystemMessageOnce(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)
	ctx := context.Background()

	summary, changed, err := svc.SetStatus(ctx, session.ID, models.StatusClosed)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StatusClosed, summary.Status)

	_, changed, err = svc.SetStatus(ctx, session.ID, models.StatusClosed)
	require.NoError(t, err)
	assert.False(t, changed, "repeat transition is a no-op")

	history, err := svc.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.SenderSystem, history[0].Sender)
	assert.Contains(t, history[0].Text, "ended the chat")
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)

	_, _, err := svc.SetStatus(context.Background(), session.ID, "archived")
	assert.True(t, apperr.IsValidation(err))
}

func TestSetStatusPublishesClosedEvent(t *testing.T) {
	svc, eventBus := newTestService(t)
	session := mustSession(t, svc)

	var closed []string
	_, err := eventBus.Subscribe(events.BuildConversationClosedSubject(session.ID), func(ctx context.Context, event *bus.Event) error {
		closed = append(closed, event.Type)
		return nil
	})
	require.NoError(t, err)

	_, _, err = svc.SetStatus(context.Background(), session.ID, models.StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, []string{events.ConversationClosed}, closed)
}

func TestRetargetSessionCopiesIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := mustSession(t, svc)
	_, err := svc.LinkContactByEmail(ctx, session.ID, "pat@example.com")
	require.NoError(t, err)
	closed, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)

	fresh, err := svc.RetargetSession(ctx, closed)
	require.NoError(t, err)
	assert.NotEqual(t, closed.ID, fresh.ID)
	assert.Equal(t, closed.TenantID, fresh.TenantID)
	assert.Equal(t, closed.VisitorID, fresh.VisitorID)
	assert.Equal(t, closed.ContactID, fresh.ContactID)
	assert.Equal(t, models.StatusOpen, fresh.Status)

	history, err := svc.ListMessages(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSetHandoverReportsChange(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)
	ctx := context.Background()

	_, changed, err := svc.SetHandover(ctx, session.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = svc.SetHandover(ctx, session.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSetContactFieldCreatesAnonymousContact(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.SetContactField(ctx, session.ID, "name", "Pat"))

	linked, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotEmpty(t, linked.ContactID)

	contact, err := svc.GetContact(ctx, linked.ContactID)
	require.NoError(t, err)
	assert.Equal(t, "Pat", contact.Name)

	err = svc.SetContactField(ctx, session.ID, "favorite_color", "teal")
	assert.True(t, apperr.IsValidation(err))
}

func TestTagSessionUpsertsAndUntagsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.TagSession(ctx, session.ID, "billing"))
	require.NoError(t, svc.TagSession(ctx, session.ID, "billing"))

	tags, err := svc.SessionTags(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "billing", tags[0].Name)

	require.NoError(t, svc.UntagSession(ctx, session.ID, "BILLING"))
	tags, err = svc.SessionTags(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestAddNoteWritesAgentOnlyTimelineEntry(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)
	ctx := context.Background()

	note, err := svc.AddNote(ctx, session.ID, "agent-1", "VIP customer")
	require.NoError(t, err)
	assert.Equal(t, "VIP customer", note.Text)

	notes, err := svc.ListNotes(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	visible, err := svc.VisibleHistory(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, visible, "notes never reach the widget")

	all, err := svc.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.SenderNote, all[0].Sender)
}

func TestSubmitCSATValidatesAndAggregates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitCSAT(ctx, mustSession(t, svc).ID, 0, "")
	assert.True(t, apperr.IsValidation(err))

	for _, score := range []int{5, 3} {
		session := mustSession(t, svc)
		_, err := svc.SubmitCSAT(ctx, session.ID, score, "thanks")
		require.NoError(t, err)
	}

	summary, err := svc.CSATSummary(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.InDelta(t, 4.0, summary.Average, 0.001)
}

func TestPatchSessionAppliesPointerFields(t *testing.T) {
	svc, _ := newTestService(t)
	session := mustSession(t, svc)
	ctx := context.Background()

	status := models.StatusResolved
	priority := models.PriorityUrgent
	assignee := "agent-9"
	summary, err := svc.PatchSession(ctx, session.ID, &SessionPatch{
		Status:          &status,
		Priority:        &priority,
		AssigneeAgentID: &assignee,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, summary.Status)
	assert.Equal(t, models.PriorityUrgent, summary.Priority)
	assert.Equal(t, "agent-9", summary.AssigneeAgentID)
}

// Package service implements the conversation business rules: session
// lifecycle, message validation, contact identity linking, tags, notes,
// and CSAT capture.
package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/common/logger"
	"github.com/driftline/driftline/internal/conversation/models"
	"github.com/driftline/driftline/internal/conversation/repository"
	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/events/bus"
)

// Service provides conversation business logic
type Service struct {
	repo     repository.Repository
	eventBus bus.EventBus
	logger   *logger.Logger
}

// NewService creates a new conversation service
func NewService(repo repository.Repository, eventBus bus.EventBus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "conversation-service")),
	}
}

// Repo exposes the underlying repository for read-mostly collaborators
// (flow engine condition lookups, MCP tools).
func (s *Service) Repo() repository.Repository {
	return s.repo
}

// Session operations

// EnsureSession returns the session, creating it when the id is unknown.
// Creation copies the contact link from the visitor's most recent other
// session when one exists.
func (s *Service) EnsureSession(ctx context.Context, tenantID, sessionID, visitorID, channel string) (*models.Session, bool, error) {
	if sessionID != "" {
		session, err := s.repo.GetSession(ctx, sessionID)
		if err == nil {
			// Late identity carry-over: a visitor id supplied after creation
			// can still link the contact.
			if visitorID != "" && session.ContactID == "" {
				if s.adoptVisitorContact(ctx, session, visitorID) {
					return session, false, nil
				}
			}
			return session, false, nil
		}
		if !apperr.IsNotFound(err) {
			return nil, false, err
		}
	}

	session := &models.Session{
		ID:        sessionID,
		TenantID:  tenantID,
		VisitorID: visitorID,
		Channel:   channel,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, false, err
	}
	if visitorID != "" {
		s.adoptVisitorContact(ctx, session, visitorID)
	}
	s.logger.WithSessionID(session.ID).WithTenantID(tenantID).Info("session created")
	s.publishSessionEvent(ctx, events.ConversationCreated, session.ID)
	return session, true, nil
}

// RetargetSession allocates a replacement for a closed session, copying
// its tenant, visitor, contact, flow, and channel. The replacement starts
// open with no messages.
func (s *Service) RetargetSession(ctx context.Context, closed *models.Session) (*models.Session, error) {
	session := &models.Session{
		TenantID:  closed.TenantID,
		VisitorID: closed.VisitorID,
		ContactID: closed.ContactID,
		Channel:   closed.Channel,
		FlowID:    closed.FlowID,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("closed session retargeted",
		zap.String("closed_session_id", closed.ID),
		zap.String("session_id", session.ID))
	s.publishSessionEvent(ctx, events.ConversationCreated, session.ID)
	return session, nil
}

// adoptVisitorContact copies the contact link from the visitor's most recent
// other session. Returns true when a link was adopted.
func (s *Service) adoptVisitorContact(ctx context.Context, session *models.Session, visitorID string) bool {
	contactID, err := s.repo.FindContactIDByVisitor(ctx, session.TenantID, visitorID, session.ID)
	if err != nil || contactID == "" {
		return false
	}
	session.VisitorID = visitorID
	session.ContactID = contactID
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		s.logger.Warn("failed to adopt visitor contact", zap.Error(err))
		return false
	}
	return true
}

// GetSession retrieves a session by ID
func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.repo.GetSession(ctx, id)
}

// GetSessionSummary retrieves a session with computed list fields
func (s *Service) GetSessionSummary(ctx context.Context, id string) (*models.SessionSummary, error) {
	return s.repo.GetSessionSummary(ctx, id)
}

// ListSessions returns session summaries for a tenant, newest activity first
func (s *Service) ListSessions(ctx context.Context, tenantID string) ([]*models.SessionSummary, error) {
	return s.repo.ListSessions(ctx, tenantID)
}

// AppendMessage validates and persists a message. Whitespace-only text
// without a widget is silently dropped: the call returns (nil, nil).
func (s *Service) AppendMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	message.Text = strings.TrimSpace(message.Text)
	if message.Text == "" && message.Widget == nil {
		return nil, nil
	}
	if message.Sender == "" {
		message.Sender = models.SenderVisitor
	}
	if len(message.Suggestions) > models.MaxSuggestions {
		message.Suggestions = message.Suggestions[:models.MaxSuggestions]
	}
	if err := s.repo.InsertMessage(ctx, message); err != nil {
		return nil, err
	}
	s.publishSessionEvent(ctx, events.MessageCreated, message.SessionID)
	return message, nil
}

// ListMessages returns the full timeline of a session
func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	return s.repo.ListMessages(ctx, sessionID)
}

// VisibleHistory returns the timeline filtered for the widget: team and note
// senders are dropped, system messages only when whitelisted.
func (s *Service) VisibleHistory(ctx context.Context, sessionID string) ([]*models.Message, error) {
	all, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	visible := make([]*models.Message, 0, len(all))
	for _, m := range all {
		if m.VisibleToVisitor() {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// CountVisitorMessages counts the visitor-authored messages on a session
func (s *Service) CountVisitorMessages(ctx context.Context, sessionID string) (int, error) {
	return s.repo.CountMessagesBySender(ctx, sessionID, models.SenderVisitor)
}

// SetStatus transitions the session status and, when it changed, persists a
// system message describing the transition.
func (s *Service) SetStatus(ctx context.Context, sessionID string, status models.SessionStatus) (*models.SessionSummary, bool, error) {
	if !models.ValidStatus(status) {
		return nil, false, apperr.Validationf("unknown session status: %s", status)
	}
	summary, changed, err := s.repo.SetSessionStatus(ctx, sessionID, status)
	if err != nil {
		return nil, false, err
	}
	if changed {
		text := ""
		switch status {
		case models.StatusClosed:
			text = "Conversation closed - ended the chat"
		case models.StatusOpen:
			text = "Conversation reopened"
		case models.StatusResolved:
			text = "Conversation resolved"
		}
		if text != "" {
			if _, err := s.AppendMessage(ctx, &models.Message{
				SessionID: sessionID,
				Sender:    models.SenderSystem,
				Text:      text,
			}); err != nil {
				s.logger.Warn("failed to persist status message", zap.Error(err))
			}
		}
		s.publishSessionEvent(ctx, events.ConversationUpdated, sessionID)
		if status == models.StatusClosed {
			s.publishSessionEvent(ctx, events.ConversationClosed, sessionID)
		}
	}
	return summary, changed, nil
}

// SetHandover flips the handover flag, reporting whether it changed
func (s *Service) SetHandover(ctx context.Context, sessionID string, active bool) (*models.SessionSummary, bool, error) {
	summary, changed, err := s.repo.SetSessionHandover(ctx, sessionID, active)
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.publishSessionEvent(ctx, events.ConversationUpdated, sessionID)
	}
	return summary, changed, nil
}

// SessionPatch carries the optional agent-editable session fields.
type SessionPatch struct {
	Status          *models.SessionStatus
	Priority        *models.SessionPriority
	AssigneeAgentID *string
	TeamID          *string
	InboxID         *string
	FlowID          *string
	Channel         *string
	ContactID       *string
	Handover        *bool
}

// PatchSession applies an agent-issued partial update.
func (s *Service) PatchSession(ctx context.Context, sessionID string, patch *SessionPatch) (*models.SessionSummary, error) {
	if patch.Status != nil {
		if _, _, err := s.SetStatus(ctx, sessionID, *patch.Status); err != nil {
			return nil, err
		}
	}
	if patch.Handover != nil {
		if _, _, err := s.SetHandover(ctx, sessionID, *patch.Handover); err != nil {
			return nil, err
		}
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dirty := false
	if patch.Priority != nil {
		if !models.ValidPriority(*patch.Priority) {
			return nil, apperr.Validationf("unknown session priority: %s", *patch.Priority)
		}
		session.Priority = *patch.Priority
		dirty = true
	}
	if patch.AssigneeAgentID != nil {
		session.AssigneeAgentID = *patch.AssigneeAgentID
		dirty = true
	}
	if patch.TeamID != nil {
		session.TeamID = *patch.TeamID
		dirty = true
	}
	if patch.InboxID != nil {
		session.InboxID = *patch.InboxID
		dirty = true
	}
	if patch.FlowID != nil {
		session.FlowID = *patch.FlowID
		dirty = true
	}
	if patch.Channel != nil {
		session.Channel = *patch.Channel
		dirty = true
	}
	if patch.ContactID != nil {
		session.ContactID = *patch.ContactID
		dirty = true
	}
	if dirty {
		if err := s.repo.UpdateSession(ctx, session); err != nil {
			return nil, err
		}
		s.publishSessionEvent(ctx, events.ConversationUpdated, sessionID)
	}
	return s.repo.GetSessionSummary(ctx, sessionID)
}

// AssignSession sets the assignee or team and enables handover, persisting a
// system message. Used by the flow engine's assign node and agent patches.
func (s *Service) AssignSession(ctx context.Context, sessionID, agentID, teamID, label string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if agentID != "" {
		session.AssigneeAgentID = agentID
	}
	if teamID != "" {
		session.TeamID = teamID
	}
	session.HandoverActive = true
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return err
	}
	text := "Conversation assigned"
	if label != "" {
		text = "Conversation assigned to " + label
	}
	if _, err := s.AppendMessage(ctx, &models.Message{
		SessionID: sessionID,
		Sender:    models.SenderSystem,
		Text:      text,
	}); err != nil {
		s.logger.Warn("failed to persist assignment message", zap.Error(err))
	}
	s.publishSessionEvent(ctx, events.ConversationUpdated, sessionID)
	return nil
}

// Contact operations

// GetContact retrieves a contact by ID
func (s *Service) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	return s.repo.GetContact(ctx, id)
}

// ListContacts returns a tenant's contacts with an optional search query
func (s *Service) ListContacts(ctx context.Context, tenantID, query string) ([]*models.Contact, error) {
	return s.repo.ListContacts(ctx, tenantID, query)
}

// CreateContact validates and persists a contact
func (s *Service) CreateContact(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))
	if contact.TenantID == "" {
		return nil, apperr.Validationf("tenant id is required")
	}
	if err := s.repo.CreateContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// UpdateContact persists contact field changes
func (s *Service) UpdateContact(ctx context.Context, contact *models.Contact) error {
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))
	return s.repo.UpdateContact(ctx, contact)
}

// LinkContactByEmail finds or creates the tenant contact with the given
// email and links it to the session. Returns the linked contact.
func (s *Service) LinkContactByEmail(ctx context.Context, sessionID, email string) (*models.Contact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Validationf("email is required")
	}
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	contact, err := s.repo.GetContactByEmail(ctx, session.TenantID, email)
	if apperr.IsNotFound(err) {
		contact = &models.Contact{TenantID: session.TenantID, Email: email}
		if err := s.repo.CreateContact(ctx, contact); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if session.ContactID != contact.ID {
		session.ContactID = contact.ID
		if err := s.repo.UpdateSession(ctx, session); err != nil {
			return nil, err
		}
		s.publishSessionEvent(ctx, events.ContactIdentified, sessionID)
	}
	return contact, nil
}

// SetContactField sets one of the named contact fields (name, email, phone,
// company, location) on the session's linked contact, linking by email first
// when the field is email and no contact exists yet.
func (s *Service) SetContactField(ctx context.Context, sessionID, field, value string) error {
	if field == "email" {
		_, err := s.LinkContactByEmail(ctx, sessionID, value)
		return err
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.ContactID == "" {
		// No linked contact: create an anonymous one to hold the field.
		contact := &models.Contact{TenantID: session.TenantID}
		if err := s.repo.CreateContact(ctx, contact); err != nil {
			return err
		}
		session.ContactID = contact.ID
		if err := s.repo.UpdateSession(ctx, session); err != nil {
			return err
		}
	}
	contact, err := s.repo.GetContact(ctx, session.ContactID)
	if err != nil {
		return err
	}
	switch field {
	case "name":
		contact.Name = value
	case "phone":
		contact.Phone = value
	case "company":
		contact.Company = value
	case "location":
		contact.Location = value
	default:
		return apperr.Validationf("unknown contact field: %s", field)
	}
	return s.repo.UpdateContact(ctx, contact)
}

// SetContactAttribute upserts a custom attribute on the session's contact,
// creating an anonymous contact when none is linked.
func (s *Service) SetContactAttribute(ctx context.Context, sessionID, key, value string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.ContactID == "" {
		contact := &models.Contact{TenantID: session.TenantID}
		if err := s.repo.CreateContact(ctx, contact); err != nil {
			return err
		}
		session.ContactID = contact.ID
		if err := s.repo.UpdateSession(ctx, session); err != nil {
			return err
		}
	}
	return s.repo.SetContactAttribute(ctx, session.ContactID, key, value)
}

// SetConversationAttribute upserts a custom attribute on the session
func (s *Service) SetConversationAttribute(ctx context.Context, sessionID, key, value string) error {
	return s.repo.SetConversationAttribute(ctx, sessionID, key, value)
}

// ContactAttributes returns the custom attributes of a contact
func (s *Service) ContactAttributes(ctx context.Context, contactID string) ([]*models.CustomAttribute, error) {
	return s.repo.ListContactAttributes(ctx, contactID)
}

// ConversationAttributes returns the custom attributes of a session
func (s *Service) ConversationAttributes(ctx context.Context, sessionID string) ([]*models.CustomAttribute, error) {
	return s.repo.ListConversationAttributes(ctx, sessionID)
}

// Tag operations

// TagSession upserts the named tag for the session's tenant and links it
func (s *Service) TagSession(ctx context.Context, sessionID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validationf("tag name is required")
	}
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	tag, err := s.repo.UpsertTag(ctx, session.TenantID, name, "")
	if err != nil {
		return err
	}
	return s.repo.AddSessionTag(ctx, sessionID, tag.ID)
}

// UntagSession removes the named tag from the session, if linked
func (s *Service) UntagSession(ctx context.Context, sessionID, name string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	tags, err := s.repo.ListTags(ctx, session.TenantID)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if strings.EqualFold(tag.Name, name) {
			return s.repo.RemoveSessionTag(ctx, sessionID, tag.ID)
		}
	}
	return nil
}

// ListTags returns a tenant's tags
func (s *Service) ListTags(ctx context.Context, tenantID string) ([]*models.Tag, error) {
	return s.repo.ListTags(ctx, tenantID)
}

// UpsertTag creates or returns the named tag
func (s *Service) UpsertTag(ctx context.Context, tenantID, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("tag name is required")
	}
	return s.repo.UpsertTag(ctx, tenantID, name, color)
}

// DeleteTag removes a tag
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	return s.repo.DeleteTag(ctx, id)
}

// SessionTags returns the tags linked to a session
func (s *Service) SessionTags(ctx context.Context, sessionID string) ([]*models.Tag, error) {
	return s.repo.ListSessionTags(ctx, sessionID)
}

// Note operations

// AddNote writes the internal note row and its agent-only timeline message
// in one call, so both surfaces stay consistent.
func (s *Service) AddNote(ctx context.Context, sessionID, agentID, text string) (*models.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validationf("note text is required")
	}
	note := &models.Note{SessionID: sessionID, AgentID: agentID, Text: text}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	if _, err := s.AppendMessage(ctx, &models.Message{
		SessionID: sessionID,
		Sender:    models.SenderNote,
		Text:      text,
	}); err != nil {
		s.logger.Warn("failed to persist note message", zap.Error(err))
	}
	return note, nil
}

// ListNotes returns a session's internal notes
func (s *Service) ListNotes(ctx context.Context, sessionID string) ([]*models.Note, error) {
	return s.repo.ListNotes(ctx, sessionID)
}

// CSAT operations

// SubmitCSAT validates and records a survey response
func (s *Service) SubmitCSAT(ctx context.Context, sessionID string, score int, comment string) (*models.CSATSurvey, error) {
	if score < 1 || score > 5 {
		return nil, apperr.Validationf("score must be between 1 and 5")
	}
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	survey := &models.CSATSurvey{
		SessionID: sessionID,
		TenantID:  session.TenantID,
		Score:     score,
		Comment:   strings.TrimSpace(comment),
	}
	if err := s.repo.InsertCSAT(ctx, survey); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.BuildCSATSubmittedSubject(sessionID), events.CSATSubmitted, map[string]interface{}{
		"session_id": sessionID,
		"score":      score,
	})
	return survey, nil
}

// CSATSummary returns the raw aggregation for a tenant
func (s *Service) CSATSummary(ctx context.Context, tenantID string) (*models.CSATSummary, error) {
	return s.repo.CSATSummary(ctx, tenantID)
}

// Event publication

func (s *Service) publishSessionEvent(ctx context.Context, eventType, sessionID string) {
	s.publishEvent(ctx, eventType+"."+sessionID, eventType, map[string]interface{}{
		"session_id": sessionID,
	})
}

func (s *Service) publishEvent(ctx context.Context, subject, eventType string, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	event := bus.NewEvent(eventType, "conversation-service", data)
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("subject", subject), zap.Error(err))
	}
}

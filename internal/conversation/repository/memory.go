package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/driftline/internal/common/apperr"
	"github.com/driftline/driftline/internal/conversation/models"
)

// MemoryRepository provides in-memory conversation storage operations
type MemoryRepository struct {
	sessions     map[string]*models.Session
	messages     map[string][]*models.Message // keyed by session id, append order
	messageIDs   map[string]bool
	contacts     map[string]*models.Contact
	contactAttrs map[string]map[string]*models.CustomAttribute // contact id -> key
	convAttrs    map[string]map[string]*models.CustomAttribute // session id -> key
	tags         map[string]*models.Tag
	sessionTags  map[string]map[string]bool // session id -> tag id
	notes        map[string][]*models.Note
	surveys      []*models.CSATSurvey
	mu           sync.RWMutex
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a new in-memory conversation repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions:     make(map[string]*models.Session),
		messages:     make(map[string][]*models.Message),
		messageIDs:   make(map[string]bool),
		contacts:     make(map[string]*models.Contact),
		contactAttrs: make(map[string]map[string]*models.CustomAttribute),
		convAttrs:    make(map[string]map[string]*models.CustomAttribute),
		tags:         make(map[string]*models.Tag),
		sessionTags:  make(map[string]map[string]bool),
		notes:        make(map[string][]*models.Note),
	}
}

// Close is a no-op for in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}

// Session operations

func (r *MemoryRepository) CreateSession(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFoundf("session not found: %s", id)
	}
	copied := *session
	return &copied, nil
}

func (r *MemoryRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[session.ID]
	if !ok {
		return apperr.NotFoundf("session not found: %s", session.ID)
	}
	session.CreatedAt = existing.CreatedAt
	session.UpdatedAt = time.Now().UTC()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemoryRepository) summarize(session *models.Session) *models.SessionSummary {
	summary := &models.SessionSummary{Session: *session}
	msgs := r.messages[session.ID]
	summary.MessageCount = len(msgs)
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		summary.LastMessage = last.Text
		summary.LastMessageAt = last.CreatedAt
	} else {
		summary.LastMessageAt = session.CreatedAt
	}
	return summary
}

func (r *MemoryRepository) ListSessions(ctx context.Context, tenantID string) ([]*models.SessionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.SessionSummary
	for _, session := range r.sessions {
		if tenantID != "" && session.TenantID != tenantID {
			continue
		}
		result = append(result, r.summarize(session))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) GetSessionSummary(ctx context.Context, id string) (*models.SessionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFoundf("session not found: %s", id)
	}
	return r.summarize(session), nil
}

func (r *MemoryRepository) SetSessionStatus(ctx context.Context, id string, status models.SessionStatus) (*models.SessionSummary, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, false, apperr.NotFoundf("session not found: %s", id)
	}
	changed := session.Status != status
	if changed {
		session.Status = status
		session.UpdatedAt = time.Now().UTC()
	}
	return r.summarize(session), changed, nil
}

func (r *MemoryRepository) SetSessionHandover(ctx context.Context, id string, active bool) (*models.SessionSummary, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, false, apperr.NotFoundf("session not found: %s", id)
	}
	changed := session.HandoverActive != active
	if changed {
		session.HandoverActive = active
		session.UpdatedAt = time.Now().UTC()
	}
	return r.summarize(session), changed, nil
}

func (r *MemoryRepository) FindContactIDByVisitor(ctx context.Context, tenantID, visitorID, excludeSessionID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *models.Session
	for _, session := range r.sessions {
		if session.TenantID != tenantID || session.VisitorID != visitorID {
			continue
		}
		if session.ID == excludeSessionID || session.ContactID == "" {
			continue
		}
		if best == nil || session.UpdatedAt.After(best.UpdatedAt) {
			best = session
		}
	}
	if best == nil {
		return "", nil
	}
	return best.ContactID, nil
}

// Message operations

func (r *MemoryRepository) InsertMessage(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if r.messageIDs[message.ID] {
		return nil
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	copied := *message
	r.messages[message.SessionID] = append(r.messages[message.SessionID], &copied)
	r.messageIDs[message.ID] = true

	if session, ok := r.sessions[message.SessionID]; ok {
		session.UpdatedAt = message.CreatedAt
	}
	return nil
}

func (r *MemoryRepository) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[sessionID]
	result := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		copied := *m
		result[i] = &copied
	}
	return result, nil
}

func (r *MemoryRepository) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[sessionID]
	start := 0
	if len(msgs) > limit {
		start = len(msgs) - limit
	}
	result := make([]*models.Message, 0, len(msgs)-start)
	for _, m := range msgs[start:] {
		copied := *m
		result = append(result, &copied)
	}
	return result, nil
}

func (r *MemoryRepository) CountMessagesBySender(ctx context.Context, sessionID string, sender models.Sender) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, m := range r.messages[sessionID] {
		if m.Sender == sender {
			count++
		}
	}
	return count, nil
}

// Contact operations

func (r *MemoryRepository) CreateContact(ctx context.Context, contact *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	copied := *contact
	r.contacts[contact.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contact, ok := r.contacts[id]
	if !ok {
		return nil, apperr.NotFoundf("contact not found: %s", id)
	}
	copied := *contact
	return &copied, nil
}

func (r *MemoryRepository) GetContactByEmail(ctx context.Context, tenantID, email string) (*models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *models.Contact
	for _, contact := range r.contacts {
		if contact.TenantID != tenantID || contact.Email != email {
			continue
		}
		if best == nil || contact.CreatedAt.Before(best.CreatedAt) {
			best = contact
		}
	}
	if best == nil {
		return nil, apperr.NotFoundf("contact not found: %s", email)
	}
	copied := *best
	return &copied, nil
}

func (r *MemoryRepository) UpdateContact(ctx context.Context, contact *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.contacts[contact.ID]
	if !ok {
		return apperr.NotFoundf("contact not found: %s", contact.ID)
	}
	contact.CreatedAt = existing.CreatedAt
	contact.UpdatedAt = time.Now().UTC()
	copied := *contact
	r.contacts[contact.ID] = &copied
	return nil
}

func (r *MemoryRepository) ListContacts(ctx context.Context, tenantID, query string) ([]*models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(query)
	var result []*models.Contact
	for _, contact := range r.contacts {
		if contact.TenantID != tenantID {
			continue
		}
		if lower != "" &&
			!strings.Contains(strings.ToLower(contact.Name), lower) &&
			!strings.Contains(strings.ToLower(contact.Email), lower) {
			continue
		}
		copied := *contact
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// Custom attribute operations

func (r *MemoryRepository) SetContactAttribute(ctx context.Context, contactID, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.contactAttrs[contactID] == nil {
		r.contactAttrs[contactID] = make(map[string]*models.CustomAttribute)
	}
	r.contactAttrs[contactID][key] = &models.CustomAttribute{
		OwnerID: contactID, Key: key, Value: value, UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *MemoryRepository) ListContactAttributes(ctx context.Context, contactID string) ([]*models.CustomAttribute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedAttributes(r.contactAttrs[contactID]), nil
}

func (r *MemoryRepository) SetConversationAttribute(ctx context.Context, sessionID, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.convAttrs[sessionID] == nil {
		r.convAttrs[sessionID] = make(map[string]*models.CustomAttribute)
	}
	r.convAttrs[sessionID][key] = &models.CustomAttribute{
		OwnerID: sessionID, Key: key, Value: value, UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *MemoryRepository) ListConversationAttributes(ctx context.Context, sessionID string) ([]*models.CustomAttribute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedAttributes(r.convAttrs[sessionID]), nil
}

func sortedAttributes(attrs map[string]*models.CustomAttribute) []*models.CustomAttribute {
	var result []*models.CustomAttribute
	for _, attr := range attrs {
		copied := *attr
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Tag operations

func (r *MemoryRepository) UpsertTag(ctx context.Context, tenantID, name, color string) (*models.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tag := range r.tags {
		if tag.TenantID == tenantID && tag.Name == name {
			copied := *tag
			return &copied, nil
		}
	}
	tag := &models.Tag{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	r.tags[tag.ID] = tag
	copied := *tag
	return &copied, nil
}

func (r *MemoryRepository) ListTags(ctx context.Context, tenantID string) ([]*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Tag
	for _, tag := range r.tags {
		if tag.TenantID != tenantID {
			continue
		}
		copied := *tag
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *MemoryRepository) DeleteTag(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tags[id]; !ok {
		return apperr.NotFoundf("tag not found: %s", id)
	}
	delete(r.tags, id)
	for _, tagged := range r.sessionTags {
		delete(tagged, id)
	}
	return nil
}

func (r *MemoryRepository) AddSessionTag(ctx context.Context, sessionID, tagID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionTags[sessionID] == nil {
		r.sessionTags[sessionID] = make(map[string]bool)
	}
	r.sessionTags[sessionID][tagID] = true
	return nil
}

func (r *MemoryRepository) RemoveSessionTag(ctx context.Context, sessionID, tagID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessionTags[sessionID], tagID)
	return nil
}

func (r *MemoryRepository) ListSessionTags(ctx context.Context, sessionID string) ([]*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Tag
	for tagID := range r.sessionTags[sessionID] {
		if tag, ok := r.tags[tagID]; ok {
			copied := *tag
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Note operations

func (r *MemoryRepository) CreateNote(ctx context.Context, note *models.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	copied := *note
	r.notes[note.SessionID] = append(r.notes[note.SessionID], &copied)
	return nil
}

func (r *MemoryRepository) ListNotes(ctx context.Context, sessionID string) ([]*models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := r.notes[sessionID]
	result := make([]*models.Note, len(notes))
	for i, note := range notes {
		copied := *note
		result[i] = &copied
	}
	return result, nil
}

// CSAT operations

func (r *MemoryRepository) InsertCSAT(ctx context.Context, survey *models.CSATSurvey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if survey.ID == "" {
		survey.ID = uuid.New().String()
	}
	if survey.SubmittedAt.IsZero() {
		survey.SubmittedAt = time.Now().UTC()
	}
	copied := *survey
	r.surveys = append(r.surveys, &copied)
	return nil
}

func (r *MemoryRepository) CSATSummary(ctx context.Context, tenantID string) (*models.CSATSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &models.CSATSummary{TenantID: tenantID}
	total := 0
	for _, survey := range r.surveys {
		if survey.TenantID != tenantID {
			continue
		}
		summary.Count++
		total += survey.Score
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

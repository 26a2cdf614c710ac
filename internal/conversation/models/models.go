// Package models defines the conversational entities: sessions, messages,
// contacts, tags, notes, and CSAT surveys.
package models

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a conversation.
type SessionStatus string

const (
	StatusOpen     SessionStatus = "open"
	StatusResolved SessionStatus = "resolved"
	StatusAwaiting SessionStatus = "awaiting"
	StatusSnoozed  SessionStatus = "snoozed"
	StatusClosed   SessionStatus = "closed"
)

// ValidStatus reports whether s is a known session status.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusOpen, StatusResolved, StatusAwaiting, StatusSnoozed, StatusClosed:
		return true
	}
	return false
}

// SessionPriority orders sessions in the agent dashboard.
type SessionPriority string

const (
	PriorityLow    SessionPriority = "low"
	PriorityNormal SessionPriority = "normal"
	PriorityHigh   SessionPriority = "high"
	PriorityUrgent SessionPriority = "urgent"
)

// ValidPriority reports whether p is a known session priority.
func ValidPriority(p SessionPriority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Sender identifies who authored a message.
type Sender string

const (
	SenderVisitor Sender = "visitor"
	SenderAgent   Sender = "agent"
	SenderTeam    Sender = "team"
	SenderSystem  Sender = "system"
	SenderNote    Sender = "note"
)

// Session is one conversation thread between a visitor identity and the
// workspace. Sessions are never deleted; closure flips Status.
type Session struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	VisitorID       string          `json:"visitor_id,omitempty"`
	ContactID       string          `json:"contact_id,omitempty"`
	Channel         string          `json:"channel"`
	Status          SessionStatus   `json:"status"`
	Priority        SessionPriority `json:"priority"`
	FlowID          string          `json:"flow_id,omitempty"`
	AssigneeAgentID string          `json:"assignee_agent_id,omitempty"`
	InboxID         string          `json:"inbox_id,omitempty"`
	TeamID          string          `json:"team_id,omitempty"`
	HandoverActive  bool            `json:"handover_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SessionSummary is a session plus computed fields for list views.
type SessionSummary struct {
	Session
	MessageCount  int       `json:"message_count"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
}

// MaxSuggestions caps the quick-reply chips attached to a message.
const MaxSuggestions = 6

// Message is one entry in a session's timeline.
type Message struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Widget      *Widget   `json:"widget,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// visitorSystemWhitelist lists system-message phrases the widget may show.
var visitorSystemWhitelist = []string{
	"ended the chat",
	"conversation closed",
	"reopened",
}

// VisibleToVisitor reports whether the widget history should include this
// message. Team and note senders are agent-only; system messages are shown
// only when they match the whitelist.
func (m *Message) VisibleToVisitor() bool {
	switch m.Sender {
	case SenderTeam, SenderNote:
		return false
	case SenderSystem:
		lower := strings.ToLower(m.Text)
		for _, phrase := range visitorSystemWhitelist {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
		return false
	}
	return true
}

// Contact is the canonical person record linked to sessions by ContactID.
type Contact struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identified reports whether the contact carries a non-empty email, the
// signal condition rules treat as "known person".
func (c *Contact) Identified() bool {
	return c != nil && strings.TrimSpace(c.Email) != ""
}

// CustomAttribute is one key/value pair attached to a contact or a session.
type CustomAttribute struct {
	OwnerID   string    `json:"owner_id"` // contact_id or session_id
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag is a tenant-scoped label; names are unique per tenant.
type Tag struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is an internal annotation on a session, agent-only.
type Note struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	AgentID   string    `json:"agent_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CSATSurvey records a visitor satisfaction score for a session.
type CSATSurvey struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	TenantID    string    `json:"tenant_id"`
	Score       int       `json:"score"` // 1..5
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CSATSummary is the raw aggregation exposed to agents.
type CSATSummary struct {
	TenantID string  `json:"tenant_id"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

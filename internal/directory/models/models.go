// Package models defines the tenant directory entities: tenants, agents,
// auth tokens, teams, inboxes, canned replies, and widget settings.
package models

import "time"

// AgentRole controls access to administrative endpoints
type AgentRole string

const (
	// RoleAdmin can manage the tenant directory and flows
	RoleAdmin AgentRole = "admin"
	// RoleAgent can work conversations but not manage the directory
	RoleAgent AgentRole = "agent"
)

// Tenant is a workspace boundary; every other entity hangs off one
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Agent is a human operator of the dashboard
type Agent struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      AgentRole `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthToken is an opaque bearer credential resolving to an agent
type AuthToken struct {
	Token     string     `json:"token"`
	AgentID   string     `json:"agent_id"`
	TenantID  string     `json:"tenant_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token is past its expiry, if any
func (t *AuthToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Team groups agents for internal notes and assignment
type Team struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Inbox is a routing bucket for sessions (e.g. per channel or site)
type Inbox struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CannedReply is a reusable snippet agents insert into the composer
type CannedReply struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ShortCode string    `json:"short_code"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantSettings carries the branding returned by the widget bootstrap
type TenantSettings struct {
	TenantID       string    `json:"tenant_id"`
	BrandName      string    `json:"brand_name"`
	BrandColor     string    `json:"brand_color"`
	WidgetGreeting string    `json:"widget_greeting"`
	UpdatedAt      time.Time `json:"updated_at"`
}

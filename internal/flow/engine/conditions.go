package engine

import (
	"context"
	"strconv"
	"strings"

	convmodels "github.com/driftline/driftline/internal/conversation/models"
	"github.com/driftline/driftline/internal/flow/models"
)

// evalCondition evaluates a condition node against the current visitor
// message, the session, and the linked contact. An empty rule list is
// false; a node without rules falls back to the legacy bare-substring
// `contains` check.
func (e *Engine) evalCondition(ctx context.Context, ex *execution, data *models.NodeData) bool {
	if len(data.Rules) == 0 {
		if data.Contains != "" {
			return strings.Contains(strings.ToLower(ex.visitorText), strings.ToLower(data.Contains))
		}
		return false
	}
	anyMode := strings.EqualFold(data.LogicOperator, "or")
	for _, rule := range data.Rules {
		ok := e.evalRule(ctx, ex, &rule)
		if anyMode && ok {
			return true
		}
		if !anyMode && !ok {
			return false
		}
	}
	return !anyMode
}

func (e *Engine) evalRule(ctx context.Context, ex *execution, rule *models.Rule) bool {
	actual := e.resolveAttribute(ctx, ex, rule)
	return applyOperator(rule.Operator, actual, rule.Value)
}

// resolveAttribute maps a rule attribute name to its current value.
// Directory lookups that fail resolve to the empty string.
func (e *Engine) resolveAttribute(ctx context.Context, ex *execution, rule *models.Rule) string {
	attr := rule.Attribute
	switch attr {
	case "message":
		return ex.visitorText
	case "channel":
		return ex.session.Channel
	case "status":
		return string(ex.session.Status)
	case "priority":
		return string(ex.session.Priority)
	case "assignee":
		if ex.session.AssigneeAgentID == "" {
			return ""
		}
		agent, err := e.dir.GetAgent(ctx, ex.session.AssigneeAgentID)
		if err != nil {
			return ""
		}
		return agent.Email
	case "team":
		if ex.session.TeamID == "" {
			return ""
		}
		team, err := e.dir.GetTeam(ctx, ex.session.TeamID)
		if err != nil {
			return ""
		}
		return team.Name
	case "inbox":
		if ex.session.InboxID == "" {
			return ""
		}
		inbox, err := e.dir.GetInbox(ctx, ex.session.InboxID)
		if err != nil {
			return ""
		}
		return inbox.Name
	case "contact.identified":
		if c := e.sessionContact(ctx, ex.session); c != nil && c.Identified() {
			return "true"
		}
		return ""
	case "contact.name", "contact.email", "contact.phone", "contact.company", "contact.location":
		c := e.sessionContact(ctx, ex.session)
		if c == nil {
			return ""
		}
		switch attr {
		case "contact.name":
			return c.Name
		case "contact.email":
			return c.Email
		case "contact.phone":
			return c.Phone
		case "contact.company":
			return c.Company
		default:
			return c.Location
		}
	case "contact_attribute":
		return e.contactAttr(ctx, ex.session, rule.AttributeKey)
	case "conversation_attribute":
		return e.conversationAttr(ctx, ex.session, rule.AttributeKey)
	}
	if key, ok := strings.CutPrefix(attr, "contact_attr."); ok {
		return e.contactAttr(ctx, ex.session, key)
	}
	if key, ok := strings.CutPrefix(attr, "conv_attr."); ok {
		return e.conversationAttr(ctx, ex.session, key)
	}
	return ""
}

func (e *Engine) sessionContact(ctx context.Context, session *convmodels.Session) *convmodels.Contact {
	if session.ContactID == "" {
		return nil
	}
	contact, err := e.convo.GetContact(ctx, session.ContactID)
	if err != nil {
		return nil
	}
	return contact
}

func (e *Engine) contactAttr(ctx context.Context, session *convmodels.Session, key string) string {
	if session.ContactID == "" || key == "" {
		return ""
	}
	attrs, err := e.convo.ContactAttributes(ctx, session.ContactID)
	if err != nil {
		return ""
	}
	for _, a := range attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func (e *Engine) conversationAttr(ctx context.Context, session *convmodels.Session, key string) string {
	if key == "" {
		return ""
	}
	attrs, err := e.convo.ConversationAttributes(ctx, session.ID)
	if err != nil {
		return ""
	}
	for _, a := range attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// applyOperator compares actual against expected. String comparisons are
// case-insensitive; numeric comparisons parse both sides as floats
// defaulting to 0.
func applyOperator(op, actual, expected string) bool {
	a := strings.ToLower(strings.TrimSpace(actual))
	b := strings.ToLower(strings.TrimSpace(expected))
	switch op {
	case "equals":
		return a == b
	case "not_equals":
		return a != b
	case "contains":
		return strings.Contains(a, b)
	case "not_contains":
		return !strings.Contains(a, b)
	case "starts_with":
		return strings.HasPrefix(a, b)
	case "ends_with":
		return strings.HasSuffix(a, b)
	case "is_empty":
		return a == ""
	case "is_not_empty":
		return a != ""
	case "greater_than":
		return parseFloat(a) > parseFloat(b)
	case "less_than":
		return parseFloat(a) < parseFloat(b)
	}
	return false
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

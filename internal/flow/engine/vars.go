package engine

import (
	"context"
	"regexp"
	"strings"

	convmodels "github.com/driftline/driftline/internal/conversation/models"
)

// identPattern matches {{ident}} placeholders. Dots allow the contact.*
// namespace.
var identPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)

// interpolate replaces {{var}} placeholders with values from vars; absent
// keys become the empty string.
func interpolate(text string, vars map[string]string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return identPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := identPattern.FindStringSubmatch(match)[1]
		return vars[key]
	})
}

// seedContactVars pre-populates flow variables from the session's linked
// contact, without overwriting keys already present.
func (e *Engine) seedContactVars(ctx context.Context, session *convmodels.Session, vars map[string]string) {
	if session.ContactID == "" {
		return
	}
	contact, err := e.convo.GetContact(ctx, session.ContactID)
	if err != nil {
		return
	}
	seed := func(key, value string) {
		if value == "" {
			return
		}
		if _, ok := vars[key]; !ok {
			vars[key] = value
		}
	}
	seed("contact.name", contact.Name)
	seed("contact.email", contact.Email)
	seed("contact.phone", contact.Phone)
	seed("contact.company", contact.Company)
	seed("contact.location", contact.Location)
	attrs, err := e.convo.ContactAttributes(ctx, session.ContactID)
	if err != nil {
		return
	}
	for _, a := range attrs {
		seed("contact."+a.Key, a.Value)
	}
}

// parseFormReply ingests an input_form reply of the shape
// "Label: value, Label: value" into vars keyed by field name.
func parseFormReply(reply string, fields []formFieldRef, vars map[string]string) {
	for _, part := range strings.Split(reply, ",") {
		part = strings.TrimSpace(part)
		for _, f := range fields {
			prefix := f.Label + ":"
			if len(part) >= len(prefix) && strings.EqualFold(part[:len(prefix)], prefix) {
				if value := strings.TrimSpace(part[len(prefix):]); value != "" {
					vars[f.Name] = value
				}
				break
			}
		}
	}
}

type formFieldRef struct {
	Name  string
	Label string
}

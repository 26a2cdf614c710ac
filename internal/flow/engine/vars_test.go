package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/driftline/driftline/internal/flow/models"
)

func TestInterpolate(t *testing.T) {
	vars := map[string]string{
		"name":          "Ada",
		"contact.email": "ada@example.com",
		"order_number":  "42",
	}

	tests := []struct {
		in   string
		want string
	}{
		{"Hello {{name}}!", "Hello Ada!"},
		{"{{ name }} / {{contact.email}}", "Ada / ada@example.com"},
		{"missing: [{{nope}}]", "missing: []"},
		{"no placeholders", "no placeholders"},
		{"order {{order_number}} for {{name}}", "order 42 for Ada"},
		{"{{1invalid}}", "{{1invalid}}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, interpolate(tt.in, vars), tt.in)
	}
}

func TestParseFormReply(t *testing.T) {
	fields := []formFieldRef{
		{Name: "full_name", Label: "Name"},
		{Name: "company", Label: "Company"},
		{Name: "email", Label: "Email"},
	}

	vars := map[string]string{}
	parseFormReply("Name: Grace Hopper, Company: Navy, Email: grace@example.com", fields, vars)
	assert.Equal(t, "Grace Hopper", vars["full_name"])
	assert.Equal(t, "Navy", vars["company"])
	assert.Equal(t, "grace@example.com", vars["email"])

	// labels match case-insensitively, unknown parts are ignored
	vars = map[string]string{}
	parseFormReply("name: Ada, Favorite: blue", fields, vars)
	assert.Equal(t, "Ada", vars["full_name"])
	assert.NotContains(t, vars, "company")

	// empty values do not overwrite
	vars = map[string]string{"company": "Acme"}
	parseFormReply("Company: ", fields, vars)
	assert.Equal(t, "Acme", vars["company"])
}

func TestApplyOperator(t *testing.T) {
	tests := []struct {
		op       string
		actual   string
		expected string
		want     bool
	}{
		{"equals", "Pricing", "pricing", true},
		{"equals", "a", "b", false},
		{"not_equals", "a", "b", true},
		{"contains", "I need a REFUND now", "refund", true},
		{"not_contains", "hello", "refund", true},
		{"starts_with", "Hello world", "hello", true},
		{"ends_with", "file.pdf", ".PDF", true},
		{"is_empty", "  ", "", true},
		{"is_not_empty", "x", "", true},
		{"greater_than", "10", "9.5", true},
		{"greater_than", "abc", "1", false}, // parse failure defaults to 0
		{"less_than", "2", "10", true},
		{"unknown_op", "a", "a", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, applyOperator(tt.op, tt.actual, tt.expected),
			"%s(%q, %q)", tt.op, tt.actual, tt.expected)
	}
}

func TestMatchKeywords(t *testing.T) {
	assert.True(t, matchKeywords(nil, "anything"))
	assert.True(t, matchKeywords([]string{"refund"}, "I want a Refund please"))
	assert.False(t, matchKeywords([]string{"refund"}, "hello"))
	assert.True(t, matchKeywords([]string{"", "hi"}, "hi there"))
}

func TestWaitDurationCaps(t *testing.T) {
	assert.Equal(t, 30*time.Second, waitDuration(&models.NodeData{Duration: 30, Unit: "seconds"}))
	assert.Equal(t, 2*time.Minute, waitDuration(&models.NodeData{Duration: 2, Unit: "minutes"}))
	// hours and days hit the 5 minute cap
	assert.Equal(t, maxWait, waitDuration(&models.NodeData{Duration: 1, Unit: "hours"}))
	assert.Equal(t, maxWait, waitDuration(&models.NodeData{Duration: 3, Unit: "days"}))
	assert.Equal(t, time.Duration(0), waitDuration(&models.NodeData{Duration: -1, Unit: "seconds"}))
}

func TestMessageDelayClamp(t *testing.T) {
	assert.Equal(t, time.Duration(0), messageDelay(0))
	assert.Equal(t, minMessageDelay, messageDelay(50))
	assert.Equal(t, 500*time.Millisecond, messageDelay(500))
	assert.Equal(t, maxMessageDelay, messageDelay(60000))
}

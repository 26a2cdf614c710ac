package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPreviewURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain url", "check https://example.com/page today", "https://example.com/page"},
		{"markdown preferred", "see https://other.com and [docs](https://example.com/docs)", "https://example.com/docs"},
		{"no url", "just text", ""},
		{"http scheme", "go to http://plain.example", "http://plain.example"},
		{"trailing punctuation excluded", "look: https://example.com/x)", "https://example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractPreviewURL(tt.in))
		})
	}
}

func TestParsePreviewHTML(t *testing.T) {
	doc := `<html><head>
		<title>Fallback Title</title>
		<meta property="og:title" content="Acme Pricing" />
		<meta property="og:description" content="Plans &amp; pricing for Acme">
		<meta content="https://cdn.example.com/og.png" property="og:image">
		<meta property="og:site_name" content="Acme">
	</head><body></body></html>`

	p := parsePreviewHTML("https://acme.example/pricing", doc)
	require.NotNil(t, p)
	assert.Equal(t, "https://acme.example/pricing", p.URL)
	assert.Equal(t, "Acme Pricing", p.Title)
	assert.Equal(t, "Plans & pricing for Acme", p.Description)
	assert.Equal(t, "https://cdn.example.com/og.png", p.Image)
	assert.Equal(t, "Acme", p.SiteName)
}

func TestParsePreviewHTMLTitleFallback(t *testing.T) {
	doc := `<html><head><title> Plain Page </title>
		<meta name="description" content="meta description"></head></html>`

	p := parsePreviewHTML("https://x.example", doc)
	require.NotNil(t, p)
	assert.Equal(t, "Plain Page", p.Title)
	assert.Equal(t, "meta description", p.Description)
}

func TestParsePreviewHTMLNoTitle(t *testing.T) {
	assert.Nil(t, parsePreviewHTML("https://x.example", `<html><body>nothing here</body></html>`))
}

package orchestrator

import (
	"context"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	convmodels "github.com/driftline/driftline/internal/conversation/models"
)

const (
	previewTimeout  = 5 * time.Second
	previewBodyCap  = 512 * 1024
	previewAgent    = "driftline-link-preview/1.0"
	previewMaxField = 512
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\((https?://[^\s)]+)\)`)
	plainURLPattern     = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	metaTagPattern      = regexp.MustCompile(`(?is)<meta\b[^>]*>`)
	metaKeyPattern      = regexp.MustCompile(`(?i)(?:property|name)\s*=\s*["']([^"']+)["']`)
	metaContentPattern  = regexp.MustCompile(`(?i)content\s*=\s*["']([^"']*)["']`)
	titleTagPattern     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// linkPreviewer fetches og:* metadata for URLs found in agent messages.
// Fetches are best-effort with a hard 5 second budget; anything that goes
// wrong yields no preview.
type linkPreviewer struct {
	client *http.Client
}

func newLinkPreviewer() *linkPreviewer {
	return &linkPreviewer{client: &http.Client{Timeout: previewTimeout}}
}

// Enrich extracts the first URL from text and returns its preview, or nil
// when there is no URL or the page yields no usable metadata.
func (p *linkPreviewer) Enrich(ctx context.Context, text string) *convmodels.LinkPreviewData {
	url := extractPreviewURL(text)
	if url == "" {
		return nil
	}
	return p.fetch(ctx, url)
}

// extractPreviewURL prefers a markdown-linked destination over a plain
// URL so "[docs](https://a)" beats an earlier bare link in the same text.
func extractPreviewURL(text string) string {
	if m := markdownLinkPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return plainURLPattern.FindString(text)
}

func (p *linkPreviewer) fetch(ctx context.Context, url string) *convmodels.LinkPreviewData {
	ctx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", previewAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, previewBodyCap))
	if err != nil {
		return nil
	}
	return parsePreviewHTML(url, string(body))
}

// parsePreviewHTML pulls og:title/og:description/og:image/og:site_name
// out of the document, falling back to <title>. A preview without a title
// is not worth attaching.
func parsePreviewHTML(url, doc string) *convmodels.LinkPreviewData {
	preview := &convmodels.LinkPreviewData{URL: url}

	for _, tag := range metaTagPattern.FindAllString(doc, -1) {
		key := firstGroup(metaKeyPattern, tag)
		content := previewField(firstGroup(metaContentPattern, tag))
		if content == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "og:title":
			preview.Title = content
		case "og:description", "description":
			if preview.Description == "" || strings.HasPrefix(strings.ToLower(key), "og:") {
				preview.Description = content
			}
		case "og:image":
			preview.Image = content
		case "og:site_name":
			preview.SiteName = content
		}
	}

	if preview.Title == "" {
		if m := titleTagPattern.FindStringSubmatch(doc); m != nil {
			preview.Title = previewField(m[1])
		}
	}
	if preview.Title == "" {
		return nil
	}
	return preview
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func previewField(s string) string {
	s = strings.TrimSpace(html.UnescapeString(s))
	if len(s) > previewMaxField {
		s = s[:previewMaxField]
	}
	return s
}

package document

import (
	"context"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jask/formdesk/internal/httpapi"
)

const finalContentPath = "/api/final-content"

// Preview is a rendered document. HTML is the backend content verbatim;
// Text is a tag-free rendering for terminals.
type Preview struct {
	HTML string
	Text string
}

// Previewer requests document previews.
type Previewer struct {
	t *httpapi.Transport
}

// NewPreviewer wraps a transport.
func NewPreviewer(t *httpapi.Transport) *Previewer {
	return &Previewer{t: t}
}

// Generate posts the payload as JSON and returns the rendered preview.
func (p *Previewer) Generate(ctx context.Context, payload Payload) (Preview, error) {
	var resp struct {
		Content string `json:"content"`
	}
	if err := p.t.PostJSON(ctx, "generate document", finalContentPath, payload, &resp); err != nil {
		return Preview{}, err
	}
	return Preview{HTML: resp.Content, Text: PlainText(resp.Content)}, nil
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy

	blockBoundary = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr|/ul|/ol)\b[^>]*>`)
	listItem      = regexp.MustCompile(`(?i)<\s*li\b[^>]*>`)
)

func plainTextPolicy() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// PlainText strips markup from backend HTML, keeping block boundaries as
// line breaks and list items as "- " lines.
func PlainText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	marked := blockBoundary.ReplaceAllString(raw, "$0\n")
	marked = listItem.ReplaceAllString(marked, "$0- ")
	stripped := html.UnescapeString(plainTextPolicy().Sanitize(marked))

	var lines []string
	blank := false
	for _, line := range strings.Split(stripped, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

package render

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// DefaultExcerptLength is the rune budget for derived excerpts.
const DefaultExcerptLength = 160

// Renderer turns post markdown into sanitized HTML and plain-text excerpts.
type Renderer struct {
	engine    goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// New builds a renderer with GFM enabled and YouTube embeds allowed.
func New() *Renderer {
	return &Renderer{
		engine: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML(), html.WithUnsafe()),
		),
		sanitizer: contentPolicy(),
	}
}

func contentPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("iframe")
	policy.AllowAttrs("class", "data-video-embed").OnElements("div")
	policy.AllowAttrs("src").Matching(embedSrcPattern).OnElements("iframe")
	policy.AllowAttrs("title", "allow", "allowfullscreen", "frameborder", "loading").OnElements("iframe")
	return policy
}

// HTML renders markdown. Raw HTML in the source survives only where the
// sanitizer allows it.
func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(expandEmbeds(markdown)), &buf); err != nil {
		return "", err
	}
	return string(r.sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// Excerpt returns the first maxRunes of the rendered text, cut at a word
// boundary. Headings and code blocks are skipped.
func (r *Renderer) Excerpt(markdown string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptLength
	}

	rendered, err := r.HTML(markdown)
	if err != nil {
		return truncate(collapseSpace(markdown), maxRunes)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return truncate(collapseSpace(markdown), maxRunes)
	}

	var parts []string
	doc.Find("p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("li, blockquote").Length() > 0 {
			return
		}
		if text := collapseSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, collapseSpace(doc.Text()))
	}

	return truncate(strings.Join(parts, " "), maxRunes)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:maxRunes])
	if idx := strings.LastIndex(cut, " "); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

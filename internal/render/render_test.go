package render

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHTMLSanitizesScripts(t *testing.T) {
	r := New()
	out, err := r.HTML("# Title\n\n<script>alert(1)</script>\n\nSome **bold** text.")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out, "<script") {
		t.Fatalf("script survived sanitization: %s", out)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Fatalf("expected markdown emphasis, got %s", out)
	}
}

func TestHTMLExpandsYouTubeLinks(t *testing.T) {
	r := New()
	md := "Intro\n\nhttps://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1m30s\n\n```\nhttps://youtu.be/dQw4w9WgXcQ\n```"
	out, err := r.HTML(md)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Count(out, "<iframe") != 1 {
		t.Fatalf("expected exactly one iframe, got %s", out)
	}
	if !strings.Contains(out, "https://www.youtube.com/embed/dQw4w9WgXcQ?") || !strings.Contains(out, "start=90") {
		t.Fatalf("unexpected embed src: %s", out)
	}
}

func TestYouTubeEmbedURLRejectsOtherHosts(t *testing.T) {
	cases := []string{
		"https://vimeo.com/123456",
		"https://youtube.com/watch",
		"https://youtube.com/watch?v=bad id",
	}
	for _, raw := range cases {
		if _, ok := youTubeEmbedURL(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestExcerptSkipsHeadingsAndCode(t *testing.T) {
	r := New()
	md := "# Heading\n\nFirst paragraph with *emphasis*.\n\n```go\nfmt.Println(\"x\")\n```\n\n- item one\n- item two"
	got := r.Excerpt(md, 200)
	want := "First paragraph with emphasis. item one item two"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExcerptTruncatesAtWordBoundary(t *testing.T) {
	r := New()
	md := strings.Repeat("lorem ipsum ", 40)
	got := r.Excerpt(md, 50)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	if utf8.RuneCountInString(got) > 51 {
		t.Fatalf("excerpt too long: %d runes", utf8.RuneCountInString(got))
	}
	if strings.Contains(got, "ipsu…") || strings.Contains(got, "lore…") {
		t.Fatalf("excerpt cut mid-word: %q", got)
	}
}

package render

import (
	"fmt"
	htmlstd "html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	embedLinePattern = regexp.MustCompile(`^\s*<?(https?://[^\s>]+)>?\s*$`)
	embedSrcPattern  = regexp.MustCompile(`^https://www\.youtube(?:-nocookie)?\.com/embed/[A-Za-z0-9_-]+(?:\?[^\s"]*)?$`)
	embedTimePattern = regexp.MustCompile(`(?i)(\d+)(h|m|s)`)
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
)

// expandEmbeds replaces a YouTube link standing alone on a line with an
// iframe. Fenced and indented code is left untouched.
func expandEmbeds(markdown string) string {
	if !strings.Contains(markdown, "youtu") {
		return markdown
	}

	lines := strings.Split(markdown, "\n")
	fence := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(trimmed, fence):
				fence = ""
			}
			continue
		}
		if fence != "" || strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			continue
		}

		match := embedLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if src, ok := youTubeEmbedURL(match[1]); ok {
			lines[i] = fmt.Sprintf(
				`<div class="video-embed" data-video-embed="youtube"><iframe src="%s" title="YouTube video" loading="lazy" allow="accelerometer; encrypted-media; picture-in-picture" allowfullscreen frameborder="0"></iframe></div>`,
				htmlstd.EscapeString(src),
			)
		}
	}
	return strings.Join(lines, "\n")
}

func fenceMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```"
	case strings.HasPrefix(line, "~~~"):
		return "~~~"
	}
	return ""
}

func youTubeEmbedURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")
	var id string
	switch {
	case host == "youtu.be":
		id, _, _ = strings.Cut(path, "/")
	case host == "youtube.com" || host == "m.youtube.com":
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "embed/"), strings.HasPrefix(path, "live/"):
			_, rest, _ := strings.Cut(path, "/")
			id, _, _ = strings.Cut(rest, "/")
		}
	default:
		return "", false
	}
	if !videoIDPattern.MatchString(id) {
		return "", false
	}

	values := url.Values{}
	values.Set("rel", "0")
	if start := startSeconds(u.Query()); start > 0 {
		values.Set("start", strconv.Itoa(start))
	}
	return "https://www.youtube.com/embed/" + id + "?" + values.Encode(), true
}

// startSeconds accepts t=90, t=1m30s and start=90.
func startSeconds(q url.Values) int {
	value := q.Get("start")
	if value == "" {
		value = q.Get("t")
	}
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return max(n, 0)
	}

	total := 0
	for _, m := range embedTimePattern.FindAllStringSubmatch(value, -1) {
		n, _ := strconv.Atoi(m[1])
		switch strings.ToLower(m[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total
}

package service

import (
	"strings"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/db"
)

// PublishedAtDecision is the effect a status transition has on publishedAt.
type PublishedAtDecision int

const (
	KeepPublishedAt PublishedAtDecision = iota
	SetPublishedAtNow
)

// Decide maps a (previous, requested) status pair to its publishedAt effect.
// Every transition is legal; only entering published from elsewhere stamps
// the clock. previous is empty for a post that does not exist yet.
func Decide(previous, requested db.PostStatus) PublishedAtDecision {
	if requested == db.PostStatusPublished && previous != db.PostStatusPublished {
		return SetPublishedAtNow
	}
	return KeepPublishedAt
}

// ParseStatus validates a status string. Blank input yields fallback.
func ParseStatus(raw string, fallback db.PostStatus) (db.PostStatus, error) {
	switch status := db.PostStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case "":
		return fallback, nil
	case db.PostStatusDraft, db.PostStatusPublished, db.PostStatusHidden:
		return status, nil
	default:
		return "", invalid("status", "unknown status %q", raw)
	}
}

// ParsePostType validates a post type string. Blank input yields fallback.
func ParsePostType(raw string, fallback db.PostType) (db.PostType, error) {
	switch typ := db.PostType(strings.ToLower(strings.TrimSpace(raw))); typ {
	case "":
		return fallback, nil
	case db.PostTypeArticle, db.PostTypePage:
		return typ, nil
	default:
		return "", invalid("type", "unknown type %q", raw)
	}
}

// applyStatus moves post to requested. publishedAt is written at most once
// over the post's lifetime; explicit is used instead of now when given.
func applyStatus(post *db.Post, requested db.PostStatus, explicit *time.Time, now time.Time) {
	previous := post.Status
	post.Status = requested
	if post.PublishedAt != nil {
		return
	}
	if Decide(previous, requested) != SetPublishedAtNow {
		return
	}
	stamp := now
	if explicit != nil {
		stamp = *explicit
	}
	stamp = stamp.UTC()
	post.PublishedAt = &stamp
}

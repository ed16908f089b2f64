package handler

import (
	"encoding/json"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/db"
)

type authorSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type taxonomySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type postView struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Slug           string            `json:"slug"`
	Content        string            `json:"content"`
	Excerpt        string            `json:"excerpt"`
	Thumbnail      string            `json:"thumbnail"`
	Status         db.PostStatus     `json:"status"`
	Type           db.PostType       `json:"type"`
	ViewCount      int64             `json:"viewCount"`
	LikeCount      int64             `json:"likeCount"`
	CommentCount   int64             `json:"commentCount"`
	SEOTitle       string            `json:"seoTitle"`
	SEODescription string            `json:"seoDescription"`
	SEOKeywords    string            `json:"seoKeywords"`
	PublishedAt    *time.Time        `json:"publishedAt"`
	ScheduledAt    *time.Time        `json:"scheduledAt"`
	Author         authorSummary     `json:"author"`
	Categories     []taxonomySummary `json:"categories"`
	Tags           []taxonomySummary `json:"tags"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func newPostView(p db.Post) postView {
	return postView{
		ID:             p.ID,
		Title:          p.Title,
		Slug:           p.Slug,
		Content:        p.Content,
		Excerpt:        p.Excerpt,
		Thumbnail:      p.Thumbnail,
		Status:         p.Status,
		Type:           p.Type,
		ViewCount:      p.ViewCount,
		LikeCount:      p.LikeCount,
		CommentCount:   p.CommentCount,
		SEOTitle:       p.SEOTitle,
		SEODescription: p.SEODescription,
		SEOKeywords:    p.SEOKeywords,
		PublishedAt:    p.PublishedAt,
		ScheduledAt:    p.ScheduledAt,
		Author:         authorSummary{ID: p.Author.ID, Name: p.Author.Name, Email: p.Author.Email},
		Categories:     mapSlice(p.Categories, categorySummary),
		Tags:           mapSlice(p.Tags, tagSummary),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func categorySummary(c db.Category) taxonomySummary {
	return taxonomySummary{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

func tagSummary(t db.Tag) taxonomySummary {
	return taxonomySummary{ID: t.ID, Name: t.Name, Slug: t.Slug}
}

type categoryView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Status      db.CategoryStatus `json:"status"`
	PostCount   int64             `json:"postCount"`
	SortOrder   int               `json:"sortOrder"`
	ParentID    *string           `json:"parentId"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func newCategoryView(c db.Category) categoryView {
	return categoryView{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Image:       c.Image,
		Status:      c.Status,
		PostCount:   c.PostCount,
		SortOrder:   c.SortOrder,
		ParentID:    c.ParentID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type tagView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	PostCount   int64     `json:"postCount"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newTagView(t db.Tag) tagView {
	return tagView{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		Description: t.Description,
		Color:       t.Color,
		PostCount:   t.PostCount,
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserView(u db.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Avatar:    u.Avatar,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

type commentView struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	PostID    string        `json:"postId"`
	ParentID  *string       `json:"parentId"`
	Author    authorSummary `json:"author"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func newCommentView(c db.Comment) commentView {
	return commentView{
		ID:        c.ID,
		Content:   c.Content,
		PostID:    c.PostID,
		ParentID:  c.ParentID,
		Author:    authorSummary{ID: c.Author.ID, Name: c.Author.Name, Email: c.Author.Email},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type reactionView struct {
	ID        string          `json:"id"`
	Type      db.ReactionType `json:"type"`
	PostID    string          `json:"postId"`
	UserID    string          `json:"userId"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func newReactionView(r db.Reaction) reactionView {
	return reactionView{ID: r.ID, Type: r.Type, PostID: r.PostID, UserID: r.UserID, UpdatedAt: r.UpdatedAt}
}

type mediaView struct {
	ID           string          `json:"id"`
	Filename     string          `json:"filename"`
	OriginalName string          `json:"originalName"`
	MimeType     string          `json:"mimeType"`
	Size         int64           `json:"size"`
	URL          string          `json:"url"`
	Width        int             `json:"width,omitempty"`
	Height       int             `json:"height,omitempty"`
	Meta         json.RawMessage `json:"meta,omitempty"`
	Alt          string          `json:"alt"`
	Description  string          `json:"description"`
	UploadedByID string          `json:"uploadedById"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func newMediaView(m db.Media) mediaView {
	return mediaView{
		ID:           m.ID,
		Filename:     m.Filename,
		OriginalName: m.OriginalName,
		MimeType:     m.MimeType,
		Size:         m.Size,
		URL:          m.URL,
		Width:        m.Width,
		Height:       m.Height,
		Meta:         json.RawMessage(m.Meta),
		Alt:          m.Alt,
		Description:  m.Description,
		UploadedByID: m.UploadedByID,
		CreatedAt:    m.CreatedAt,
	}
}

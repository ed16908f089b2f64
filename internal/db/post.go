package db

import "time"

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusHidden    PostStatus = "hidden"
)

// PostType distinguishes regular articles from standalone pages.
type PostType string

const (
	PostTypeArticle PostType = "article"
	PostTypePage    PostType = "page"
)

// Post is a blog post.
type Post struct {
	Base
	Title          string     `gorm:"not null"`
	Slug           string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	Content        string     `gorm:"type:text;not null"`
	Excerpt        string     `gorm:"type:text"`
	Thumbnail      string
	Status         PostStatus `gorm:"type:varchar(16);not null;index"`
	Type           PostType   `gorm:"type:varchar(16);not null"`
	ViewCount      int64      `gorm:"not null;default:0"`
	LikeCount      int64      `gorm:"not null;default:0"`
	CommentCount   int64      `gorm:"not null;default:0"`
	SEOTitle       string     `gorm:"column:seo_title"`
	SEODescription string     `gorm:"column:seo_description;type:text"`
	SEOKeywords    string     `gorm:"column:seo_keywords"`
	PublishedAt    *time.Time `gorm:"index"`
	ScheduledAt    *time.Time `gorm:"index"`
	AuthorID       string     `gorm:"type:varchar(36);not null;index"`
	Author         User       `gorm:"foreignKey:AuthorID"`
	Categories     []Category `gorm:"many2many:post_categories;"`
	Tags           []Tag      `gorm:"many2many:post_tags;"`
}

// CategoryIDs returns the ids of the loaded categories.
func (p *Post) CategoryIDs() []string {
	ids := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// TagIDs returns the ids of the loaded tags.
func (p *Post) TagIDs() []string {
	ids := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

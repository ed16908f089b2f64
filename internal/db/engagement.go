package db

import (
	"time"

	"gorm.io/datatypes"
)

// Comment is a reader comment on a post. ParentID is stored for threading.
type Comment struct {
	Base
	Content  string  `gorm:"type:text;not null"`
	PostID   string  `gorm:"type:varchar(36);not null;index"`
	AuthorID string  `gorm:"type:varchar(36);not null;index"`
	Author   User    `gorm:"foreignKey:AuthorID"`
	ParentID *string `gorm:"type:varchar(36);index"`
}

// ReactionType enumerates the supported reactions.
type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionLove  ReactionType = "love"
	ReactionHaha  ReactionType = "haha"
	ReactionWow   ReactionType = "wow"
	ReactionSad   ReactionType = "sad"
	ReactionAngry ReactionType = "angry"
)

// Reaction is one user's reaction to one post.
type Reaction struct {
	Base
	Type   ReactionType `gorm:"type:varchar(16);not null"`
	PostID string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_reactions_post_user"`
	UserID string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_reactions_post_user"`
}

// Media describes an uploaded file held by the blob store.
type Media struct {
	Base
	Filename     string `gorm:"not null"`
	OriginalName string
	MimeType     string `gorm:"type:varchar(128)"`
	Size         int64
	StorageKey   string `gorm:"type:varchar(255);uniqueIndex;not null"`
	URL          string `gorm:"not null"`
	Width        int
	Height       int
	Meta         datatypes.JSON
	Alt          string
	Description  string `gorm:"type:text"`
	UploadedByID string `gorm:"type:varchar(36);index"`
}

// RefreshToken records an outstanding refresh token when no redis is configured.
type RefreshToken struct {
	JTI       string    `gorm:"type:varchar(64);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);not null;index"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

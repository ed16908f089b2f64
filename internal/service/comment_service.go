package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"gorm.io/gorm"
)

const maxCommentLength = 5000

// CommentService manages reader comments and keeps posts.comment_count in
// line with the comments table.
type CommentService struct {
	db     *gorm.DB
	policy auth.Policy
}

// CommentInput is accepted by Create. ParentID must point at a comment on
// the same post.
type CommentInput struct {
	Content  string
	ParentID *string
}

// CommentListResult is one page of comments.
type CommentListResult struct {
	Items      []db.Comment
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

func NewCommentService(gdb *gorm.DB) *CommentService {
	return &CommentService{db: gdb}
}

// Create stores a comment by author on the post.
func (s *CommentService) Create(ctx context.Context, postID string, input CommentInput, author auth.Principal) (*db.Comment, error) {
	if author.Anonymous() {
		return nil, ErrForbidden
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, invalid("content", "content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, invalid("content", "content must be at most %d characters", maxCommentLength)
	}

	var comment db.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}

		var parentID *string
		if input.ParentID != nil && strings.TrimSpace(*input.ParentID) != "" {
			id := strings.TrimSpace(*input.ParentID)
			var parent db.Comment
			if err := tx.Select("id", "post_id").First(&parent, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return invalid("parentId", "parent comment does not exist")
				}
				return err
			}
			if parent.PostID != postID {
				return invalid("parentId", "parent comment belongs to another post")
			}
			parentID = &id
		}

		comment = db.Comment{
			Content:  content,
			PostID:   postID,
			AuthorID: author.ID,
			ParentID: parentID,
		}
		if err := tx.Omit("Author").Create(&comment).Error; err != nil {
			return err
		}
		return recountComments(tx, postID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Author").First(&comment, "id = ?", comment.ID).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// List returns comments on a post, newest first.
func (s *CommentService) List(ctx context.Context, postID string, page, limit int) (*CommentListResult, error) {
	conn := s.db.WithContext(ctx)
	if err := requirePost(conn, postID); err != nil {
		return nil, err
	}

	page, limit = normalizePage(page, limit)
	result := &CommentListResult{Page: page, Limit: limit}
	if err := conn.Model(&db.Comment{}).Where("post_id = ?", postID).Count(&result.Total).Error; err != nil {
		return nil, err
	}
	if err := conn.Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at desc").Order("id asc").
		Limit(limit).Offset((page - 1) * limit).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}
	result.TotalPages = totalPages(result.Total, limit)
	return result, nil
}

// Remove deletes a comment and its direct replies. Only the comment's author
// or an admin may remove it.
func (s *CommentService) Remove(ctx context.Context, id string, actor auth.Principal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment db.Comment
		if err := tx.First(&comment, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		if !s.policy.Authorize(actor, auth.ActionDeleteComment, comment.AuthorID) {
			return ErrForbidden
		}
		if err := tx.Where("id = ? OR parent_id = ?", comment.ID, comment.ID).Delete(&db.Comment{}).Error; err != nil {
			return err
		}
		return recountComments(tx, comment.PostID)
	})
}

func requirePost(conn *gorm.DB, postID string) error {
	var count int64
	if err := conn.Model(&db.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPostNotFound
	}
	return nil
}

func recountComments(conn *gorm.DB, postID string) error {
	return conn.Model(&db.Post{}).
		Where("id = ?", postID).
		UpdateColumn("comment_count", gorm.Expr("(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)")).Error
}

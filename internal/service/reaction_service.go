package service

import (
	"context"
	"errors"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var reactionTypes = []db.ReactionType{
	db.ReactionLike, db.ReactionLove, db.ReactionHaha,
	db.ReactionWow, db.ReactionSad, db.ReactionAngry,
}

// ReactionService stores one reaction per user per post. posts.like_count
// follows the number of "like" reactions.
type ReactionService struct {
	db *gorm.DB
}

func NewReactionService(gdb *gorm.DB) *ReactionService {
	return &ReactionService{db: gdb}
}

// React sets the user's reaction on a post, replacing any earlier one.
func (s *ReactionService) React(ctx context.Context, postID, rawType string, user auth.Principal) (*db.Reaction, error) {
	if user.Anonymous() {
		return nil, ErrForbidden
	}
	typ, err := ParseReactionType(rawType)
	if err != nil {
		return nil, err
	}

	reaction := db.Reaction{Type: typ, PostID: postID, UserID: user.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
		}).Create(&reaction).Error; err != nil {
			return err
		}
		// On conflict the stored row keeps its original id.
		var stored db.Reaction
		if err := tx.First(&stored, "post_id = ? AND user_id = ?", postID, user.ID).Error; err != nil {
			return err
		}
		reaction = stored
		return recountLikes(tx, postID)
	})
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

// Remove deletes the user's reaction on a post.
func (s *ReactionService) Remove(ctx context.Context, postID string, user auth.Principal) error {
	if user.Anonymous() {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, user.ID).Delete(&db.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReactionNotFound
		}
		return recountLikes(tx, postID)
	})
}

// Counts returns the number of reactions per type; every type is present.
func (s *ReactionService) Counts(ctx context.Context, postID string) (map[db.ReactionType]int64, error) {
	conn := s.db.WithContext(ctx)
	if err := requirePost(conn, postID); err != nil {
		return nil, err
	}

	var rows []struct {
		Type  db.ReactionType
		Count int64
	}
	if err := conn.Model(&db.Reaction{}).
		Select("type, COUNT(*) AS count").
		Where("post_id = ?", postID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[db.ReactionType]int64, len(reactionTypes))
	for _, t := range reactionTypes {
		counts[t] = 0
	}
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

// Mine returns the user's reaction on a post, or ErrReactionNotFound.
func (s *ReactionService) Mine(ctx context.Context, postID string, user auth.Principal) (*db.Reaction, error) {
	var reaction db.Reaction
	if err := s.db.WithContext(ctx).First(&reaction, "post_id = ? AND user_id = ?", postID, user.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReactionNotFound
		}
		return nil, err
	}
	return &reaction, nil
}

// ParseReactionType accepts one of the supported reactions; blank means like.
func ParseReactionType(raw string) (db.ReactionType, error) {
	value := db.ReactionType(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return db.ReactionLike, nil
	}
	for _, t := range reactionTypes {
		if t == value {
			return value, nil
		}
	}
	return "", invalid("type", "unknown reaction %q", raw)
}

func recountLikes(conn *gorm.DB, postID string) error {
	return conn.Model(&db.Post{}).
		Where("id = ?", postID).
		UpdateColumn("like_count", gorm.Expr(
			"(SELECT COUNT(*) FROM reactions WHERE reactions.post_id = posts.id AND reactions.type = ?)", db.ReactionLike,
		)).Error
}

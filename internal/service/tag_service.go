package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"gorm.io/gorm"
)

var tagColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// TagService wraps tag related operations.
type TagService struct {
	db     *gorm.DB
	policy auth.Policy
}

// TagInput is accepted by Create. IsActive defaults to true.
type TagInput struct {
	Name        string
	Slug        string
	Description string
	Color       string
	IsActive    *bool
}

// TagPatch is accepted by Update; nil fields are left unchanged.
type TagPatch struct {
	Name        *string
	Slug        *string
	Description *string
	Color       *string
	IsActive    *bool
}

// TagListResult is one page of tags.
type TagListResult struct {
	Items      []db.Tag
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB) *TagService {
	return &TagService{db: gdb}
}

// FindOrCreate returns the tag matching name by id, slug or exact name, or
// creates one. created reports a new row.
func (s *TagService) FindOrCreate(ctx context.Context, name string) (*db.Tag, bool, error) {
	return findOrCreateTag(s.db.WithContext(ctx), name)
}

func findOrCreateTag(conn *gorm.DB, name string) (*db.Tag, bool, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return nil, false, ErrNameRequired
	}

	if found, err := lookupTag(conn, key); err != nil || found != nil {
		return found, false, err
	}

	var created db.Tag
	for attempt := 0; attempt < 2; attempt++ {
		err := conn.Transaction(func(tx *gorm.DB) error {
			slugValue, err := uniqueSlug(tx, tagKind.table, key, "untitled", "")
			if err != nil {
				return err
			}
			created = db.Tag{
				Name:        key,
				Slug:        slugValue,
				Description: "Tag for " + key,
				IsActive:    true,
			}
			return tx.Create(&created).Error
		})
		if err == nil {
			return &created, true, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, false, err
		}
		if found, lookupErr := lookupTag(conn, key); lookupErr != nil || found != nil {
			return found, false, lookupErr
		}
	}
	return nil, false, fmt.Errorf("create tag %q: %w", key, ErrSlugConflict)
}

func lookupTag(conn *gorm.DB, key string) (*db.Tag, error) {
	for _, cond := range taxonomyLookups(key) {
		var tag db.Tag
		err := conn.Where(cond.query, cond.value).First(&tag).Error
		if err == nil {
			return &tag, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// Recount recomputes post_count for the given tags.
func (s *TagService) Recount(ctx context.Context, ids ...string) error {
	return recount(s.db.WithContext(ctx), tagKind, ids)
}

// Create inserts a new tag with unique name.
func (s *TagService) Create(ctx context.Context, input TagInput, actor auth.Principal) (*db.Tag, error) {
	if !s.policy.Authorize(actor, auth.ActionManageTaxonomy, "") {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	color, err := normalizeColor(input.Color)
	if err != nil {
		return nil, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	var tag db.Tag
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&db.Tag{}).Where("name = ?", name).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrTagExists
		}

		candidate := input.Slug
		if strings.TrimSpace(candidate) == "" {
			candidate = name
		}
		slugValue, err := uniqueSlug(tx, tagKind.table, candidate, "untitled", "")
		if err != nil {
			return err
		}

		tag = db.Tag{
			Name:        name,
			Slug:        slugValue,
			Description: strings.TrimSpace(input.Description),
			Color:       color,
			IsActive:    active,
		}
		return tx.Create(&tag).Error
	})
	if db.IsUniqueViolation(err) {
		return nil, ErrTagExists
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Update changes the tag while keeping name and slug unique.
func (s *TagService) Update(ctx context.Context, id string, patch TagPatch, actor auth.Principal) (*db.Tag, error) {
	if !s.policy.Authorize(actor, auth.ActionManageTaxonomy, "") {
		return nil, ErrForbidden
	}

	var tag db.Tag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tag, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTagNotFound
			}
			return err
		}

		renamed := false
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return ErrNameRequired
			}
			if name != tag.Name {
				var clash int64
				if err := tx.Model(&db.Tag{}).Where("name = ? AND id <> ?", name, id).Count(&clash).Error; err != nil {
					return err
				}
				if clash > 0 {
					return ErrTagExists
				}
				tag.Name = name
				renamed = true
			}
		}

		switch {
		case patch.Slug != nil && strings.TrimSpace(*patch.Slug) != "":
			slugValue, err := uniqueSlug(tx, tagKind.table, *patch.Slug, tag.Name, tag.ID)
			if err != nil {
				return err
			}
			tag.Slug = slugValue
		case renamed:
			slugValue, err := uniqueSlug(tx, tagKind.table, tag.Name, "untitled", tag.ID)
			if err != nil {
				return err
			}
			tag.Slug = slugValue
		}

		if patch.Description != nil {
			tag.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Color != nil {
			color, err := normalizeColor(*patch.Color)
			if err != nil {
				return err
			}
			tag.Color = color
		}
		if patch.IsActive != nil {
			tag.IsActive = *patch.IsActive
		}

		return tx.Save(&tag).Error
	})
	if db.IsUniqueViolation(err) {
		return nil, ErrTagExists
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Delete removes the tag and its post relations.
func (s *TagService) Delete(ctx context.Context, id string, actor auth.Principal) error {
	if !s.policy.Authorize(actor, auth.ActionManageTaxonomy, "") {
		return ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag db.Tag
		if err := tx.First(&tag, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTagNotFound
			}
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
}

// Get loads a tag by id.
func (s *TagService) Get(ctx context.Context, id string) (*db.Tag, error) {
	var tag db.Tag
	if err := s.db.WithContext(ctx).First(&tag, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// GetBySlug loads a tag by slug.
func (s *TagService) GetBySlug(ctx context.Context, slugValue string) (*db.Tag, error) {
	var tag db.Tag
	if err := s.db.WithContext(ctx).First(&tag, "slug = ?", slugValue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// List returns tags ordered by name. Status accepts "active" or "inactive".
func (s *TagService) List(ctx context.Context, filter TaxonomyFilter) (*TagListResult, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	var active *bool
	switch strings.ToLower(strings.TrimSpace(filter.Status)) {
	case "":
	case "active":
		active = new(bool)
		*active = true
	case "inactive":
		active = new(bool)
	default:
		return nil, invalid("status", "unknown tag status %q", filter.Status)
	}
	search := strings.TrimSpace(filter.Search)

	scope := func(query *gorm.DB) *gorm.DB {
		if search != "" {
			query = query.Where(likeClause("name"), likePattern(search))
		}
		if active != nil {
			query = query.Where("is_active = ?", *active)
		}
		return query
	}

	conn := s.db.WithContext(ctx)
	result := &TagListResult{Page: page, Limit: limit}
	if err := conn.Model(&db.Tag{}).Scopes(scope).Count(&result.Total).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&db.Tag{}).Scopes(scope).
		Order("name asc").
		Limit(limit).Offset((page - 1) * limit).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}
	result.TotalPages = totalPages(result.Total, limit)
	return result, nil
}

// Popular returns the active tags with the most posts.
func (s *TagService) Popular(ctx context.Context, limit int) ([]db.Tag, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var tags []db.Tag
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND post_count > 0", true).
		Order("post_count desc").
		Order("name asc").
		Limit(limit).
		Find(&tags).Error
	return tags, err
}

// PostsIn lists published posts carrying a tag, newest publication first.
func (s *TagService) PostsIn(ctx context.Context, id string, page, limit int) (*PostListResult, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return listPublishedIn(s.db.WithContext(ctx), tagKind, id, page, limit)
}

func normalizeColor(raw string) (string, error) {
	color := strings.TrimSpace(raw)
	if color == "" {
		return "", nil
	}
	if !tagColorPattern.MatchString(color) {
		return "", invalid("color", "color must be a hex value like #1e90ff")
	}
	return strings.ToLower(color), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"gorm.io/gorm"
)

// CategoryService wraps category related operations.
type CategoryService struct {
	db     *gorm.DB
	policy auth.Policy
}

// CategoryInput is accepted by Create.
type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	Image       string
	Status      string
	SortOrder   int
	ParentID    *string
}

// CategoryPatch is accepted by Update; nil fields are left unchanged.
type CategoryPatch struct {
	Name        *string
	Slug        *string
	Description *string
	Image       *string
	Status      *string
	SortOrder   *int
	ParentID    *string
}

// TaxonomyFilter narrows category and tag listings.
type TaxonomyFilter struct {
	Search string
	Status string
	Page   int
	Limit  int
}

// CategoryListResult is one page of categories.
type CategoryListResult struct {
	Items      []db.Category
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

// FindOrCreate returns the category identified by nameOrID, creating it when
// no category matches by id, slug or name. created reports a new row.
func (s *CategoryService) FindOrCreate(ctx context.Context, nameOrID string) (*db.Category, bool, error) {
	return findOrCreateCategory(s.db.WithContext(ctx), nameOrID)
}

func findOrCreateCategory(conn *gorm.DB, nameOrID string) (*db.Category, bool, error) {
	key := strings.TrimSpace(nameOrID)
	if key == "" {
		return nil, false, ErrNameRequired
	}

	if found, err := lookupCategory(conn, key); err != nil || found != nil {
		return found, false, err
	}

	var created db.Category
	for attempt := 0; attempt < 2; attempt++ {
		err := conn.Transaction(func(tx *gorm.DB) error {
			slugValue, err := uniqueSlug(tx, categoryKind.table, key, "untitled", "")
			if err != nil {
				return err
			}
			created = db.Category{
				Name:        key,
				Slug:        slugValue,
				Description: "Category for " + key,
				Status:      db.CategoryStatusActive,
			}
			return tx.Create(&created).Error
		})
		if err == nil {
			return &created, true, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, false, err
		}
		// Lost a race: the winner may hold our name, or only our slug.
		if found, lookupErr := lookupCategory(conn, key); lookupErr != nil || found != nil {
			return found, false, lookupErr
		}
	}
	return nil, false, fmt.Errorf("create category %q: %w", key, ErrSlugConflict)
}

func lookupCategory(conn *gorm.DB, key string) (*db.Category, error) {
	for _, cond := range taxonomyLookups(key) {
		var category db.Category
		err := conn.Where(cond.query, cond.value).First(&category).Error
		if err == nil {
			return &category, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// Recount recomputes post_count for the given categories.
func (s *CategoryService) Recount(ctx context.Context, ids ...string) error {
	return recount(s.db.WithContext(ctx), categoryKind, ids)
}

// Create inserts a category with a unique name and slug.
func (s *CategoryService) Create(ctx context.Context, input CategoryInput, actor auth.Principal) (*db.Category, error) {
	if !s.policy.Authorize(actor, auth.ActionManageTaxonomy, "") {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	status, err := parseCategoryStatus(input.Status)
	if err != nil {
		return nil, err
	}

	var category db.Category
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&db.Category{}).Where("name = ?", name).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrCategoryExists
		}

		candidate := input.Slug
		if strings.TrimSpace(candidate) == "" {
			candidate = name
		}
		slugValue, err := uniqueSlug(tx, categoryKind.table, candidate, "untitled", "")
		if err != nil {
			return err
		}

		category = db.Category{
			Name:        name,
			Slug:        slugValue,
			Description: strings.TrimSpace(input.Description),
			Image:       strings.TrimSpace(input.Image),
			Status:      status,
			SortOrder:   input.SortOrder,
			ParentID:    input.ParentID,
		}
		return tx.Create(&category).Error
	})
	if db.IsUniqueViolation(err) {
		return nil, ErrCategoryExists
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// Update changes a category. Renaming re-derives the slug unless one is given.
func (s *CategoryService) Update(ctx context.Context, id string, patch CategoryPatch, actor auth.Principal) (*db.Category, error) {
	if !s.policy.Authorize(actor, auth.ActionManageTaxonomy, "") {
		return nil, ErrForbidden
	}

	var category db.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}

		renamed := false
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return ErrNameRequired
			}
			if name != category.Name {
				var clash int64
				if err := tx.Model(&db.Category{}).Where("name = ? AND id <> ?", name, id).Count(&clash).Error; err != nil {
					return err
				}
				if clash > 0 {
					return ErrCategoryExists
				}
				category.Name = name
				renamed = true
			}
		}

		switch {
		case patch.Slug != nil && strings.TrimSpace(*patch.Slug) != "":
			slugValue, err := uniqueSlug(tx, categoryKind.table, *patch.Slug, category.Name, category.ID)
			if err != nil {
				return err
			}
			category.Slug = slugValue
		case renamed:
			slugValue, err := uniqueSlug(tx, categoryKind.table, category.Name, "untitled", category.ID)
			if err != nil {
				return err
			}
			category.Slug = slugValue
		}

		if patch.Description != nil {
			category.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Image != nil {
			category.Image = strings.TrimSpace(*patch.Image)
		}
		if patch.Status != nil {
			status, err := parseCategoryStatus(*patch.Status)
			if err != nil {
				return err
			}
			category.Status = status
		}
		if patch.SortOrder != nil {
			category.SortOrder = *patch.SortOrder
		}
		if patch.ParentID != nil {
			if *patch.ParentID == category.ID {
				return invalid("parentId", "a category cannot be its own parent")
			}
			if *patch.ParentID == "" {
				category.ParentID = nil
			} else {
				category.ParentID = patch.ParentID
			}
		}

		return tx.Save(&category).Error
	})
	if db.IsUniqueViolation(err) {
		return nil, ErrCategoryExists
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// Delete removes a category and its post relations. Posts are kept.
func (s *CategoryService) Delete(ctx context.Context, id string, actor auth.Principal) error {
	if !s.policy.Authorize(actor, auth.ActionManageTaxonomy, "") {
		return ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category db.Category
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}
		if err := tx.Exec("DELETE FROM post_categories WHERE category_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Category{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
}

// Get loads a category by id.
func (s *CategoryService) Get(ctx context.Context, id string) (*db.Category, error) {
	var category db.Category
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// GetBySlug loads a category by slug.
func (s *CategoryService) GetBySlug(ctx context.Context, slugValue string) (*db.Category, error) {
	var category db.Category
	if err := s.db.WithContext(ctx).First(&category, "slug = ?", slugValue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// List returns a page of categories, newest first.
func (s *CategoryService) List(ctx context.Context, filter TaxonomyFilter) (*CategoryListResult, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	var status db.CategoryStatus
	if filter.Status != "" {
		parsed, err := parseCategoryStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	search := strings.TrimSpace(filter.Search)

	scope := func(query *gorm.DB) *gorm.DB {
		if search != "" {
			query = query.Where(likeClause("name"), likePattern(search))
		}
		if status != "" {
			query = query.Where("status = ?", status)
		}
		return query
	}

	conn := s.db.WithContext(ctx)
	result := &CategoryListResult{Page: page, Limit: limit}
	if err := conn.Model(&db.Category{}).Scopes(scope).Count(&result.Total).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&db.Category{}).Scopes(scope).
		Order("created_at desc").Order("id asc").
		Limit(limit).Offset((page - 1) * limit).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}
	result.TotalPages = totalPages(result.Total, limit)
	return result, nil
}

// Active returns active categories ordered by sort order and name.
func (s *CategoryService) Active(ctx context.Context) ([]db.Category, error) {
	var categories []db.Category
	err := s.db.WithContext(ctx).
		Where("status = ?", db.CategoryStatusActive).
		Order("sort_order asc").
		Order("name asc").
		Find(&categories).Error
	return categories, err
}

// PostsIn lists published posts of a category, newest publication first.
func (s *CategoryService) PostsIn(ctx context.Context, id string, page, limit int) (*PostListResult, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return listPublishedIn(s.db.WithContext(ctx), categoryKind, id, page, limit)
}

func parseCategoryStatus(raw string) (db.CategoryStatus, error) {
	switch status := db.CategoryStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case "":
		return db.CategoryStatusActive, nil
	case db.CategoryStatusActive, db.CategoryStatusInactive:
		return status, nil
	default:
		return "", invalid("status", "unknown category status %q", raw)
	}
}

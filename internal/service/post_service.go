package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/render"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostService wraps post related database operations.
type PostService struct {
	db        *gorm.DB
	recounter *Recounter
	renderer  *render.Renderer
	policy    auth.Policy
	now       func() time.Time
}

// PostInput represents fields accepted when creating a post. CategoryIDs and
// TagIDs must reference existing rows; CategoryNames and TagNames are looked
// up or created.
type PostInput struct {
	Title          string
	Slug           string
	Content        string
	Excerpt        string
	Thumbnail      string
	Status         string
	Type           string
	CategoryIDs    []string
	TagIDs         []string
	CategoryNames  []string
	TagNames       []string
	SEOTitle       string
	SEODescription string
	SEOKeywords    string
	ScheduledAt    *time.Time
	PublishedAt    *time.Time
}

// OptionalTime distinguishes "not supplied" from an explicit null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// PostPatch lists the fields to change. Nil pointers and nil slices mean
// "leave as is"; a non-nil empty slice clears that relation.
type PostPatch struct {
	Title          *string
	Slug           *string
	Content        *string
	Excerpt        *string
	Thumbnail      *string
	Status         *string
	Type           *string
	CategoryIDs    []string
	TagIDs         []string
	CategoryNames  []string
	TagNames       []string
	SEOTitle       *string
	SEODescription *string
	SEOKeywords    *string
	ScheduledAt    OptionalTime
}

// BlogPostInput is the free-text authoring form: one category and a list
// of tags by name, created when missing.
type BlogPostInput struct {
	Title          string
	Slug           string
	Content        string
	Description    string
	Thumbnail      string
	Status         string
	Category       string
	Tags           []string
	SEOTitle       string
	SEODescription string
	SEOKeywords    string
	PublishDate    *time.Time
}

// PostResult is a saved post together with any taxonomy created on the way.
type PostResult struct {
	Post              *db.Post
	CreatedCategories []db.Category
	CreatedTags       []db.Tag
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB, recounter *Recounter, renderer *render.Renderer) *PostService {
	if recounter == nil {
		recounter = NewRecounter(gdb, nil)
	}
	if renderer == nil {
		renderer = render.New()
	}
	return &PostService{
		db:        gdb,
		recounter: recounter,
		renderer:  renderer,
		now:       time.Now,
	}
}

// Create validates input, resolves slug and taxonomy, and stores the post
// with its relations in one transaction. Counters are refreshed afterwards.
func (s *PostService) Create(ctx context.Context, input PostInput, author auth.Principal) (*PostResult, error) {
	if author.Anonymous() {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, invalid("content", "content is required")
	}
	status, err := ParseStatus(input.Status, db.PostStatusDraft)
	if err != nil {
		return nil, err
	}
	typ, err := ParsePostType(input.Type, db.PostTypeArticle)
	if err != nil {
		return nil, err
	}

	var result *PostResult
	err = s.withSlugRetry(func() error {
		result = &PostResult{}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			categories, err := resolveCategories(tx, input.CategoryIDs, input.CategoryNames, &result.CreatedCategories)
			if err != nil {
				return err
			}
			tags, err := resolveTags(tx, input.TagIDs, input.TagNames, &result.CreatedTags)
			if err != nil {
				return err
			}

			candidate := input.Slug
			if strings.TrimSpace(candidate) == "" {
				candidate = title
			}
			slugValue, err := uniqueSlug(tx, "posts", candidate, "post", "")
			if err != nil {
				return err
			}

			post := db.Post{
				Title:          title,
				Slug:           slugValue,
				Content:        input.Content,
				Excerpt:        strings.TrimSpace(input.Excerpt),
				Thumbnail:      strings.TrimSpace(input.Thumbnail),
				Type:           typ,
				SEOTitle:       strings.TrimSpace(input.SEOTitle),
				SEODescription: strings.TrimSpace(input.SEODescription),
				SEOKeywords:    strings.TrimSpace(input.SEOKeywords),
				ScheduledAt:    utcPtr(input.ScheduledAt),
				AuthorID:       author.ID,
			}
			if post.Excerpt == "" {
				post.Excerpt = s.renderer.Excerpt(post.Content, render.DefaultExcerptLength)
			}
			applyStatus(&post, status, input.PublishedAt, s.now())

			if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
				if db.IsUniqueViolation(err) {
					return ErrSlugConflict
				}
				return err
			}
			if err := replaceRelations(tx, &post, categories, tags, true, true); err != nil {
				return err
			}
			result.Post = &post
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.recounter.AfterCommit(ctx, result.Post.CategoryIDs(), result.Post.TagIDs())

	post, err := s.load(ctx, "posts.id = ?", result.Post.ID)
	if err != nil {
		return nil, err
	}
	result.Post = post
	return result, nil
}

// CreateBlogPost accepts the free-text authoring form and delegates to Create.
func (s *PostService) CreateBlogPost(ctx context.Context, input BlogPostInput, author auth.Principal) (*PostResult, error) {
	var categories []string
	if name := strings.TrimSpace(input.Category); name != "" {
		categories = []string{name}
	}
	return s.Create(ctx, PostInput{
		Title:          input.Title,
		Slug:           input.Slug,
		Content:        input.Content,
		Excerpt:        input.Description,
		Thumbnail:      input.Thumbnail,
		Status:         input.Status,
		Type:           string(db.PostTypeArticle),
		CategoryNames:  categories,
		TagNames:       input.Tags,
		SEOTitle:       input.SEOTitle,
		SEODescription: input.SEODescription,
		SEOKeywords:    input.SEOKeywords,
		PublishedAt:    input.PublishDate,
	}, author)
}

// Update applies patch to the post. Only the author or an admin may do so;
// a refused update writes nothing.
func (s *PostService) Update(ctx context.Context, id string, patch PostPatch, actor auth.Principal) (*PostResult, error) {
	var (
		result            *PostResult
		touchedCategories []string
		touchedTags       []string
	)

	err := s.withSlugRetry(func() error {
		result = &PostResult{}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			post, err := s.lockForWrite(tx, id, actor, auth.ActionUpdatePost)
			if err != nil {
				return err
			}
			touchedCategories = post.CategoryIDs()
			touchedTags = post.TagIDs()

			titleChanged := false
			if patch.Title != nil {
				title := strings.TrimSpace(*patch.Title)
				if title == "" {
					return invalid("title", "title is required")
				}
				titleChanged = title != post.Title
				post.Title = title
			}
			if patch.Content != nil {
				if strings.TrimSpace(*patch.Content) == "" {
					return invalid("content", "content is required")
				}
				post.Content = *patch.Content
			}

			switch {
			case patch.Slug != nil && strings.TrimSpace(*patch.Slug) != "":
				if *patch.Slug != post.Slug {
					if post.Slug, err = uniqueSlug(tx, "posts", *patch.Slug, post.Title, post.ID); err != nil {
						return err
					}
				}
			case titleChanged:
				if post.Slug, err = uniqueSlug(tx, "posts", post.Title, "post", post.ID); err != nil {
					return err
				}
			}

			if patch.Excerpt != nil {
				post.Excerpt = strings.TrimSpace(*patch.Excerpt)
			}
			if post.Excerpt == "" {
				post.Excerpt = s.renderer.Excerpt(post.Content, render.DefaultExcerptLength)
			}
			if patch.Thumbnail != nil {
				post.Thumbnail = strings.TrimSpace(*patch.Thumbnail)
			}
			if patch.Type != nil {
				if post.Type, err = ParsePostType(*patch.Type, post.Type); err != nil {
					return err
				}
			}
			if patch.Status != nil {
				status, err := ParseStatus(*patch.Status, post.Status)
				if err != nil {
					return err
				}
				applyStatus(post, status, nil, s.now())
			}
			if patch.SEOTitle != nil {
				post.SEOTitle = strings.TrimSpace(*patch.SEOTitle)
			}
			if patch.SEODescription != nil {
				post.SEODescription = strings.TrimSpace(*patch.SEODescription)
			}
			if patch.SEOKeywords != nil {
				post.SEOKeywords = strings.TrimSpace(*patch.SEOKeywords)
			}
			if patch.ScheduledAt.Set {
				post.ScheduledAt = utcPtr(patch.ScheduledAt.Value)
			}

			replaceCategories := patch.CategoryIDs != nil || patch.CategoryNames != nil
			replaceTags := patch.TagIDs != nil || patch.TagNames != nil
			var categories []db.Category
			var tags []db.Tag
			if replaceCategories {
				if categories, err = resolveCategories(tx, patch.CategoryIDs, patch.CategoryNames, &result.CreatedCategories); err != nil {
					return err
				}
			}
			if replaceTags {
				if tags, err = resolveTags(tx, patch.TagIDs, patch.TagNames, &result.CreatedTags); err != nil {
					return err
				}
			}

			if err := tx.Omit(clause.Associations, "AuthorID", "ViewCount", "LikeCount", "CommentCount", "CreatedAt").
				Save(post).Error; err != nil {
				if db.IsUniqueViolation(err) {
					return ErrSlugConflict
				}
				return err
			}
			if err := replaceRelations(tx, post, categories, tags, replaceCategories, replaceTags); err != nil {
				return err
			}

			touchedCategories = append(touchedCategories, post.CategoryIDs()...)
			touchedTags = append(touchedTags, post.TagIDs()...)
			result.Post = post
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.recounter.AfterCommit(ctx, touchedCategories, touchedTags)

	post, err := s.load(ctx, "posts.id = ?", id)
	if err != nil {
		return nil, err
	}
	result.Post = post
	return result, nil
}

// UpdateStatus changes only the status and, when first published, publishedAt.
func (s *PostService) UpdateStatus(ctx context.Context, id, status string, actor auth.Principal) (*db.Post, error) {
	requested, err := ParseStatus(status, "")
	if err != nil {
		return nil, err
	}
	if requested == "" {
		return nil, invalid("status", "status is required")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.lockForWrite(tx, id, actor, auth.ActionPublishPost)
		if err != nil {
			return err
		}
		applyStatus(post, requested, nil, s.now())
		return tx.Model(post).Updates(map[string]any{
			"status":       post.Status,
			"published_at": post.PublishedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, "posts.id = ?", id)
}

// Remove deletes the post with its relations, comments and reactions, then
// recounts the taxonomy it was attached to.
func (s *PostService) Remove(ctx context.Context, id string, actor auth.Principal) error {
	var categoryIDs, tagIDs []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.lockForWrite(tx, id, actor, auth.ActionDeletePost)
		if err != nil {
			return err
		}
		categoryIDs = post.CategoryIDs()
		tagIDs = post.TagIDs()

		if err := tx.Model(post).Association("Categories").Clear(); err != nil {
			return err
		}
		if err := tx.Model(post).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&db.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&db.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		return err
	}

	s.recounter.AfterCommit(ctx, categoryIDs, tagIDs)
	return nil
}

// FindOne loads a post by id and counts the view.
func (s *PostService) FindOne(ctx context.Context, id string) (*db.Post, error) {
	return s.view(ctx, "posts.id = ?", id)
}

// FindBySlug loads a post by slug and counts the view.
func (s *PostService) FindBySlug(ctx context.Context, slugValue string) (*db.Post, error) {
	return s.view(ctx, "posts.slug = ?", slugValue)
}

// Get loads a post without touching its view count.
func (s *PostService) Get(ctx context.Context, id string) (*db.Post, error) {
	return s.load(ctx, "posts.id = ?", id)
}

// List provides paginated posts based on filters.
func (s *PostService) List(ctx context.Context, filter PostFilter) (*PostListResult, error) {
	q, err := buildPostQuery(filter)
	if err != nil {
		return nil, err
	}
	return listPosts(s.db.WithContext(ctx), q)
}

// Published returns every published post, newest publication first.
func (s *PostService) Published(ctx context.Context) ([]db.Post, error) {
	return s.find(ctx, "posts.published_at desc",
		"posts.status = ?", db.PostStatusPublished)
}

// Drafts returns an author's drafts, most recently edited first.
func (s *PostService) Drafts(ctx context.Context, authorID string) ([]db.Post, error) {
	return s.find(ctx, "posts.updated_at desc",
		"posts.status = ? AND posts.author_id = ?", db.PostStatusDraft, authorID)
}

// Scheduled returns drafts with a scheduledAt, soonest first.
func (s *PostService) Scheduled(ctx context.Context) ([]db.Post, error) {
	return s.find(ctx, "posts.scheduled_at asc",
		"posts.status = ? AND posts.scheduled_at IS NOT NULL", db.PostStatusDraft)
}

// ByAuthor returns every post of an author, newest first.
func (s *PostService) ByAuthor(ctx context.Context, authorID string) ([]db.Post, error) {
	return s.find(ctx, "posts.created_at desc", "posts.author_id = ?", authorID)
}

func (s *PostService) find(ctx context.Context, order string, query string, args ...any) ([]db.Post, error) {
	var posts []db.Post
	err := withPostRelations(s.db.WithContext(ctx).Model(&db.Post{})).
		Where(query, args...).
		Order(order).
		Order("posts.id asc").
		Find(&posts).Error
	return posts, err
}

// view loads the post, then bumps view_count atomically in the store.
func (s *PostService) view(ctx context.Context, query string, arg string) (*db.Post, error) {
	post, err := s.load(ctx, query, arg)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).
		Model(&db.Post{}).
		Where("id = ?", post.ID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrPostNotFound
	}
	post.ViewCount++
	return post, nil
}

func (s *PostService) load(ctx context.Context, query string, arg string) (*db.Post, error) {
	var post db.Post
	if err := withPostRelations(s.db.WithContext(ctx).Model(&db.Post{})).
		Where(query, arg).
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// lockForWrite takes a row lock on the post inside tx, loads it with its
// relations and checks the actor may perform action on it. SQLite has no row
// locks and serializes writers instead.
func (s *PostService) lockForWrite(tx *gorm.DB, id string, actor auth.Principal, action auth.Action) (*db.Post, error) {
	var locked db.Post
	if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Select("id").First(&locked, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	var post db.Post
	if err := tx.Preload("Categories").Preload("Tags").First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if !s.policy.Authorize(actor, action, post.AuthorID) {
		return nil, ErrForbidden
	}
	return &post, nil
}

// withSlugRetry runs fn again once when it lost a slug race.
func (s *PostService) withSlugRetry(fn func() error) error {
	err := fn()
	if !errors.Is(err, ErrSlugConflict) {
		return err
	}
	log.Warn().Msg("post slug taken concurrently, retrying with a fresh slug")
	return fn()
}

func resolveCategories(tx *gorm.DB, ids, names []string, created *[]db.Category) ([]db.Category, error) {
	categories := make([]db.Category, 0, len(ids)+len(names))
	ids = uniqueIDs(trimAll(ids))
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&categories).Error; err != nil {
			return nil, err
		}
		if len(categories) != len(ids) {
			return nil, ErrCategoryNotFound
		}
	}

	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		seen[c.ID] = true
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		category, isNew, err := findOrCreateCategory(tx, name)
		if err != nil {
			return nil, err
		}
		if isNew {
			*created = append(*created, *category)
		}
		if !seen[category.ID] {
			seen[category.ID] = true
			categories = append(categories, *category)
		}
	}
	return categories, nil
}

func resolveTags(tx *gorm.DB, ids, names []string, created *[]db.Tag) ([]db.Tag, error) {
	tags := make([]db.Tag, 0, len(ids)+len(names))
	ids = uniqueIDs(trimAll(ids))
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
			return nil, err
		}
		if len(tags) != len(ids) {
			return nil, ErrTagNotFound
		}
	}

	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[t.ID] = true
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		tag, isNew, err := findOrCreateTag(tx, name)
		if err != nil {
			return nil, err
		}
		if isNew {
			*created = append(*created, *tag)
		}
		if !seen[tag.ID] {
			seen[tag.ID] = true
			tags = append(tags, *tag)
		}
	}
	return tags, nil
}

// replaceRelations rewrites the join rows of post for the selected relations.
func replaceRelations(tx *gorm.DB, post *db.Post, categories []db.Category, tags []db.Tag, withCategories, withTags bool) error {
	if withCategories {
		if err := tx.Model(post).Association("Categories").Replace(categories); err != nil {
			return err
		}
		post.Categories = categories
	}
	if withTags {
		if err := tx.Model(post).Association("Tags").Replace(tags); err != nil {
			return err
		}
		post.Tags = tags
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

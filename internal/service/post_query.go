package service

import (
	"fmt"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// sortColumns maps accepted sortBy values to columns.
var sortColumns = map[string]string{
	"createdAt":    "posts.created_at",
	"updatedAt":    "posts.updated_at",
	"publishedAt":  "posts.published_at",
	"scheduledAt":  "posts.scheduled_at",
	"title":        "posts.title",
	"viewCount":    "posts.view_count",
	"likeCount":    "posts.like_count",
	"commentCount": "posts.comment_count",
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Status     string
	CategoryID string
	TagID      string
	AuthorID   string
	Search     string
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// PostListResult is one page of posts plus the unpaginated total.
type PostListResult struct {
	Items      []db.Post
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// postQuery is a validated PostFilter.
type postQuery struct {
	status     db.PostStatus
	categoryID string
	tagID      string
	authorID   string
	search     string
	page       int
	limit      int
	orderBy    string
}

func buildPostQuery(filter PostFilter) (postQuery, error) {
	q := postQuery{
		categoryID: strings.TrimSpace(filter.CategoryID),
		tagID:      strings.TrimSpace(filter.TagID),
		authorID:   strings.TrimSpace(filter.AuthorID),
		search:     strings.TrimSpace(filter.Search),
	}
	q.page, q.limit = normalizePage(filter.Page, filter.Limit)

	if filter.Status != "" {
		status, err := ParseStatus(filter.Status, "")
		if err != nil {
			return postQuery{}, err
		}
		q.status = status
	}

	sortBy := strings.TrimSpace(filter.SortBy)
	if sortBy == "" {
		sortBy = "createdAt"
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return postQuery{}, invalid("sortBy", "cannot sort by %q", filter.SortBy)
	}

	direction := strings.ToUpper(strings.TrimSpace(filter.SortOrder))
	switch direction {
	case "":
		direction = "DESC"
	case "ASC", "DESC":
	default:
		return postQuery{}, invalid("sortOrder", "sortOrder must be ASC or DESC")
	}
	q.orderBy = fmt.Sprintf("%s %s", column, direction)
	return q, nil
}

func (q postQuery) apply(query *gorm.DB) *gorm.DB {
	if q.status != "" {
		query = query.Where("posts.status = ?", q.status)
	}
	if q.authorID != "" {
		query = query.Where("posts.author_id = ?", q.authorID)
	}
	if q.categoryID != "" {
		query = query.Where("posts.id IN (SELECT post_id FROM post_categories WHERE category_id = ?)", q.categoryID)
	}
	if q.tagID != "" {
		query = query.Where("posts.id IN (SELECT post_id FROM post_tags WHERE tag_id = ?)", q.tagID)
	}
	if q.search != "" {
		pattern := likePattern(q.search)
		query = query.Where(
			fmt.Sprintf("(%s OR %s OR %s)", likeClause("posts.title"), likeClause("posts.content"), likeClause("posts.excerpt")),
			pattern, pattern, pattern,
		)
	}
	return query
}

// listPosts runs q against conn: a count ignoring pagination, then one page.
// conn must be a fresh session such as db.WithContext(ctx).
func listPosts(conn *gorm.DB, q postQuery, scopes ...func(*gorm.DB) *gorm.DB) (*PostListResult, error) {
	result := &PostListResult{Page: q.page, Limit: q.limit}

	if err := q.apply(conn.Model(&db.Post{}).Scopes(scopes...)).Count(&result.Total).Error; err != nil {
		return nil, err
	}

	if err := withPostRelations(q.apply(conn.Model(&db.Post{}).Scopes(scopes...))).
		Order(q.orderBy).
		Order("posts.id asc").
		Limit(q.limit).
		Offset((q.page - 1) * q.limit).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}

	result.TotalPages = totalPages(result.Total, q.limit)
	return result, nil
}

// listPublishedIn pages the published posts related to one taxonomy entity.
func listPublishedIn(conn *gorm.DB, kind taxonomyKind, id string, page, limit int) (*PostListResult, error) {
	page, limit = normalizePage(page, limit)
	q := postQuery{
		status:  db.PostStatusPublished,
		page:    page,
		limit:   limit,
		orderBy: "posts.published_at DESC",
	}
	related := func(query *gorm.DB) *gorm.DB {
		return query.Where(
			fmt.Sprintf("posts.id IN (SELECT post_id FROM %s WHERE %s = ?)", kind.joinTable, kind.joinKey),
			id,
		)
	}
	return listPosts(conn, q, related)
}

func withPostRelations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Author").
		Preload("Categories", func(tx *gorm.DB) *gorm.DB { return tx.Order("categories.name asc") }).
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("tags.name asc") })
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// likeClause is a case-insensitive LIKE on column using '\' as escape.
func likeClause(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '\\'"
}

func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(search))
	return "%" + escaped + "%"
}

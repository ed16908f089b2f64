package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type postRequest struct {
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	Content        string     `json:"content"`
	Excerpt        string     `json:"excerpt"`
	Thumbnail      string     `json:"thumbnail"`
	Status         string     `json:"status"`
	Type           string     `json:"type"`
	CategoryIDs    []string   `json:"categoryIds"`
	TagIDs         []string   `json:"tagIds"`
	CategoryNames  []string   `json:"categoryNames"`
	TagNames       []string   `json:"tagNames"`
	SEOTitle       string     `json:"seoTitle"`
	SEODescription string     `json:"seoDescription"`
	SEOKeywords    string     `json:"seoKeywords"`
	ScheduledAt    *time.Time `json:"scheduledAt"`
	PublishedAt    *time.Time `json:"publishedAt"`
}

// postPatchRequest keeps absent fields nil. Relation lists stay raw so that
// an omitted key, [] and null can be told apart.
type postPatchRequest struct {
	Title          *string         `json:"title"`
	Slug           *string         `json:"slug"`
	Content        *string         `json:"content"`
	Excerpt        *string         `json:"excerpt"`
	Thumbnail      *string         `json:"thumbnail"`
	Status         *string         `json:"status"`
	Type           *string         `json:"type"`
	CategoryIDs    json.RawMessage `json:"categoryIds"`
	TagIDs         json.RawMessage `json:"tagIds"`
	CategoryNames  json.RawMessage `json:"categoryNames"`
	TagNames       json.RawMessage `json:"tagNames"`
	SEOTitle       *string         `json:"seoTitle"`
	SEODescription *string         `json:"seoDescription"`
	SEOKeywords    *string         `json:"seoKeywords"`
	ScheduledAt    json.RawMessage `json:"scheduledAt"`
}

type blogPostRequest struct {
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	Content        string          `json:"content"`
	Description    string          `json:"description"`
	Thumbnail      json.RawMessage `json:"thumbnail"`
	Status         string          `json:"status"`
	Category       string          `json:"category"`
	Tags           []string        `json:"tags"`
	SEOTitle       string          `json:"seoTitle"`
	SEODescription string          `json:"seoDescription"`
	SEOKeywords    string          `json:"seoKeywords"`
	PublishDate    *time.Time      `json:"publishDate"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListPosts lists posts matching the query filters.
func (a *API) ListPosts(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	result, err := a.posts.List(c.Request.Context(), service.PostFilter{
		Status:     c.Query("status"),
		CategoryID: c.Query("categoryId"),
		TagID:      c.Query("tagId"),
		AuthorID:   c.Query("authorId"),
		Search:     c.Query("search"),
		Page:       page,
		Limit:      limit,
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostList(result))
}

func (a *API) PublishedPosts(c *gin.Context) {
	posts, err := a.posts.Published(c.Request.Context())
	a.respondPosts(c, posts, err)
}

func (a *API) ScheduledPosts(c *gin.Context) {
	posts, err := a.posts.Scheduled(c.Request.Context())
	a.respondPosts(c, posts, err)
}

// DraftPosts lists the caller's own drafts.
func (a *API) DraftPosts(c *gin.Context) {
	posts, err := a.posts.Drafts(c.Request.Context(), currentPrincipal(c).ID)
	a.respondPosts(c, posts, err)
}

func (a *API) PostsByAuthor(c *gin.Context) {
	posts, err := a.posts.ByAuthor(c.Request.Context(), c.Param("authorId"))
	a.respondPosts(c, posts, err)
}

// GetPost returns one post and counts a view.
func (a *API) GetPost(c *gin.Context) {
	post, err := a.posts.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": a.postDetail(post)})
}

func (a *API) GetPostBySlug(c *gin.Context) {
	post, err := a.posts.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": a.postDetail(post)})
}

// CreatePost creates a post.
func (a *API) CreatePost(c *gin.Context) {
	var req postRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := a.posts.Create(c.Request.Context(), service.PostInput{
		Title:          req.Title,
		Slug:           req.Slug,
		Content:        req.Content,
		Excerpt:        req.Excerpt,
		Thumbnail:      req.Thumbnail,
		Status:         req.Status,
		Type:           req.Type,
		CategoryIDs:    req.CategoryIDs,
		TagIDs:         req.TagIDs,
		CategoryNames:  req.CategoryNames,
		TagNames:       req.TagNames,
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
		SEOKeywords:    req.SEOKeywords,
		ScheduledAt:    req.ScheduledAt,
		PublishedAt:    req.PublishedAt,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPostResult(result))
}

// CreateBlogPost accepts the free-text authoring form.
func (a *API) CreateBlogPost(c *gin.Context) {
	var req blogPostRequest
	if !bindJSON(c, &req) {
		return
	}
	thumbnail, err := parseThumbnail(req.Thumbnail)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := a.posts.CreateBlogPost(c.Request.Context(), service.BlogPostInput{
		Title:          req.Title,
		Slug:           req.Slug,
		Content:        req.Content,
		Description:    req.Description,
		Thumbnail:      thumbnail,
		Status:         req.Status,
		Category:       req.Category,
		Tags:           req.Tags,
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
		SEOKeywords:    req.SEOKeywords,
		PublishDate:    req.PublishDate,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPostResult(result))
}

// UpdatePost applies a partial update.
func (a *API) UpdatePost(c *gin.Context) {
	var req postPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	scheduledAt, err := parseOptionalTime("scheduledAt", req.ScheduledAt)
	if err != nil {
		respondError(c, err)
		return
	}
	var relations [4][]string
	for i, field := range []struct {
		name string
		raw  json.RawMessage
	}{
		{"categoryIds", req.CategoryIDs},
		{"tagIds", req.TagIDs},
		{"categoryNames", req.CategoryNames},
		{"tagNames", req.TagNames},
	} {
		if relations[i], err = relationList(field.name, field.raw); err != nil {
			respondError(c, err)
			return
		}
	}
	result, err := a.posts.Update(c.Request.Context(), c.Param("id"), service.PostPatch{
		Title:          req.Title,
		Slug:           req.Slug,
		Content:        req.Content,
		Excerpt:        req.Excerpt,
		Thumbnail:      req.Thumbnail,
		Status:         req.Status,
		Type:           req.Type,
		CategoryIDs:    relations[0],
		TagIDs:         relations[1],
		CategoryNames:  relations[2],
		TagNames:       relations[3],
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
		SEOKeywords:    req.SEOKeywords,
		ScheduledAt:    scheduledAt,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostResult(result))
}

func (a *API) UpdatePostStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	post, err := a.posts.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": newPostView(*post)})
}

// DeletePost deletes a post.
func (a *API) DeletePost(c *gin.Context) {
	if err := a.posts.Remove(c.Request.Context(), c.Param("id"), currentPrincipal(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) respondPosts(c *gin.Context, posts []db.Post, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": mapSlice(posts, newPostView), "total": len(posts)})
}

type postDetailView struct {
	postView
	ContentHTML string `json:"contentHtml"`
}

// postDetail adds the rendered body. A render failure leaves it empty.
func (a *API) postDetail(post *db.Post) postDetailView {
	detail := postDetailView{postView: newPostView(*post)}
	rendered, err := a.renderer.HTML(post.Content)
	if err != nil {
		log.Warn().Err(err).Str("post", post.ID).Msg("render post content")
		return detail
	}
	detail.ContentHTML = rendered
	return detail
}

func newPostList(result *service.PostListResult) listResponse[postView] {
	return newListResponse(result.Items, newPostView, result.Total, result.Page, result.Limit, result.TotalPages)
}

func newPostResult(result *service.PostResult) gin.H {
	return gin.H{
		"post":              newPostView(*result.Post),
		"createdCategories": mapSlice(result.CreatedCategories, categorySummary),
		"createdTags":       mapSlice(result.CreatedTags, tagSummary),
	}
}

// relationList turns an omitted key into nil and an explicit list, empty or
// null, into a non-nil slice.
func relationList(field string, raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, &service.ValidationError{Field: field, Message: field + " must be a list of strings"}
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func parseOptionalTime(field string, raw json.RawMessage) (service.OptionalTime, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return service.OptionalTime{}, nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return service.OptionalTime{Set: true}, nil
	}
	var value time.Time
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return service.OptionalTime{}, &service.ValidationError{Field: field, Message: field + " must be an RFC 3339 timestamp"}
	}
	return service.OptionalTime{Set: true, Value: &value}, nil
}

// parseThumbnail accepts a plain URL or an object carrying url or src.
func parseThumbnail(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text, nil
	}
	var object struct {
		URL string `json:"url"`
		Src string `json:"src"`
	}
	if err := json.Unmarshal(trimmed, &object); err != nil {
		return "", &service.ValidationError{Field: "thumbnail", Message: "thumbnail must be a URL or an object with url"}
	}
	if object.URL != "" {
		return object.URL, nil
	}
	return object.Src, nil
}

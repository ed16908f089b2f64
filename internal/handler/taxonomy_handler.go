package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/gin-gonic/gin"
)

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

type categoryRequest struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Status      string  `json:"status"`
	SortOrder   int     `json:"sortOrder"`
	ParentID    *string `json:"parentId"`
}

type categoryPatchRequest struct {
	Name        *string         `json:"name"`
	Slug        *string         `json:"slug"`
	Description *string         `json:"description"`
	Image       *string         `json:"image"`
	Status      *string         `json:"status"`
	SortOrder   *int            `json:"sortOrder"`
	ParentID    json.RawMessage `json:"parentId"`
}

type tagRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Color       string `json:"color"`
	IsActive    *bool  `json:"isActive"`
}

type tagPatchRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	IsActive    *bool   `json:"isActive"`
}

func taxonomyFilter(c *gin.Context) (service.TaxonomyFilter, bool) {
	page, limit, ok := pageParams(c)
	if !ok {
		return service.TaxonomyFilter{}, false
	}
	return service.TaxonomyFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	}, true
}

// ListCategories lists categories.
func (a *API) ListCategories(c *gin.Context) {
	filter, ok := taxonomyFilter(c)
	if !ok {
		return
	}
	result, err := a.categories.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(result.Items, newCategoryView, result.Total, result.Page, result.Limit, result.TotalPages))
}

func (a *API) ActiveCategories(c *gin.Context) {
	categories, err := a.categories.Active(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": mapSlice(categories, newCategoryView), "total": len(categories)})
}

func (a *API) GetCategory(c *gin.Context) {
	category, err := a.categories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": newCategoryView(*category)})
}

func (a *API) GetCategoryBySlug(c *gin.Context) {
	category, err := a.categories.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": newCategoryView(*category)})
}

// CategoryPosts lists the published posts of a category.
func (a *API) CategoryPosts(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	result, err := a.categories.PostsIn(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostList(result))
}

// CreateCategory creates a category.
func (a *API) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := a.categories.Create(c.Request.Context(), service.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
		Status:      req.Status,
		SortOrder:   req.SortOrder,
		ParentID:    req.ParentID,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": newCategoryView(*category)})
}

// UpdateCategory updates a category. A null parentId clears the parent.
func (a *API) UpdateCategory(c *gin.Context) {
	var req categoryPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	parentID, err := parseParentID(req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}
	category, err := a.categories.Update(c.Request.Context(), c.Param("id"), service.CategoryPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
		Status:      req.Status,
		SortOrder:   req.SortOrder,
		ParentID:    parentID,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": newCategoryView(*category)})
}

func (a *API) DeleteCategory(c *gin.Context) {
	if err := a.categories.Delete(c.Request.Context(), c.Param("id"), currentPrincipal(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FindOrCreateCategory answers 201 when a category had to be created.
func (a *API) FindOrCreateCategory(c *gin.Context) {
	var req nameRequest
	if !bindJSON(c, &req) {
		return
	}
	category, created, err := a.categories.FindOrCreate(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(createdStatus(created), gin.H{"category": newCategoryView(*category), "created": created})
}

// ListTags lists tags.
func (a *API) ListTags(c *gin.Context) {
	filter, ok := taxonomyFilter(c)
	if !ok {
		return
	}
	result, err := a.tags.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(result.Items, newTagView, result.Total, result.Page, result.Limit, result.TotalPages))
}

func (a *API) PopularTags(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	tags, err := a.tags.Popular(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": mapSlice(tags, newTagView), "total": len(tags)})
}

func (a *API) GetTag(c *gin.Context) {
	tag, err := a.tags.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": newTagView(*tag)})
}

func (a *API) GetTagBySlug(c *gin.Context) {
	tag, err := a.tags.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": newTagView(*tag)})
}

func (a *API) TagPosts(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	result, err := a.tags.PostsIn(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostList(result))
}

// CreateTag creates a tag.
func (a *API) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}
	tag, err := a.tags.Create(c.Request.Context(), service.TagInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Color:       req.Color,
		IsActive:    req.IsActive,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": newTagView(*tag)})
}

// UpdateTag updates a tag.
func (a *API) UpdateTag(c *gin.Context) {
	var req tagPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	tag, err := a.tags.Update(c.Request.Context(), c.Param("id"), service.TagPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Color:       req.Color,
		IsActive:    req.IsActive,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": newTagView(*tag)})
}

// DeleteTag deletes a tag.
func (a *API) DeleteTag(c *gin.Context) {
	if err := a.tags.Delete(c.Request.Context(), c.Param("id"), currentPrincipal(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) FindOrCreateTag(c *gin.Context) {
	var req nameRequest
	if !bindJSON(c, &req) {
		return
	}
	tag, created, err := a.tags.FindOrCreate(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(createdStatus(created), gin.H{"tag": newTagView(*tag), "created": created})
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

// parseParentID maps an omitted key to nil and null to "" (clear).
func parseParentID(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var value *string
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, &service.ValidationError{Field: "parentId", Message: "parentId must be a string or null"}
	}
	if value == nil {
		empty := ""
		return &empty, nil
	}
	return value, nil
}

package handler

import (
	"io"
	"net/http"

	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/gin-gonic/gin"
)

type mediaPatchRequest struct {
	Alt         *string `json:"alt"`
	Description *string `json:"description"`
}

// UploadMedia stores the multipart field "file".
func (a *API) UploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, &service.ValidationError{Field: "file", Message: "file is required"})
		return
	}
	if file.Size > service.MaxUploadSize {
		respondError(c, &service.ValidationError{Field: "file", Message: "file is too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, service.MaxUploadSize+1))
	if err != nil {
		respondError(c, err)
		return
	}

	media, err := a.media.Upload(c.Request.Context(), service.UploadInput{
		Filename:    file.Filename,
		Data:        data,
		Alt:         c.PostForm("alt"),
		Description: c.PostForm("description"),
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"media": newMediaView(*media)})
}

func (a *API) ListMedia(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}
	result, err := a.media.List(c.Request.Context(), service.MediaFilter{
		Search: c.Query("search"),
		Kind:   c.Query("type"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(result.Items, newMediaView, result.Total, result.Page, result.Limit, result.TotalPages))
}

func (a *API) GetMedia(c *gin.Context) {
	media, err := a.media.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": newMediaView(*media)})
}

func (a *API) MediaStats(c *gin.Context) {
	stats, err := a.media.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *API) UpdateMedia(c *gin.Context) {
	var req mediaPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	media, err := a.media.Update(c.Request.Context(), c.Param("id"), service.MediaPatch{
		Alt:         req.Alt,
		Description: req.Description,
	}, currentPrincipal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": newMediaView(*media)})
}

// DeleteMedia deletes a media record and its blob.
func (a *API) DeleteMedia(c *gin.Context) {
	if err := a.media.Remove(c.Request.Context(), c.Param("id"), currentPrincipal(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

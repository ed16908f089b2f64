package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/middleware"
	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Stable error identifiers returned in the error body.
const (
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codeForbidden    = "forbidden"
	codeSlugConflict = "slug_conflict"
	codeConflict     = "conflict"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal_error"
)

// errorCode maps a domain error to its HTTP status and stable id.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, service.ErrNotFound), errors.Is(err, auth.ErrUnknownProvider):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, service.ErrSlugConflict):
		return http.StatusConflict, codeSlugConflict
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrUserInactive):
		return http.StatusUnauthorized, codeUnauthorized
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func respondError(c *gin.Context, err error) {
	status, code := errorCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, &service.ValidationError{Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: key, Message: key + " must be an integer"}
	}
	return value, nil
}

// pageParams reads page and limit; the services apply defaults and caps.
func pageParams(c *gin.Context) (int, int, bool) {
	page, err := queryInt(c, "page")
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	return page, limit, true
}

func currentPrincipal(c *gin.Context) auth.Principal {
	p, _ := middleware.Principal(c)
	return p
}

type listResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func newListResponse[S any, T any](items []S, view func(S) T, total int64, page, limit, totalPages int) listResponse[T] {
	return listResponse[T]{Items: mapSlice(items, view), Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

func mapSlice[S any, T any](items []S, view func(S) T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}

package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not allowed to modify this resource")
	ErrSlugConflict = errors.New("slug is already taken")
	ErrConflict     = errors.New("already exists")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is disabled")
)

var (
	ErrPostNotFound     = fmt.Errorf("post %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrTagNotFound      = fmt.Errorf("tag %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrCommentNotFound  = fmt.Errorf("comment %w", ErrNotFound)
	ErrMediaNotFound    = fmt.Errorf("media %w", ErrNotFound)
	ErrReactionNotFound = fmt.Errorf("reaction %w", ErrNotFound)

	ErrCategoryExists = fmt.Errorf("category %w", ErrConflict)
	ErrTagExists      = fmt.Errorf("tag %w", ErrConflict)
	ErrUserExists     = fmt.Errorf("user %w", ErrConflict)

	ErrNameRequired = &ValidationError{Field: "name", Message: "name is required"}
)

// ValidationError reports a rejected input field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

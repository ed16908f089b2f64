// Package storage holds uploaded media bytes. Callers treat the store as
// opaque: they hand it a key and get back a public URL.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrInvalidKey = errors.New("invalid storage key")

// BlobStore persists and removes objects by key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes objects under a directory served at urlPrefix.
type Local struct {
	dir       string
	urlPrefix string
}

// NewLocal creates the upload directory if needed.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

// Dir is the directory the router should serve statically.
func (l *Local) Dir() string { return l.dir }

// URLPrefix is the path under which objects are served.
func (l *Local) URLPrefix() string { return l.urlPrefix }

func (l *Local) Put(ctx context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	path, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create object %s: %w", key, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", key, err)
	}
	return l.URL(key), nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (l *Local) URL(key string) string {
	return l.urlPrefix + "/" + key
}

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.dir, clean), nil
}

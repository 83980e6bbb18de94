package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store saves artifact data under a slash-separated key and returns a reference to where it can
// be found, such as a file path or URL.
type Store interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

type nullStore struct{}

// NullStore returns a Store that discards everything.
func NullStore() Store { return nullStore{} }

func (nullStore) Put(context.Context, string, string, []byte) (string, error) { return "", nil }

// DirStore writes artifacts as files below a root directory.
type DirStore struct {
	Root string
}

func (d DirStore) Put(ctx context.Context, key string, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact key %q is outside the artifact directory", key)
	}
	path := filepath.Join(d.Root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return "", fmt.Errorf("failed to write artifact %q: %w", key, err)
	}
	return path, nil
}

// internal/storage/archive/interface.go
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when no object exists under the key
var ErrNotFound = errors.New("archive: object not found")

// Store is a flat key/value blob store for run exports and cached price data.
// Keys are slash separated and relative.
type Store interface {
	// Put stores data under key, replacing any previous object
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the object under key
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if an object exists under key
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object under key
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a backend
type Config struct {
	Type string // "localfs" or "s3"
	Path string // localfs root
	S3   S3Config
}

// Open builds the configured backend
func Open(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "localfs":
		if cfg.Path == "" {
			return nil, fmt.Errorf("archive: localfs path is required")
		}
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("archive: unknown storage type %q", cfg.Type)
	}
}

// cleanKey normalizes key and rejects keys escaping the store root
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("archive: empty key")
	}
	cleaned := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive: key %q escapes store root", key)
	}
	return cleaned, nil
}

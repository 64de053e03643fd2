// Package artifact stores compiled documents so the HTTP surface can serve the
// latest PDF regardless of where the compiler ran.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFound is returned by Open when the key has never been written.
var ErrNotFound = errors.New("artifact not found")

// Store saves and retrieves binary artifacts by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Backend names accepted by Config.Backend.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// Config selects and parameterises a backend.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Bucket  string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix  string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`
}

// New builds the Store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendLocal:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("artifact dir is required for the local backend")
		}
		return NewLocalStore(cfg.Dir), nil
	case BackendS3:
		return NewS3Store(ctx, cfg.Region, cfg.Bucket, cfg.Prefix)
	case BackendGCS:
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanKey := strings.TrimLeft(key, "/")
	if prefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return prefix
	}
	return prefix + "/" + cleanKey
}

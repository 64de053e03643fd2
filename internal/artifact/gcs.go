package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore keeps artifacts in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSStore creates a bucket-backed store using application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: normalizePrefix(prefix),
	}, nil
}

// Put uploads r under key. The object is only visible once the writer closes.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	objectName := applyPrefix(s.prefix, key)
	w := s.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.name, objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", s.name, objectName, err)
	}
	return nil
}

// Open returns a reader for the artifact stored under key.
func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectName := applyPrefix(s.prefix, key)
	rc, err := s.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrNotFound, s.name, objectName)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.name, objectName, err)
	}
	return rc, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ Store = (*GCSStore)(nil)

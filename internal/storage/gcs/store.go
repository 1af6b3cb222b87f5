// Package gcs provides a Store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/hempwatch/harvester/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// Store reads and writes objects in a configured GCS bucket. Authentication
// is handled via Application Default Credentials on the injected client.
type Store struct {
	client *gstorage.Client
	bucket string
}

// New creates a GCS-backed store and fails fast if the bucket is not
// reachable with the current credentials.
func New(ctx context.Context, client *gstorage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("get bucket %q attributes: %w", cfg.Bucket, err)
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Get downloads the object at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%q: %w", path, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("open object %q: %w", path, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", path, err)
	}
	return data, nil
}

// Put uploads data to path, overwriting any existing object.
func (s *Store) Put(ctx context.Context, path string, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return fmt.Errorf("write object %q: %w (close writer: %v)", path, err, closeErr)
		}
		return fmt.Errorf("write object %q: %w", path, err)
	}
	// Close finalizes the upload; the write is not durable until it returns.
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %q: %w", path, err)
	}
	return nil
}

// Exists reports whether an object is present at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gstorage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat object %q: %w", path, err)
	}
}

// List returns every object under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gstorage.Query{Prefix: prefix})
	var out []storage.Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		out = append(out, storage.Object{
			Name:    attrs.Name,
			Size:    attrs.Size,
			Updated: attrs.Updated,
		})
	}
}

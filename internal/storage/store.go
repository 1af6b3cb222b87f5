// Package storage defines the durable object store the pipeline archives
// into. The abstraction keeps the pipeline independent of a specific
// backend (Google Cloud Storage, the local filesystem, or memory).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// Object describes a stored object returned by List.
type Object struct {
	Name    string
	Size    int64
	Updated time.Time
}

// Store is the common interface for a durable object store. Puts use
// overwrite semantics and are safe to repeat.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, contentType string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

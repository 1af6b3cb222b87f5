// Package memory provides an in-memory Store for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hempwatch/harvester/internal/storage"
)

type object struct {
	data        []byte
	contentType string
	updated     time.Time
}

// Store keeps objects in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

// Get returns a copy of the object at path.
func (s *Store) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("%q: %w", path, storage.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// Put stores a copy of data at path, overwriting.
func (s *Store) Put(_ context.Context, path string, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		updated:     time.Now().UTC(),
	}
	return nil
}

// Exists reports whether an object is present at path.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[path]
	return ok, nil
}

// List returns objects under prefix in name order.
func (s *Store) List(_ context.Context, prefix string) ([]storage.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.Object
	for name, obj := range s.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, storage.Object{
				Name:    name,
				Size:    int64(len(obj.data)),
				Updated: obj.updated,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

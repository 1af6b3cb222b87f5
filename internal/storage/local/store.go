// Package local implements a filesystem-backed Store for development and
// on-prem deployments.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hempwatch/harvester/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory objects are stored under.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store reads and writes objects as files under a base directory. Object
// paths map to relative file paths.
type Store struct {
	baseDir string
}

// New creates a local filesystem store, creating the base directory if
// needed and verifying it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("base directory path is not a directory")
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("stat base directory: %w", err)
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("remove write probe: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// Get reads the object at path.
func (s *Store) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", path, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return data, nil
}

// Put writes the object at path, overwriting any existing file. The
// content type is ignored; the filesystem carries no object metadata.
func (s *Store) Put(_ context.Context, path string, _ string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create parent directories for %q: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// Exists reports whether a file is present at path.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
	return true, nil
}

// List walks the tree and returns every file whose object name starts with
// prefix.
func (s *Store) List(_ context.Context, prefix string) ([]storage.Object, error) {
	var out []storage.Object
	err := filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, storage.Object{
			Name:    name,
			Size:    info.Size(),
			Updated: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
	}
	return out, nil
}

// resolve joins path under baseDir and rejects traversal outside it.
func (s *Store) resolve(path string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes base directory", path)
	}
	return full, nil
}

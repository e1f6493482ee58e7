package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/google/uuid"
)

// Store is a sandbox's private file store.
//
// Paths are slash-separated and interpreted relative to the store root, so
// "/data/out.s" and "data/out.s" name the same file. Paths cannot escape the
// root. The store is backed by a host directory so that WASI tools can mount
// it as their filesystem root.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Writes are atomic: readers see either the previous or the new content.
type Store struct {
	dir   string
	owned bool

	mu     sync.RWMutex
	root   *os.Root
	closed bool
}

// OpenStore opens (creating if needed) a store rooted at dir.
func OpenStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, root: root}, nil
}

// openTempStore creates a store in a fresh directory under parent.
// The directory is removed when the store is closed.
func openTempStore(parent, prefix string) (*Store, error) {
	dir, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, err
	}
	s, err := OpenStore(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Dir returns the host directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// ReadFile returns the full content at name.
// It returns ErrArtifactNotFound if name does not exist.
func (s *Store) ReadFile(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	data, err := s.root.ReadFile(storePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, cleanPath(name))
	}
	return data, err
}

// WriteFile replaces the content at name, creating it and any missing parent
// directories if needed.
func (s *Store) WriteFile(name string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	rel := storePath(name)
	if rel == "." {
		return fmt.Errorf("invalid artifact path %q", name)
	}
	if dir := path.Dir(rel); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := rel + ".tmp-" + uuid.NewString()
	if err := s.root.WriteFile(tmp, data, 0o644); err != nil {
		_ = s.root.Remove(tmp)
		return err
	}
	if err := s.root.Rename(tmp, rel); err != nil {
		_ = s.root.Remove(tmp)
		return err
	}
	return nil
}

// MkdirAll creates the directory name and any missing parents.
func (s *Store) MkdirAll(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	rel := storePath(name)
	if rel == "." {
		return nil
	}
	return s.root.MkdirAll(rel, 0o755)
}

// Exists reports whether name exists in the store.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	_, err := s.root.Stat(storePath(name))
	return err == nil
}

// Close releases the store. Stores created by a sandbox without an explicit
// directory remove their directory on close.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.root.Close()
	if s.owned {
		err = errors.Join(err, os.RemoveAll(s.dir))
	}
	return err
}

// cleanPath returns the canonical absolute form of a sandbox path.
func cleanPath(name string) string {
	return path.Clean("/" + name)
}

// storePath converts a sandbox path into a root-relative path.
func storePath(name string) string {
	p := cleanPath(name)
	if p == "/" {
		return "."
	}
	return p[1:]
}

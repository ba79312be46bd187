package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/pbs/tvshows/internal/errs"
)

// MetadataFile is the per-link metadata file name inside a hash directory.
const MetadataFile = "metadata.m3u8"

// Store is a content-addressed on-disk key/value store. Keys are paths
// relative to the cache root; resolved links live under "<hash>/metadata.m3u8".
type Store struct {
	root string
}

// New creates the store, making sure the cache root exists.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating cache root %s: %v", errs.ErrCache, root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Hash derives the cache key for a source link. xxhash is fast and
// non-cryptographic; collisions are acceptable for a cache.
func Hash(link string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(link))
}

// Path returns the absolute path for a relative cache key.
func (s *Store) Path(parts ...string) string {
	return filepath.Join(append([]string{s.root}, parts...)...)
}

// Get returns the bytes stored under key, or false when absent.
func (s *Store) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Exists reports whether key is present without reading it.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Put writes data under key, creating parent directories as needed. Writes
// are whole-file; concurrent writers of the same deterministic content race
// safely (last writer wins).
func (s *Store) Put(key string, data []byte) error {
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", errs.ErrCache, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", errs.ErrCache, path, err)
	}
	return nil
}

package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper removes expired cache files and the directories they leave empty.
// A small protected set of file names is never deleted regardless of age.
type Sweeper struct {
	root      string
	retention time.Duration
	protected map[string]struct{}
	logger    *logrus.Logger
}

// NewSweeper creates a sweeper over root. Files named in protected survive
// every sweep.
func NewSweeper(root string, retention time.Duration, protected []string, logger *logrus.Logger) *Sweeper {
	set := make(map[string]struct{}, len(protected))
	for _, name := range protected {
		set[name] = struct{}{}
	}
	return &Sweeper{
		root:      root,
		retention: retention,
		protected: set,
		logger:    logger,
	}
}

// Sweep walks the cache root depth-first and deletes expired files and
// now-empty directories. Individual deletion failures are logged and do not
// abort the walk; a failed sweep is retried on the next scheduled run.
func (s *Sweeper) Sweep() {
	s.logger.Info("Running cache sweep")
	deleted := s.sweepDir(s.root)
	if deleted > 0 {
		s.logger.WithField("count", deleted).Info("Cleaned expired cache entries")
	}
}

// sweepDir recurses into dir post-order and returns the number of entries it
// removed.
func (s *Sweeper) sweepDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.WithError(err).WithField("dir", dir).Warn("Failed to read cache directory")
		return 0
	}

	deleted := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			deleted += s.sweepDir(path)
			continue
		}
		if _, ok := s.protected[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.WithError(err).WithField("file", path).Warn("Failed to stat cache file")
			continue
		}
		if time.Since(info.ModTime()) <= s.retention {
			continue
		}
		s.logger.WithField("file", path).Debug("Deleting expired cache file")
		if err := os.Remove(path); err != nil {
			s.logger.WithError(err).WithField("file", path).Warn("Failed to delete cache file")
			continue
		}
		deleted++
	}

	// Remove the directory itself once everything beneath it is gone.
	// The cache root always stays.
	if dir != s.root {
		if remaining, err := os.ReadDir(dir); err == nil && len(remaining) == 0 {
			s.logger.WithField("dir", dir).Debug("Deleting empty cache directory")
			if err := os.Remove(dir); err != nil {
				s.logger.WithError(err).WithField("dir", dir).Warn("Failed to delete cache directory")
			} else {
				deleted++
			}
		}
	}
	return deleted
}

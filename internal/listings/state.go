// Package listings owns the per-show episode catalogue: a scraped,
// incrementally-paged listing map persisted to disk and served through a
// single coalescing worker.
package listings

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/cache"
	"github.com/pbs/tvshows/internal/models"
)

// StateFileName is the listing state file inside the cache root. The cache
// sweeper must never remove it.
const StateFileName = "tv_shows.json"

const stateFile = StateFileName

type savedState struct {
	Listings  map[string]models.EpisodeListing `json:"listings"`
	ExpiresAt time.Time                        `json:"expires_at"`
}

// Store holds the listing map. The whole map expires at the daily cutoff
// (00:30 next day): listings scraped yesterday are stale because new episodes
// appear overnight, so the map is cleared rather than merged.
type Store struct {
	cache  *cache.Store
	logger *logrus.Logger

	mu        sync.RWMutex
	listings  map[string]models.EpisodeListing
	expiresAt time.Time
}

// NewStore loads the persisted listing state, recovering from a corrupt
// state file by deleting it and starting fresh.
func NewStore(store *cache.Store, logger *logrus.Logger) *Store {
	s := &Store{
		cache:     store,
		logger:    logger,
		listings:  make(map[string]models.EpisodeListing),
		expiresAt: nextCutoff(time.Now()),
	}
	data, ok := store.Get(stateFile)
	if !ok {
		logger.Info("No listing state file, starting fresh")
		return s
	}
	var saved savedState
	if err := json.Unmarshal(data, &saved); err != nil {
		logger.WithError(err).Warn("Listing state file is corrupt, discarding it")
		if err := os.Remove(store.Path(stateFile)); err != nil {
			logger.WithError(err).Fatal("Unable to remove the corrupt state file")
		}
		return s
	}
	s.listings = saved.Listings
	if s.listings == nil {
		s.listings = make(map[string]models.EpisodeListing)
	}
	s.expiresAt = saved.ExpiresAt
	logger.WithField("listings", len(s.listings)).Info("Loaded listing state")
	return s
}

// Get returns the listing for key, first clearing the whole map if the daily
// cutoff has passed.
func (s *Store) Get(key string) (models.EpisodeListing, bool) {
	s.mu.RLock()
	expired := time.Now().After(s.expiresAt)
	s.mu.RUnlock()
	if expired {
		s.logger.Warn("Listings have expired, clearing them")
		s.mu.Lock()
		s.listings = make(map[string]models.EpisodeListing)
		s.expiresAt = nextCutoff(time.Now())
		s.persistLocked()
		s.mu.Unlock()
		return models.EpisodeListing{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[key]
	return listing, ok
}

// Put stores the listing and persists the whole map.
func (s *Store) Put(key string, listing models.EpisodeListing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[key] = listing
	s.persistLocked()
}

// persistLocked writes the state file. Losing the ability to persist means
// every restart would rescrape everything, so failure here is fatal.
func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(savedState{
		Listings:  s.listings,
		ExpiresAt: s.expiresAt,
	}, "", "  ")
	if err == nil {
		err = s.cache.Put(stateFile, data)
	}
	if err != nil {
		s.logger.WithError(err).Fatal("Failed to persist listing state")
	}
}

// nextCutoff returns 00:30 local time on the day after now.
func nextCutoff(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 30, 0, 0, now.Location())
	return day.AddDate(0, 0, 1)
}

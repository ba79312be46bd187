package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/cache"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron    *cron.Cron
	sweeper *cache.Sweeper
	spec    string
	logger  *logrus.Logger
}

// NewScheduler creates a new scheduler running the cache sweep on the given
// cron spec.
func NewScheduler(sweeper *cache.Sweeper, spec string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.WithField("spec", s.spec).Info("Starting scheduler")

	if _, err := s.cron.AddFunc(s.spec, s.runSweep); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}
	s.cron.Start()

	// Catch up on anything the previous run left behind.
	go s.runSweep()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	s.sweeper.Sweep()
}

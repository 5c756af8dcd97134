// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/schooldesk/schooldesk/internal/logger"
	"github.com/schooldesk/schooldesk/internal/metrics"
)

// Sweeper removes expired sessions. Implemented by sessionstore.SQLiteStore.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SessionSweepScheduler periodically deletes expired rows from the
// sqlite session table. Redis expires sessions itself and needs no sweep.
type SessionSweepScheduler struct {
	store    Sweeper
	schedule string
	timeout  time.Duration

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
}

// NewSessionSweepScheduler creates a scheduler for the given 5-field cron schedule.
func NewSessionSweepScheduler(store Sweeper, schedule string) *SessionSweepScheduler {
	return &SessionSweepScheduler{
		store:    store,
		schedule: schedule,
		timeout:  30 * time.Second,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// ValidateCronSchedule checks a standard 5-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := cron.ParseStandard(schedule)
	return err
}

// Start registers the sweep job and starts the cron loop.
func (s *SessionSweepScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.RunNow()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	log := logger.Get()
	log.Info().
		Str("schedule", s.schedule).
		Time("next_run", s.cron.Entry(entryID).Next).
		Msg("session sweep scheduler started")

	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *SessionSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.cron.Remove(s.entryID)
	s.isRunning = false

	log := logger.Get()
	log.Info().Msg("session sweep scheduler stopped")
}

// RunNow performs one sweep synchronously and returns the rows removed.
func (s *SessionSweepScheduler) RunNow() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := logger.Get()
	removed, err := s.store.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("session sweep failed")
		return 0
	}

	metrics.SessionsSwept.Add(float64(removed))
	if removed > 0 {
		log.Debug().Int64("removed", removed).Msg("expired sessions swept")
	}
	return removed
}

// IsRunning returns whether the scheduler is active.
func (s *SessionSweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

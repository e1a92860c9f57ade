// Package scheduler runs snapshot retention on a cron schedule while the
// daemon is up.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/metrics"
	"github.com/csheth/ragtoxiv/internal/snapshot"
)

// Retention describes what a pruning run removes. Both rules apply when both
// are set.
type Retention struct {
	// Keep retains the newest Keep snapshots per category.
	Keep int
	// MaxAgeDays removes snapshots dated more than MaxAgeDays ago.
	MaxAgeDays int
	SkipEmpty  bool
}

// Scheduler manages the cron entry that prunes the snapshot store.
type Scheduler struct {
	cron    *cron.Cron
	store   *snapshot.Store
	rules   Retention
	logger  *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// New returns a scheduler using UTC.
func New(store *snapshot.Store, rules Retention, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		store:  store,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// Schedule registers the retention job for spec, replacing any earlier one.
// Standard five-field specs and descriptors such as "@daily" are accepted.
func (s *Scheduler) Schedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	entryID, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Prune(); err != nil {
			s.logger.Error("scheduled retention failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}
	s.entryID = entryID
	return nil
}

// Prune applies the retention rules once and returns the removed files.
func (s *Scheduler) Prune() ([]snapshot.FileInfo, error) {
	var removed []snapshot.FileInfo
	if s.rules.MaxAgeDays > 0 {
		old, err := s.store.PruneOlderThan(s.now(), s.rules.MaxAgeDays, "", false)
		removed = append(removed, old...)
		if err != nil {
			return removed, fmt.Errorf("prune by age: %w", err)
		}
	}
	if s.rules.Keep > 0 {
		extra, err := s.store.PruneKeepRecent(s.rules.Keep, "", s.rules.SkipEmpty, false)
		removed = append(removed, extra...)
		if err != nil {
			return removed, fmt.Errorf("prune by count: %w", err)
		}
	}
	metrics.PrunedSnapshotsTotal.Add(float64(len(removed)))
	s.logger.Info("retention run finished", zap.Int("removed", len(removed)))
	return removed, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		<-s.cron.Stop().Done()
		s.started = false
	}
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Package retention deletes terminal build records and their blobs after a
// configurable age. Non-terminal builds and the build lock are never touched.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/updraft/internal/blob"
	"git.home.luguber.info/inful/updraft/internal/coordinator"
	"git.home.luguber.info/inful/updraft/internal/logfields"
	"git.home.luguber.info/inful/updraft/internal/store"
)

// Sweeper runs the scheduled retention sweep.
type Sweeper struct {
	scheduler gocron.Scheduler
	store     store.Store
	blobs     blob.Store
	maxAge    time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a retention sweeper. maxAge is how old a terminal build must be
// (by completion time) before it is removed; interval is the sweep cadence.
func New(st store.Store, blobs blob.Store, maxAge, interval time.Duration) (*Sweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Sweeper{
		scheduler: s,
		store:     st,
		blobs:     blobs,
		maxAge:    maxAge,
		interval:  interval,
		logger:    slog.Default(),
	}, nil
}

// Start registers the sweep job and begins the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep, ctx),
		gocron.WithName("retention-sweep"),
	)
	if err != nil {
		return fmt.Errorf("failed to create retention job: %w", err)
	}

	s.logger.Info("starting retention sweeper",
		slog.Duration("max_age", s.maxAge),
		slog.Duration("interval", s.interval))
	s.scheduler.Start()
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Sweeper) Stop() error {
	s.logger.Info("stopping retention sweeper")
	return s.scheduler.Shutdown()
}

// sweep removes expired terminal builds. Each record's database row, archive,
// and asset blobs go together; a partial failure is logged and retried on the
// next sweep.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.maxAge)

	records, err := s.store.ListBuilds(ctx, "")
	if err != nil {
		s.logger.Error("retention sweep failed to list builds", logfields.Error(err))
		return
	}

	removed := 0
	for _, rec := range records {
		if !rec.Status.IsTerminal() {
			continue
		}
		if rec.CompletedAt == nil || rec.CompletedAt.After(cutoff) {
			continue
		}
		if err := s.remove(ctx, rec.ID); err != nil {
			s.logger.Error("retention sweep failed to remove build",
				logfields.BuildID(rec.ID),
				logfields.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("retention sweep complete", slog.Int("removed", removed))
	}
}

func (s *Sweeper) remove(ctx context.Context, id string) error {
	if err := s.blobs.Delete(ctx, coordinator.ArchivePath(id)); err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	// Executors can upload blobs a failed build never reported in its asset
	// list; sweep the whole build directory, not just the recorded keys.
	if err := s.blobs.DeletePrefix(ctx, coordinator.AssetPrefix(id)); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	if err := s.store.DeleteBuild(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

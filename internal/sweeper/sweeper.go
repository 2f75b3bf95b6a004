package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "medbook/internal/bookings/errors"
	"medbook/internal/bookings/queue"
	"medbook/internal/bookings/repository"
	"medbook/pkg/logger"
	"medbook/pkg/metrics"
)

type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// Sweeper re-enqueues bookings that stayed pending too long, typically
// because the enqueue at intake failed. A record is re-enqueued at most once
// per StaleAfter window.
type Sweeper struct {
	repo  repository.BookingRepository
	queue queue.WorkQueue
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
}

func New(repo repository.BookingRepository, workQueue queue.WorkQueue, cfg Config, log *logger.Logger) *Sweeper {
	return &Sweeper{
		repo:  repo,
		queue: workQueue,
		cfg:   cfg,
		log:   log.Component("sweeper"),
		now:   time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("Sweeper started",
		"interval", s.cfg.Interval,
		"stale_after", s.cfg.StaleAfter,
		"batch_size", s.cfg.BatchSize,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("Sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass and returns how many items were re-enqueued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.cfg.StaleAfter)
	stale, err := s.repo.FindStalePending(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale bookings: %w", err)
	}

	requeued := 0
	for _, b := range stale {
		// stamp before enqueueing; of two racing sweepers only one wins
		err := s.repo.MarkRequeued(ctx, b.ID, b.Version, cutoff, now)
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrVersionConflict):
			s.log.Debug("Stale booking changed since listing, skipping", "booking_id", b.ID, "reason", err)
			continue
		case err != nil:
			metrics.AddSweeperRequeued(requeued)
			return requeued, fmt.Errorf("failed to mark booking %s requeued: %w", b.ID, err)
		}

		if err := s.queue.Enqueue(ctx, b.WorkItem()); err != nil {
			metrics.AddSweeperRequeued(requeued)
			return requeued, err
		}
		requeued++
		s.log.Debug("Re-enqueued stale booking", "booking_id", b.ID, "created_at", b.CreatedAt)
	}

	metrics.AddSweeperRequeued(requeued)
	if requeued > 0 {
		s.log.Info("Re-enqueued stale bookings", "count", requeued)
	}
	return requeued, nil
}

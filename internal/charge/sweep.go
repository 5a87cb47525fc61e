package charge

import (
	"context"
	"log/slog"
	"time"

	"credits-platform/pkg/logger"
)

// Sweeper periodically re-reconciles pending charges whose webhook never
// arrived. It only re-reads gateway state; all settlement rules stay in the
// reconciler.
type Sweeper struct {
	repo       Repository
	reconciler *Reconciler
	log        *slog.Logger
	clock      func() time.Time

	interval time.Duration
	staleAge time.Duration
	batch    int
}

type SweeperOption func(*Sweeper)

func WithSweeperClock(clock func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.clock = clock }
}

func WithSweepBatchSize(n int) SweeperOption {
	return func(s *Sweeper) { s.batch = n }
}

func NewSweeper(repo Repository, reconciler *Reconciler, log *slog.Logger, interval, staleAge time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:       repo,
		reconciler: reconciler,
		log:        logger.Component(log, "charge-sweeper"),
		clock:      time.Now,
		interval:   interval,
		staleAge:   staleAge,
		batch:      100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is done, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("charge sweeper started", "interval", s.interval, "stale_age", s.staleAge)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("charge sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce reconciles one batch of stale pending charges. Errors on
// individual charges are logged and do not stop the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := s.clock().UTC().Add(-s.staleAge)
	stale, err := s.repo.ListStalePending(ctx, cutoff, s.batch)
	if err != nil {
		s.log.ErrorContext(ctx, "stale charge scan failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	s.log.InfoContext(ctx, "sweeping stale pending charges", "count", len(stale))
	for _, c := range stale {
		if ctx.Err() != nil {
			return
		}
		out, err := s.reconciler.Reconcile(ctx, c.GatewayIntentID)
		if err != nil {
			s.log.ErrorContext(ctx, "sweep reconcile failed",
				"charge_id", c.ID,
				"gateway_intent_id", c.GatewayIntentID,
				"error", err)
			continue
		}
		if out.Charge.Status != StatusPending {
			s.log.InfoContext(ctx, "stale charge settled",
				"charge_id", c.ID,
				"status", out.Charge.Status,
				"credited", out.Credited)
		}
	}
}

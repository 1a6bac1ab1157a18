package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vikaShenoy/Flockr-sub001/internal/repo"
)

// Sweeper permanently removes soft-deleted trips once their restore window
// has passed.
type Sweeper struct {
	nodes    repo.TripNodeRepo
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewSweeper constructs a Sweeper that runs every interval. log may be nil.
func NewSweeper(nodes repo.TripNodeRepo, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{nodes: nodes, interval: interval, now: time.Now, log: log}
}

// SweepOnce purges every expired trip node and returns how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.nodes.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service.Sweeper.SweepOnce: %w", err)
	}
	if n > 0 {
		s.log.Info("purged expired trips", "count", n)
	}
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Failed sweeps are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.log.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

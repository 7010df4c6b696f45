// Package retention periodically removes events that ended long ago.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger deletes every event that ended before cutoff, with its
// participations and chat history, and reports how many events went.
type Purger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper runs the purge on a fixed interval.
type Sweeper struct {
	purger     Purger
	interval   time.Duration
	window     time.Duration
	runOnStart bool
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Sweeper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithWindow overrides how long after its end an event is kept.
func WithWindow(window time.Duration) Option {
	return func(s *Sweeper) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithRunOnStart sweeps once immediately instead of waiting a full interval.
func WithRunOnStart(enabled bool) Option {
	return func(s *Sweeper) {
		s.runOnStart = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New builds a sweeper with a 24h interval and a 30 day window.
func New(purger Purger, opts ...Option) (*Sweeper, error) {
	if purger == nil {
		return nil, fmt.Errorf("purger is required")
	}
	s := &Sweeper{
		purger:   purger,
		interval: 24 * time.Hour,
		window:   30 * 24 * time.Hour,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start sweeps periodically until ctx is cancelled. A failed run is logged
// and retried on the next tick.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.runOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
	}
}

// RunOnce performs a single sweep. Once started it is not interrupted by
// cancellation of ctx.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.window)
	deleted, err := s.purger.PurgeExpired(context.WithoutCancel(ctx), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge events ended before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "expired events removed",
			"deleted", deleted,
			"cutoff", cutoff,
		)
	}
	return deleted, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/kodbank/kodbank/pkg/errutil"
)

// DefaultSweepInterval is how often expired token records are removed.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically deletes token records whose expiry has passed.
// Expired tokens are already rejected by the codec; sweeping only bounds
// the size of the token store.
type Sweeper struct {
	tokens   TokenStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onSwept  func(n int64)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepClock overrides the time source.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweptHook registers a callback invoked with the count of every sweep.
func WithSweptHook(fn func(n int64)) SweeperOption {
	return func(s *Sweeper) {
		s.onSwept = fn
	}
}

// NewSweeper creates a new Sweeper.
func NewSweeper(tokens TokenStore, interval time.Duration, logger *slog.Logger, opts ...SweeperOption) (*Sweeper, error) {
	if tokens == nil {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").Errorf("token store is required")
	}
	if interval <= 0 {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").
			With("interval", interval.String()).
			Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		tokens:   tokens,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SweepOnce deletes expired records and returns the count removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("SWEEP_FAILED").
			With("operation", "delete expired session tokens").
			Wrap(err)
	}
	if s.onSwept != nil {
		s.onSwept(n)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired session tokens swept", "count", n)
	}
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				errutil.LogError(s.logger, "token sweep failed", err)
			}
		}
	}
}

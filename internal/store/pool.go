// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

// Package store owns the PostgreSQL connection pool and the schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default pool settings.
const (
	DefaultMaxConns       int32 = 10
	DefaultConnectTimeout       = 30 * time.Second
	defaultPingBackoff          = 250 * time.Millisecond
	maxPingBackoff              = 5 * time.Second
)

// PoolOptions configures OpenPool.
type PoolOptions struct {
	// MaxConns bounds concurrent connections. Zero uses DefaultMaxConns.
	MaxConns int32
	// ConnectTimeout bounds the initial ping retries. Zero uses DefaultConnectTimeout.
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// OpenPool creates a pool for dsn and waits until the database answers a ping.
// Pings are retried with capped exponential backoff until ConnectTimeout.
// The caller owns the pool and must Close it.
func OpenPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, oops.Code("DB_DSN_MISSING").Errorf("database DSN is required")
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		// pgx echoes the DSN, password included, on parse failures.
		return nil, oops.Code("DB_DSN_INVALID").Errorf("parse database DSN: invalid connection string")
	}
	cfg.MaxConns = opts.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_POOL_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxDuration(opts.ConnectTimeout,
		retry.WithCappedDuration(maxPingBackoff, retry.NewExponential(defaultPingBackoff)))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.Debug("database not ready", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			With("timeout", opts.ConnectTimeout.String()).
			Wrap(err)
	}

	logger.Info("database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns)
	return pool, nil
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck returns a probe that pings the database within timeout.
func ReadinessCheck(db Pinger, timeout time.Duration) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return db.Ping(ctx) == nil
	}
}

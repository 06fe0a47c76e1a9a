// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/internal/auth/postgres"
	"github.com/kodbank/kodbank/internal/config"
	"github.com/kodbank/kodbank/internal/observability"
	"github.com/kodbank/kodbank/internal/store"
	"github.com/kodbank/kodbank/internal/web"
)

// Database is the connection pool the commands run against.
// *pgxpool.Pool satisfies it.
type Database interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator applies pending migrations at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// APIServer is the lifecycle of the HTTP API listener.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer is the lifecycle of the metrics and health listener.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader reads the effective configuration.
	// Default: loadConfig
	ConfigLoader func(cmd *cobra.Command) (*config.Config, error)

	// DatabaseFactory opens the connection pool.
	// Default: store.OpenPool
	DatabaseFactory func(ctx context.Context, dsn string, opts store.PoolOptions) (Database, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(dsn string) (AutoMigrator, error)

	// HasherFactory creates the password hasher.
	// Default: auth.NewArgon2idHasher
	HasherFactory func() auth.PasswordHasher

	// APIServerFactory creates the HTTP API server.
	// Default: web.NewServer
	APIServerFactory func(cfg web.ServerConfig, api *web.API, logger *slog.Logger) APIServer

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// TracingSetup installs the global tracer provider and propagator.
	// Default: observability.SetupTracing
	TracingSetup func(ctx context.Context, cfg observability.TracingConfig) (func(context.Context) error, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.ConfigLoader == nil {
		d.ConfigLoader = loadConfig
	}
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = openDatabase
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(dsn string) (AutoMigrator, error) {
			return store.NewMigrator(dsn)
		}
	}
	if d.HasherFactory == nil {
		d.HasherFactory = func() auth.PasswordHasher {
			return auth.NewArgon2idHasher()
		}
	}
	if d.APIServerFactory == nil {
		d.APIServerFactory = func(cfg web.ServerConfig, api *web.API, logger *slog.Logger) APIServer {
			return web.NewServer(cfg, api, logger)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if d.TracingSetup == nil {
		d.TracingSetup = observability.SetupTracing
	}
	return d
}

func openDatabase(ctx context.Context, dsn string, opts store.PoolOptions) (Database, error) {
	pool, err := store.OpenPool(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

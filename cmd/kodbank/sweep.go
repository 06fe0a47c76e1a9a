// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/internal/auth/postgres"
	"github.com/kodbank/kodbank/internal/config"
	"github.com/kodbank/kodbank/internal/logging"
	"github.com/kodbank/kodbank/internal/store"
)

// SweepDeps contains injectable dependencies for the sweep command.
type SweepDeps struct {
	// ConfigLoader reads the effective configuration.
	// Default: loadConfig
	ConfigLoader func(cmd *cobra.Command) (*config.Config, error)

	// DatabaseFactory opens the connection pool.
	// Default: store.OpenPool
	DatabaseFactory func(ctx context.Context, dsn string, opts store.PoolOptions) (Database, error)
}

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired session tokens once",
		Long: `Delete every session token whose expiry has passed. The server does
this periodically; this command is for cron jobs and maintenance.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweepWithDeps(cmd.Context(), cmd, nil)
		},
	}
}

func runSweepWithDeps(ctx context.Context, cmd *cobra.Command, deps *SweepDeps) error {
	if deps == nil {
		deps = &SweepDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = loadConfig
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = openDatabase
	}

	cfg, err := deps.ConfigLoader(cmd)
	if err != nil {
		return err
	}
	logger := logging.Setup(serviceName, version, cfg.LogFormat, cfg.SlogLevel(), cmd.ErrOrStderr())

	db, err := deps.DatabaseFactory(ctx, cfg.StoreDSN, store.PoolOptions{
		MaxConns:       1,
		ConnectTimeout: cfg.DBConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	// The interval is unused by SweepOnce.
	sweeper, err := auth.NewSweeper(postgres.NewTokenRepository(db), auth.DefaultSweepInterval, logger)
	if err != nil {
		return err
	}
	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired session token(s)\n", n)
	return nil
}

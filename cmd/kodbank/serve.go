// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/internal/auth/postgres"
	"github.com/kodbank/kodbank/internal/config"
	"github.com/kodbank/kodbank/internal/logging"
	"github.com/kodbank/kodbank/internal/observability"
	"github.com/kodbank/kodbank/internal/store"
	"github.com/kodbank/kodbank/internal/web"
	"github.com/kodbank/kodbank/pkg/errutil"
)

const (
	serviceName     = "kodbank"
	shutdownTimeout = 5 * time.Second
	readinessPing   = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the KodBank API server",
		Long: `Start the HTTP API, the metrics and health endpoints, and the
expired token sweeper. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, nil)
		},
	}
}

// runServeWithDeps runs the server until ctx is cancelled or a listener
// fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := deps.ConfigLoader(cmd)
	if err != nil {
		return err
	}

	logger := logging.SetDefault(serviceName, version, cfg.LogFormat, cfg.SlogLevel(), cmd.ErrOrStderr())
	logger.Info("starting kodbank", "config", cfg)

	shutdownTracing, err := deps.TracingSetup(ctx, observability.TracingConfig{
		Service:  serviceName,
		Version:  version,
		Endpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			errutil.LogError(logger, "error flushing traces", err)
		}
	}()

	if cfg.AutoMigrate {
		if err := autoMigrate(deps, cfg.StoreDSN, logger); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseFactory(ctx, cfg.StoreDSN, store.PoolOptions{
		ConnectTimeout: cfg.DBConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open database pool").Wrap(err)
	}
	defer db.Close()

	accounts := postgres.NewAccountRepository(db)
	tokens := postgres.NewTokenRepository(db)

	codec, err := auth.NewJWTCodec(cfg.SigningSecret)
	if err != nil {
		return err
	}
	sessions, err := auth.NewAuthService(accounts, tokens, deps.HasherFactory(), codec,
		auth.WithLogger(logger),
		auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}
	balances, err := auth.NewAccountService(accounts, logger)
	if err != nil {
		return err
	}

	var (
		metrics  *observability.Metrics
		obsSrv   ObservabilityServer
		obsErrCh <-chan error
	)
	if cfg.MetricsAddr != "" {
		obsSrv = deps.ObservabilityServerFactory(cfg.MetricsAddr, store.ReadinessCheck(db, readinessPing))
		obsErrCh, err = obsSrv.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		metrics = obsSrv.Metrics()
	}

	apiOpts := []web.APIOption{web.WithAPILogger(logger)}
	if metrics != nil {
		apiOpts = append(apiOpts, web.WithRecorder(metrics))
	}
	api, err := web.NewAPI(sessions, balances, web.CookieConfig{
		Secure: cfg.CookieSecure,
		MaxAge: sessions.TokenTTL(),
	}, apiOpts...)
	if err != nil {
		stopQuietly(obsSrv, "observability", logger)
		return err
	}

	apiSrv := deps.APIServerFactory(web.ServerConfig{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.AllowedOrigins,
	}, api, logger)
	apiErrCh, err := apiSrv.Start()
	if err != nil {
		stopQuietly(obsSrv, "observability", logger)
		return oops.With("operation", "start api server").Wrap(err)
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if err := startSweeper(sweepCtx, &wg, cfg, tokens, metrics, logger); err != nil {
		stopSweeper()
		stopQuietly(apiSrv, "api", logger)
		stopQuietly(obsSrv, "observability", logger)
		return err
	}

	cmd.Println("KodBank API listening on " + apiSrv.Addr())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case serveErr, ok := <-apiErrCh:
		if ok && serveErr != nil {
			runErr = oops.Code("WEB_SERVE_FAILED").With("component", "api").Wrap(serveErr)
		}
	case serveErr, ok := <-obsErrCh:
		if ok && serveErr != nil {
			runErr = oops.Code("WEB_SERVE_FAILED").With("component", "observability").Wrap(serveErr)
		}
	}

	logger.Info("shutting down", "drain_timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiSrv.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping api server", err)
	}
	stopSweeper()
	wg.Wait()
	if obsSrv != nil {
		if err := obsSrv.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

func autoMigrate(deps *ServeDeps, dsn string, logger *slog.Logger) (err error) {
	migrator, err := deps.MigratorFactory(dsn)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing migrator", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}

func startSweeper(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, tokens auth.TokenStore, metrics *observability.Metrics, logger *slog.Logger) error {
	if cfg.SweepInterval <= 0 {
		logger.Info("token sweeper disabled")
		return nil
	}

	var opts []auth.SweeperOption
	if metrics != nil {
		opts = append(opts, auth.WithSweptHook(metrics.RecordSwept))
	}
	sweeper, err := auth.NewSweeper(tokens, cfg.SweepInterval, logger, opts...)
	if err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	logger.Info("token sweeper started", "interval", cfg.SweepInterval)
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopQuietly stops a server during startup unwinding.
func stopQuietly(s stopper, name string, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("failed to stop server during cleanup", "server", name, "error", err)
	}
}

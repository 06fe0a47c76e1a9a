// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kodbank/kodbank/internal/config"
	"github.com/kodbank/kodbank/internal/store"
)

// SchemaMigrator is the subset of store.Migrator the migrate command uses.
type SchemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// ConfigLoader reads the effective configuration.
	// Default: loadConfig
	ConfigLoader func(cmd *cobra.Command) (*config.Config, error)

	// MigratorFactory creates a migrator for dsn.
	// Default: store.NewMigrator
	MigratorFactory func(dsn string) (SchemaMigrator, error)
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	if d == nil {
		d = &MigrateDeps{}
	}
	if d.ConfigLoader == nil {
		d.ConfigLoader = loadConfig
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(dsn string) (SchemaMigrator, error) {
			return store.NewMigrator(dsn)
		}
	}
	return d
}

// NewMigrateCmd creates the migrate command and its subcommands.
// Without a subcommand it applies every pending migration.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateUp)
		},
	})

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m SchemaMigrator) error {
				return runMigrateDown(cmd, m, all)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateStatus)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use after
repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m SchemaMigrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(*cobra.Command, SchemaMigrator) error) (err error) {
	cfg, err := deps.ConfigLoader(cmd)
	if err != nil {
		return err
	}

	m, err := deps.MigratorFactory(cfg.StoreDSN)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(cmd, m)
}

func runMigrateUp(cmd *cobra.Command, m SchemaMigrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	status, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations completed successfully (version %d)\n", status.Version)
	return nil
}

func runMigrateDown(cmd *cobra.Command, m SchemaMigrator, all bool) error {
	if all {
		cmd.Println("Rolling back all migrations...")
		if err := m.Down(); err != nil {
			return err
		}
	} else {
		cmd.Println("Rolling back one migration...")
		if err := m.Steps(-1); err != nil {
			return err
		}
	}
	status, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Printf("Rollback complete (version %d)\n", status.Version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m SchemaMigrator) error {
	status, err := m.Status()
	if err != nil {
		return err
	}

	current := "none"
	if status.Version > 0 {
		current = describeMigration(status.Version)
	}
	cmd.Printf("Current version: %s\n", current)
	if status.Dirty {
		cmd.Println("State: DIRTY (repair the schema, then run 'kodbank migrate force VERSION')")
	}
	if len(status.Pending) == 0 {
		cmd.Println("Pending: none")
		return nil
	}
	cmd.Println("Pending:")
	for _, v := range status.Pending {
		cmd.Printf("  %s\n", describeMigration(v))
	}
	return nil
}

func describeMigration(version uint) string {
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		return fmt.Sprintf("%d", version)
	}
	return name
}

// parseForceVersion parses the version argument of migrate force.
func parseForceVersion(arg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").
			With("input", arg).
			Errorf("version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").
			With("input", arg).
			Errorf("version must not be negative")
	}
	return v, nil
}

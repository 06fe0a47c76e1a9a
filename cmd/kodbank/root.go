// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/kodbank/kodbank/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the KodBank CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kodbank",
		Short: "KodBank - customer accounts and sessions API",
		Long: `KodBank serves customer registration, cookie-based login sessions
and balance queries backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/kodbank/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the configuration for cmd, honouring --config and any
// flags the user changed.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		File:  configFile,
		Flags: cmd.Flags(),
	})
}

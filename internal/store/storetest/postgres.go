// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

// Package storetest starts a throwaway PostgreSQL for integration tests.
package storetest

import (
	"context"

	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Image is the PostgreSQL image used by integration tests.
const Image = "postgres:16-alpine"

// Database is a running PostgreSQL container.
type Database struct {
	DSN       string
	container *postgres.PostgresContainer
}

// Start runs a PostgreSQL container and returns its DSN.
func Start(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx,
		Image,
		postgres.WithDatabase("kodbank"),
		postgres.WithUsername("kodbank"),
		postgres.WithPassword("kodbank"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		return nil, oops.Code("TEST_DB_START_FAILED").Wrap(err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx) //nolint:errcheck // start error takes precedence
		return nil, oops.Code("TEST_DB_DSN_FAILED").Wrap(err)
	}
	return &Database{DSN: dsn, container: container}, nil
}

// Terminate stops and removes the container.
func (d *Database) Terminate(ctx context.Context) error {
	if d == nil || d.container == nil {
		return nil
	}
	return d.container.Terminate(ctx)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodbank/kodbank/internal/store"
	"github.com/kodbank/kodbank/pkg/errutil"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "2", wantVersion: 2},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "surrounding whitespace", input: "  1 ", wantVersion: 1},
		{name: "non-numeric", input: "abc", wantErr: true},
		{name: "trailing characters", input: "3abc", wantErr: true},
		{name: "float", input: "1.5", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseForceVersion(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, got)
		})
	}
}

type fakeSchemaMigrator struct {
	status   store.Status
	upErr    error
	calls    []string
	forced   int
	closed   bool
	closeErr error
}

func (m *fakeSchemaMigrator) Up() error {
	m.calls = append(m.calls, "up")
	return m.upErr
}

func (m *fakeSchemaMigrator) Down() error {
	m.calls = append(m.calls, "down")
	return nil
}

func (m *fakeSchemaMigrator) Steps(n int) error {
	m.calls = append(m.calls, "steps")
	if n != -1 {
		return errors.New("unexpected step count")
	}
	return nil
}

func (m *fakeSchemaMigrator) Force(version int) error {
	m.calls = append(m.calls, "force")
	m.forced = version
	return nil
}

func (m *fakeSchemaMigrator) Status() (store.Status, error) {
	return m.status, nil
}

func (m *fakeSchemaMigrator) Close() error {
	m.closed = true
	return m.closeErr
}

func runMigrateArgs(t *testing.T, m *fakeSchemaMigrator, args ...string) (string, error) {
	t.Helper()
	cmd := newMigrateCmdWithDeps(&MigrateDeps{
		ConfigLoader: staticConfig(testConfig()),
		MigratorFactory: func(dsn string) (SchemaMigrator, error) {
			assert.Equal(t, testConfig().StoreDSN, dsn)
			return m, nil
		},
	})
	_, out := testCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCmd(t *testing.T) {
	t.Run("bare command applies migrations", func(t *testing.T) {
		m := &fakeSchemaMigrator{status: store.Status{Version: 2}}
		out, err := runMigrateArgs(t, m)
		require.NoError(t, err)
		assert.Equal(t, []string{"up"}, m.calls)
		assert.True(t, m.closed)
		assert.Contains(t, out, "Migrations completed successfully (version 2)")
	})

	t.Run("up", func(t *testing.T) {
		m := &fakeSchemaMigrator{status: store.Status{Version: 2}}
		_, err := runMigrateArgs(t, m, "up")
		require.NoError(t, err)
		assert.Equal(t, []string{"up"}, m.calls)
	})

	t.Run("up failure closes migrator", func(t *testing.T) {
		m := &fakeSchemaMigrator{upErr: errors.New("dirty database")}
		_, err := runMigrateArgs(t, m, "up")
		require.Error(t, err)
		assert.True(t, m.closed)
	})

	t.Run("down rolls back one step", func(t *testing.T) {
		m := &fakeSchemaMigrator{status: store.Status{Version: 1}}
		out, err := runMigrateArgs(t, m, "down")
		require.NoError(t, err)
		assert.Equal(t, []string{"steps"}, m.calls)
		assert.Contains(t, out, "Rollback complete (version 1)")
	})

	t.Run("down --all", func(t *testing.T) {
		m := &fakeSchemaMigrator{}
		_, err := runMigrateArgs(t, m, "down", "--all")
		require.NoError(t, err)
		assert.Equal(t, []string{"down"}, m.calls)
	})

	t.Run("status lists pending by name", func(t *testing.T) {
		m := &fakeSchemaMigrator{status: store.Status{Version: 1, Pending: []uint{2}}}
		out, err := runMigrateArgs(t, m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: 000001_accounts")
		assert.Contains(t, out, "000002_session_tokens")
	})

	t.Run("status of dirty empty database", func(t *testing.T) {
		m := &fakeSchemaMigrator{status: store.Status{Dirty: true}}
		out, err := runMigrateArgs(t, m, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: none")
		assert.Contains(t, out, "DIRTY")
		assert.Contains(t, out, "Pending: none")
	})

	t.Run("force", func(t *testing.T) {
		m := &fakeSchemaMigrator{}
		out, err := runMigrateArgs(t, m, "force", "1")
		require.NoError(t, err)
		assert.Equal(t, 1, m.forced)
		assert.Contains(t, out, "Schema version forced to 1")
	})

	t.Run("force rejects bad version before connecting", func(t *testing.T) {
		m := &fakeSchemaMigrator{}
		_, err := runMigrateArgs(t, m, "force", "x")
		require.Error(t, err)
		assert.Empty(t, m.calls)
		assert.False(t, m.closed)
	})

	t.Run("close error is reported", func(t *testing.T) {
		m := &fakeSchemaMigrator{closeErr: errors.New("close failed")}
		_, err := runMigrateArgs(t, m, "status")
		require.Error(t, err)
	})
}

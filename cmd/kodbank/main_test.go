// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "migrate", "sweep", "config"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "equals form",
			args:     []string{"--config=/etc/kodbank.yaml", "--help"},
			wantFlag: "/etc/kodbank.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile = ""

			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestConfigCommand_PrintsRedacted(t *testing.T) {
	configFile = ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KODBANK_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("KODBANK_STORE_DSN", "postgres://kodbank:hunter2@db:5432/kodbank")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"config", "--token-ttl=45m", "--http-addr=:8080"})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef")
	assert.NotContains(t, out, "hunter2")

	var printed map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &printed))
	assert.Equal(t, "45m0s", printed["token_ttl"])
	assert.Equal(t, ":8080", printed["http_addr"])
	assert.Equal(t, "[REDACTED]", printed["signing_secret"])
}

func TestConfigCommand_FailsFastOnMissingSecret(t *testing.T) {
	configFile = ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KODBANK_SIGNING_SECRET", "")
	t.Setenv("KODBANK_STORE_DSN", "postgres://kodbank@db/kodbank")

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"config", "--token-ttl=1h"})

	require.Error(t, cmd.Execute())
}

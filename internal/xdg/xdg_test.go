// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodbank/kodbank/pkg/errutil"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/kodbank", got)
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config/kodbank", got)
}

func TestConfigDir_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	_, err := ConfigDir()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "XDG_NO_HOME")
}

func TestConfigFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	path, ok, err := ConfigFile()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(base, "kodbank", ConfigFileName), path)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("token_ttl: 1h\n"), 0o600))

	path, ok, err = ConfigFile()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(base, "kodbank", ConfigFileName), path)
}

func TestConfigFile_DirectoryIsNotAFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "kodbank", ConfigFileName), 0o700))

	_, ok, err := ConfigFile()
	require.NoError(t, err)
	assert.False(t, ok)
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/reclaim/internal/services/reclaim"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := New("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, "/tmp", cfg.Config.Root)
	assert.Equal(t, reclaim.DefaultPattern, cfg.Config.Pattern)
	assert.Equal(t, "both", cfg.Config.Mode)
	assert.Equal(t, "lsof", cfg.Config.Source)
	assert.Equal(t, "regex", cfg.Config.Parser)
	assert.Equal(t, "/proc", cfg.Config.ProcRoot)
	assert.Equal(t, "sudo lsof", cfg.Config.LsofCommand)
	assert.Equal(t, "sudo truncate -s 0", cfg.Config.TruncateCommand)
	assert.Equal(t, 30*time.Second, cfg.Config.CommandTimeout)
	assert.Equal(t, "INFO", cfg.Config.LogLevel)
	assert.Equal(t, 50, cfg.Config.LogMaxSize)
	assert.Equal(t, 3, cfg.Config.LogMaxBackups)
	assert.False(t, cfg.Config.DryRun)
	require.NoError(t, cfg.Config.Validate())
}

func TestNew_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		envVars  map[string]string
		flags    []string
		wantRoot string
		wantDry  bool
		wantMode string
	}{
		{
			name:     "config file",
			content:  "root = \"/var/tmp\"\ndryRun = true\nmode = \"mappings\"\n",
			wantRoot: "/var/tmp",
			wantDry:  true,
			wantMode: "mappings",
		},
		{
			name:    "env overrides config",
			content: "root = \"/var/tmp\"\n",
			envVars: map[string]string{
				"RECLAIM__ROOT":    "/dev/shm",
				"RECLAIM__DRY_RUN": "true",
			},
			wantRoot: "/dev/shm",
			wantDry:  true,
			wantMode: "both",
		},
		{
			name:     "flags override env",
			content:  "mode = \"mappings\"\n",
			envVars:  map[string]string{"RECLAIM__ROOT": "/dev/shm"},
			flags:    []string{"--root", "/run/user/1000", "--mode", "descriptors"},
			wantRoot: "/run/user/1000",
			wantMode: "descriptors",
		},
		{
			name:     "unchanged flags do not shadow config",
			content:  "root = \"/var/tmp\"\ndryRun = true\n",
			flags:    []string{},
			wantRoot: "/var/tmp",
			wantDry:  true,
			wantMode: "both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			var fs *pflag.FlagSet
			if tt.flags != nil {
				fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
				fs.String("root", "", "")
				fs.String("mode", "", "")
				fs.Bool("dry-run", false, "")
				require.NoError(t, fs.Parse(tt.flags))
			}

			cfg, err := New(writeConfig(t, tt.content), fs)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRoot, cfg.Config.Root)
			assert.Equal(t, tt.wantDry, cfg.Config.DryRun)
			assert.Equal(t, tt.wantMode, cfg.Config.Mode)
		})
	}
}

func TestNew_DurationFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("RECLAIM__COMMAND_TIMEOUT", "5s")
	t.Setenv("RECLAIM__LOG_MAX_BACKUPS", "7")

	cfg, err := New("", nil)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Config.CommandTimeout)
	assert.Equal(t, 7, cfg.Config.LogMaxBackups)
}

func TestNew_MissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.toml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.toml")
}

func TestNew_PicksUpXDGConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "reclaim", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("parser = \"fields\"\n"), 0o644))

	cfg, err := New("", nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "fields", cfg.Config.Parser)
}

func TestWriteDefault_RoundTripsToDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, WriteDefault(path, false))

	cfg, err := New(path, nil)
	require.NoError(t, err)
	assert.Equal(t, reclaim.DefaultPattern, cfg.Config.Pattern)
	assert.Equal(t, 30*time.Second, cfg.Config.CommandTimeout)

	err = WriteDefault(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, WriteDefault(path, true))
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "RECLAIM__ROOT", envName("root"))
	assert.Equal(t, "RECLAIM__DRY_RUN", envName("dryRun"))
	assert.Equal(t, "RECLAIM__LOG_MAX_BACKUPS", envName("logMaxBackups"))
}

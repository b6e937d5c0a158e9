// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build linux

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/reclaim/internal/buildinfo"
)

func mustRunCommand(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	output, err := runCommand(cmd, args...)
	require.NoError(t, err, output)
	return output
}

func runCommand(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// fakeProc builds a procfs tree where pid 100 holds fd 3 open on a file whose
// name carries the deleted marker, under its own temp root.
func fakeProc(t *testing.T) (procRoot, targetDir, victim string) {
	t.Helper()

	procRoot = t.TempDir()
	targetDir = t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "100", "fd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "100", "comm"), []byte("chrome\n"), 0o644))

	victim = filepath.Join(targetDir, "victim.bin (deleted)")
	require.NoError(t, os.WriteFile(victim, bytes.Repeat([]byte("x"), 4096), 0o644))
	require.NoError(t, os.Symlink(victim, filepath.Join(procRoot, "100", "fd", "3")))

	return procRoot, targetDir, victim
}

func isolateConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestVersionCommand(t *testing.T) {
	output := mustRunCommand(t, RunVersionCommand())
	assert.Contains(t, output, "Version: "+buildinfo.Version)
	assert.Contains(t, output, "Build date:")
}

func TestVersionCommand_JSON(t *testing.T) {
	output := mustRunCommand(t, RunVersionCommand(), "--json")

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, buildinfo.Version, info["version"])
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reclaim", "config.toml")

	output := mustRunCommand(t, RunConfigCommand(), "init", "--path", path)
	assert.Contains(t, output, "Wrote default config to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pattern")

	_, err = runCommand(RunConfigCommand(), "init", "--path", path)
	require.Error(t, err, "existing config must not be overwritten")

	mustRunCommand(t, RunConfigCommand(), "init", "--path", path, "--force")
}

func TestRootCommand_InvalidConfigFailsBeforeScan(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad pattern", args: []string{"--pattern", "("}, want: "invalid pattern"},
		{name: "bad mode", args: []string{"--mode", "sideways"}, want: "invalid mode"},
		{name: "bad filter", args: []string{"--filter", "size >"}, want: "invalid filter"},
		{name: "relative root", args: []string{"--root", "tmp"}, want: "root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A proc root that does not exist would fail if anything got as far as scanning.
			args := append([]string{"--proc-root", "/nonexistent/proc", "--no-color"}, tt.args...)
			output, err := runCommand(NewRootCommand(), args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, output, "No open handles")
		})
	}
}

func TestRootCommand_DryRunLeavesFileIntact(t *testing.T) {
	isolateConfig(t)
	procRoot, targetDir, victim := fakeProc(t)
	metricsFile := filepath.Join(t.TempDir(), "reclaim.prom")

	output := mustRunCommand(t, NewRootCommand(),
		"--source", "procfs",
		"--mode", "fds",
		"--proc-root", procRoot,
		"--root", targetDir,
		"--pattern", `victim\.bin`,
		"--truncate-command", "",
		"--metrics-file", metricsFile,
		"--dry-run",
		"--no-color",
	)

	assert.Contains(t, output, "1 file across 1 inode → 4.0 KiB")
	assert.Contains(t, output, "pid 100 fd 3 (chrome)")
	assert.Contains(t, output, "Dry run: would reclaim 4.0 KiB from 1 inode and 0 mappings")

	info, err := os.Stat(victim)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, info.Size())

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `reclaim_targets{kind="descriptor",outcome="dry-run"} 1`)
}

func TestRootCommand_TruncatesThroughLiveHandle(t *testing.T) {
	isolateConfig(t)
	procRoot, targetDir, victim := fakeProc(t)

	output := mustRunCommand(t, NewRootCommand(),
		"--source", "procfs",
		"--mode", "fds",
		"--proc-root", procRoot,
		"--root", targetDir,
		"--pattern", `victim\.bin`,
		"--truncate-command", "",
		"--yes",
		"--no-color",
	)

	assert.Contains(t, output, "reclaimed inode")
	assert.Contains(t, output, "via "+filepath.Join(procRoot, "100", "fd", "3"))

	info, err := os.Stat(victim)
	require.NoError(t, err)
	assert.EqualValues(t, 0, info.Size())
}

func TestRootCommand_EmptyAnswerDeclines(t *testing.T) {
	isolateConfig(t)
	procRoot, targetDir, victim := fakeProc(t)

	output := mustRunCommand(t, NewRootCommand(),
		"--source", "procfs",
		"--mode", "fds",
		"--proc-root", procRoot,
		"--root", targetDir,
		"--pattern", `victim\.bin`,
		"--truncate-command", "",
		"--no-color",
	)

	assert.Contains(t, output, "Truncate 1 inode (4.0 KiB)? (y/N): ")
	assert.Contains(t, output, "skipped inode")

	info, err := os.Stat(victim)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, info.Size())
}

func TestRootCommand_NothingFound(t *testing.T) {
	isolateConfig(t)

	output := mustRunCommand(t, NewRootCommand(),
		"--source", "procfs",
		"--proc-root", t.TempDir(),
		"--root", "/tmp",
		"--dry-run",
		"--no-color",
	)

	assert.Contains(t, output, "No open handles on deleted files under /tmp")
	assert.Contains(t, output, "No mappings of deleted files under /tmp")
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package command

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr error
	}{
		{name: "simple", in: "sudo lsof", want: []string{"sudo", "lsof"}},
		{name: "quoted", in: `sudo -u 'back up' truncate -s 0`, want: []string{"sudo", "-u", "back up", "truncate", "-s", "0"}},
		{name: "empty", in: "   ", wantErr: ErrEmptyCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_UnterminatedQuote(t *testing.T) {
	t.Parallel()

	if _, err := Parse(`lsof "+L1`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestRun_CapturesOutput(t *testing.T) {
	t.Parallel()
	requireBinary(t, "sh")

	result := Runner{Timeout: 5 * time.Second}.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"})
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if !result.Started || !result.Completed {
		t.Fatalf("expected started and completed, got %+v", result)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "out" || strings.TrimSpace(result.Stderr) != "err" {
		t.Fatalf("unexpected output: stdout=%q stderr=%q", result.Stdout, result.Stderr)
	}
}

func TestRun_NonZeroExitIncludesStderr(t *testing.T) {
	t.Parallel()
	requireBinary(t, "sh")

	result := Runner{}.Run(context.Background(), []string{"sh", "-c", "echo 'permission denied' >&2; exit 3"})
	if result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
	err := result.Err()
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()
	requireBinary(t, "sleep")

	result := Runner{Timeout: 50 * time.Millisecond}.Run(context.Background(), []string{"sleep", "5"})
	if !errors.Is(result.Error, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", result.Error)
	}
	if result.Completed {
		t.Fatal("timed out command must not be marked completed")
	}
}

func TestRun_MissingBinary(t *testing.T) {
	t.Parallel()

	result := Runner{}.Run(context.Background(), []string{"/nonexistent/reclaim-test-binary"})
	if result.Started {
		t.Fatal("expected Started=false for missing binary")
	}
	if result.Error == nil {
		t.Fatal("expected start error")
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	t.Parallel()

	result := Runner{}.Run(context.Background(), nil)
	if !errors.Is(result.Error, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", result.Error)
	}
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package command runs external programs synchronously with a bounded wait.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Hellseher/go-shellquote"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyCommand is returned when a configured command line has no words.
	ErrEmptyCommand = errors.New("empty command")
	// ErrTimeout is returned when a command exceeds the runner's timeout.
	ErrTimeout = errors.New("command timed out")
)

// Result contains the outcome of a command execution.
type Result struct {
	// Started indicates whether the process was successfully started.
	Started bool

	// Completed indicates whether the process exited on its own.
	Completed bool

	// ExitCode is the process exit code. -1 means unknown.
	ExitCode int

	Stdout string
	Stderr string

	// Error is the start error, timeout, cancellation or wait error.
	Error error

	Duration time.Duration
}

// Err returns a single descriptive error for a failed run, or nil.
func (r Result) Err() error {
	if r.Error == nil {
		return nil
	}
	stderr := strings.TrimSpace(r.Stderr)
	if stderr == "" {
		return r.Error
	}
	if i := strings.IndexByte(stderr, '\n'); i >= 0 {
		stderr = stderr[:i]
	}
	return fmt.Errorf("%w: %s", r.Error, stderr)
}

// Runner executes commands. The zero value has no timeout.
type Runner struct {
	Timeout time.Duration
}

// Parse splits a configured command line using shell quoting rules.
func Parse(cmdline string) ([]string, error) {
	words, err := shellquote.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", cmdline, err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}
	return words, nil
}

// String renders argv for logs.
func String(argv []string) string {
	return shellquote.Join(argv...)
}

// Run executes argv, waits for it and captures its output.
func (r Runner) Run(ctx context.Context, argv []string) Result {
	if len(argv) == 0 {
		return Result{ExitCode: -1, Error: ErrEmptyCommand}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Trace().
		Str("command", String(argv)).
		Dur("timeout", r.Timeout).
		Msg("Executing external command")

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{
			ExitCode: -1,
			Error:    err,
			Duration: time.Since(startTime),
		}
	}

	waitErr := cmd.Wait()
	result := Result{
		Started:  true,
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case waitErr == nil:
		result.Completed = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Error = fmt.Errorf("%w after %s", ErrTimeout, r.Timeout)
	case ctx.Err() != nil:
		result.Error = ctx.Err()
	default:
		result.Completed = true
		result.Error = waitErr
	}

	log.Trace().
		Str("command", String(argv)).
		Int("exitCode", result.ExitCode).
		Dur("duration", result.Duration).
		Err(result.Error).
		Msg("External command finished")

	return result
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build linux

package proc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/procfs"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/autobrr/reclaim/internal/command"
)

// Config configures a Host.
type Config struct {
	// ProcRoot is where procfs is mounted.
	ProcRoot string
	// LsofCommand is the argv prefix used to list open files, e.g. ["sudo", "lsof"].
	LsofCommand []string
	// TruncateCommand is the argv prefix used to truncate a path to zero,
	// e.g. ["sudo", "truncate", "-s", "0"]. Empty truncates in-process.
	TruncateCommand []string
	// Timeout bounds each external command.
	Timeout time.Duration
}

// Host implements the reclaim OS seam against the local machine.
type Host struct {
	fs       procfs.FS
	root     string
	runner   command.Runner
	lsof     []string
	truncate []string
}

// NewHost opens procfs at cfg.ProcRoot.
func NewHost(cfg Config) (*Host, error) {
	root := cfg.ProcRoot
	if root == "" {
		root = procfs.DefaultMountPoint
	}

	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %s: %w", root, err)
	}

	return &Host{
		fs:       fs,
		root:     root,
		runner:   command.Runner{Timeout: cfg.Timeout},
		lsof:     cfg.LsofCommand,
		truncate: cfg.TruncateCommand,
	}, nil
}

// ListDeleted runs `lsof +L1 <dir>` and returns its raw output.
//
// lsof exits 1 both when nothing matched and when it hit warnings on the way,
// so exit status 1 is only treated as failure when nothing was printed to
// stdout and stderr carries something other than warnings.
func (h *Host) ListDeleted(ctx context.Context, dir string) (string, error) {
	if len(h.lsof) == 0 {
		return "", command.ErrEmptyCommand
	}

	argv := append(append([]string{}, h.lsof...), "+L1", dir)
	result := h.runner.Run(ctx, argv)
	if result.Error == nil {
		return result.Stdout, nil
	}

	if result.Completed && result.ExitCode == 1 {
		if result.Stdout != "" {
			log.Debug().Str("stderr", result.Stderr).Msg("lsof exited 1 with output, keeping results")
			return result.Stdout, nil
		}
		if onlyWarnings(result.Stderr) {
			if result.Stderr != "" {
				log.Debug().Str("stderr", result.Stderr).Msg("lsof exited 1 with warnings only, nothing matched")
			}
			return "", nil
		}
	}

	return "", fmt.Errorf("%s: %w", command.String(argv), result.Err())
}

// onlyWarnings reports whether every non-blank line of stderr is an lsof
// warning, e.g. "lsof: WARNING: can't stat() fuse.portal file system".
func onlyWarnings(stderr string) bool {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(line, "WARNING:") && !strings.HasPrefix(line, "Output information may be incomplete") {
			return false
		}
	}
	return true
}

// PIDs returns a snapshot of running process ids.
func (h *Host) PIDs(_ context.Context) ([]string, error) {
	procs, err := h.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	pids := make([]string, 0, len(procs))
	for _, p := range procs {
		pids = append(pids, strconv.Itoa(p.PID))
	}
	return pids, nil
}

func (h *Host) proc(pid string) (procfs.Proc, error) {
	id, err := strconv.Atoi(pid)
	if err != nil {
		return procfs.Proc{}, fmt.Errorf("invalid pid %q: %w", pid, err)
	}
	return h.fs.Proc(id)
}

// Maps reads /proc/<pid>/maps.
func (h *Host) Maps(_ context.Context, pid string) ([]*procfs.ProcMap, error) {
	p, err := h.proc(pid)
	if err != nil {
		return nil, err
	}
	return p.ProcMaps()
}

// Descriptors reads /proc/<pid>/fd and resolves every entry. Descriptors
// closed while reading are skipped.
func (h *Host) Descriptors(_ context.Context, pid string) ([]Descriptor, error) {
	p, err := h.proc(pid)
	if err != nil {
		return nil, err
	}

	fds, err := p.FileDescriptors()
	if err != nil {
		return nil, err
	}

	comm, err := p.Comm()
	if err != nil {
		comm = ""
	}

	out := make([]Descriptor, 0, len(fds))
	for _, fd := range fds {
		name := strconv.FormatUint(uint64(fd), 10)
		info, err := h.Inspect(filepath.Join(h.root, pid, "fd", name))
		if err != nil {
			continue
		}
		out = append(out, Descriptor{LinkInfo: info, FD: name, Command: comm})
	}
	return out, nil
}

// Inspect resolves a /proc magic link and stats what it points at.
func (h *Host) Inspect(path string) (LinkInfo, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return LinkInfo{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return LinkInfo{}, err
	}

	li := LinkInfo{Target: target, Size: info.Size()}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		li.Inode = stat.Ino
	}
	return li, nil
}

// Truncate sets the length of path to zero, through TruncateCommand when
// one is configured.
func (h *Host) Truncate(ctx context.Context, path string) error {
	if len(h.truncate) == 0 {
		if err := unix.Truncate(path, 0); err != nil {
			return &os.PathError{Op: "truncate", Path: path, Err: err}
		}
		return nil
	}

	argv := append(append([]string{}, h.truncate...), path)
	result := h.runner.Run(ctx, argv)
	if err := result.Err(); err != nil {
		return fmt.Errorf("%s: %w", command.String(argv), err)
	}
	return nil
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package proc is the host side of reclaim: it lists open files, reads
// per-process tables under /proc and truncates through live handles.
package proc

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

// DeletedMarker is appended by the kernel (and lsof) to the path of an
// unlinked file.
const DeletedMarker = " (deleted)"

// LinkInfo describes what a /proc magic link currently resolves to.
type LinkInfo struct {
	Target string
	Inode  uint64
	Size   int64
}

// Deleted reports whether the link points at an unlinked file.
func (l LinkInfo) Deleted() bool {
	return strings.HasSuffix(l.Target, DeletedMarker)
}

// Descriptor is one entry of /proc/<pid>/fd.
type Descriptor struct {
	LinkInfo
	FD      string
	Command string
}

// IsNotExist reports whether err means the process or handle is gone.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH)
}

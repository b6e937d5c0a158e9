// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"fmt"
	"strings"

	"github.com/autobrr/reclaim/internal/proc"
)

// OpenHandle is an open descriptor on an unlinked file.
type OpenHandle struct {
	PID   string
	FD    string
	Size  int64
	Inode string
	// Path is the last namespace path, including the " (deleted)" marker.
	Path    string
	Command string
}

// DisplayPath returns Path without the deleted marker.
func (h OpenHandle) DisplayPath() string {
	return strings.TrimSuffix(h.Path, proc.DeletedMarker)
}

// MappedRegion is a memory mapping backed by an unlinked file.
type MappedRegion struct {
	PID   string
	Start uint64
	End   uint64
	// Inode is informational; regions are never grouped.
	Inode uint64
	Path  string
}

// Range renders the address range the way /proc/<pid>/map_files names it.
func (m MappedRegion) Range() string {
	return fmt.Sprintf("%x-%x", m.Start, m.End)
}

// Extent is the length of the mapped range in bytes.
func (m MappedRegion) Extent() int64 {
	if m.End <= m.Start {
		return 0
	}
	return int64(m.End - m.Start)
}

// DisplayPath returns Path without the deleted marker.
func (m MappedRegion) DisplayPath() string {
	return strings.TrimSuffix(m.Path, proc.DeletedMarker)
}

// InodeGroup is every open handle on one unlinked inode.
type InodeGroup struct {
	Inode   string
	Members []OpenHandle
	// Size is the sum of member sizes.
	Size int64
}

// Paths returns the distinct member paths in first-seen order.
func (g *InodeGroup) Paths() []string {
	seen := make(map[string]struct{}, len(g.Members))
	paths := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if _, ok := seen[m.Path]; ok {
			continue
		}
		seen[m.Path] = struct{}{}
		paths = append(paths, m.Path)
	}
	return paths
}

// TargetKind distinguishes the two reclamation paths.
type TargetKind string

const (
	TargetDescriptor TargetKind = "descriptor"
	TargetMapping    TargetKind = "mapping"
)

// Outcome is the terminal state of one reclamation target.
type Outcome string

const (
	OutcomeDryRun    Outcome = "dry-run"
	OutcomeReclaimed Outcome = "reclaimed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ReclaimResult records what happened to one target.
type ReclaimResult struct {
	Kind TargetKind
	// ID is the inode for descriptor targets and pid:range for mappings.
	ID string
	// LivePath is the /proc path that was (or would have been) truncated.
	LivePath string
	Path     string
	Size     int64
	Outcome  Outcome
	Err      error
}

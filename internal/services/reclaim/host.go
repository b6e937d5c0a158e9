// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"context"

	"github.com/prometheus/procfs"

	"github.com/autobrr/reclaim/internal/proc"
)

// Host is the narrow OS boundary the engine works through. proc.Host is the
// real implementation; tests use an in-memory fake.
type Host interface {
	// ListDeleted runs the privileged open-file listing for root.
	ListDeleted(ctx context.Context, root string) (string, error)
	// PIDs snapshots running process ids.
	PIDs(ctx context.Context) ([]string, error)
	// Descriptors reads one process's descriptor table.
	Descriptors(ctx context.Context, pid string) ([]proc.Descriptor, error)
	// Maps reads one process's memory map table.
	Maps(ctx context.Context, pid string) ([]*procfs.ProcMap, error)
	// Inspect resolves a live handle path.
	Inspect(path string) (proc.LinkInfo, error)
	// Truncate sets the length of a live handle path to zero.
	Truncate(ctx context.Context, path string) error
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"errors"
	"fmt"
)

// ErrStaleHandle means a live handle no longer refers to the unlinked file
// that was discovered, typically because the descriptor number was reused.
var ErrStaleHandle = errors.New("handle no longer refers to the discovered file")

// DiscoveryError means a discovery facility could not run at all.
type DiscoveryError struct {
	Source string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery via %s failed: %v", e.Source, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// PerProcessReadError means one process's table could not be read.
type PerProcessReadError struct {
	PID string
	Err error
}

func (e *PerProcessReadError) Error() string {
	return fmt.Sprintf("read process %s: %v", e.PID, e.Err)
}

func (e *PerProcessReadError) Unwrap() error { return e.Err }

// ReclaimError means truncation of one target failed.
type ReclaimError struct {
	Target string
	Path   string
	Err    error
}

func (e *ReclaimError) Error() string {
	return fmt.Sprintf("reclaim %s via %s: %v", e.Target, e.Path, e.Err)
}

func (e *ReclaimError) Unwrap() error { return e.Err }

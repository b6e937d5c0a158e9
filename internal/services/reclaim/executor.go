// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/reclaim/internal/proc"
)

// DescriptorPath is the live path of descriptor fd in process pid. Unlike
// the original path it still resolves after the file was unlinked.
func DescriptorPath(procRoot, pid, fd string) string {
	return filepath.Join(procRoot, pid, "fd", fd)
}

// MappingPath is the live path of a mapped region in /proc/<pid>/map_files.
func MappingPath(procRoot string, m MappedRegion) string {
	return filepath.Join(procRoot, m.PID, "map_files", m.Range())
}

// Executor truncates unlinked files through live handles. Each target is
// independent: a failure is recorded on its result and never stops a batch.
type Executor struct {
	host     Host
	procRoot string
}

// NewExecutor creates an executor that builds live paths under procRoot.
func NewExecutor(host Host, procRoot string) *Executor {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &Executor{host: host, procRoot: procRoot}
}

// ReclaimGroup truncates the inode behind g through one of its handles.
// Members are tried in order until one succeeds; each handle is attempted at
// most once. In dry-run mode nothing on the host is touched.
//
// Cancelling ctx never interrupts a truncate in flight. It is checked only
// before moving on to the next member.
func (e *Executor) ReclaimGroup(ctx context.Context, g *InodeGroup, dryRun bool) ReclaimResult {
	result := ReclaimResult{
		Kind: TargetDescriptor,
		ID:   g.Inode,
		Size: g.Size,
	}
	if len(g.Members) == 0 {
		result.Outcome = OutcomeFailed
		result.Err = &ReclaimError{Target: "inode " + g.Inode, Err: errors.New("group has no handles")}
		return result
	}

	first := g.Members[0]
	result.Path = first.Path
	result.LivePath = DescriptorPath(e.procRoot, first.PID, first.FD)

	if dryRun {
		log.Info().
			Str("inode", g.Inode).
			Str("livePath", result.LivePath).
			Str("path", first.Path).
			Int64("size", g.Size).
			Msg("Dry-run: would truncate inode")
		result.Outcome = OutcomeDryRun
		return result
	}

	var errs []error
	for i, h := range g.Members {
		if i > 0 {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}
		}
		livePath := DescriptorPath(e.procRoot, h.PID, h.FD)
		err := e.truncate(ctx, livePath, h.Inode)
		if err == nil {
			result.LivePath = livePath
			result.Outcome = OutcomeReclaimed
			log.Info().
				Str("inode", g.Inode).
				Str("livePath", livePath).
				Str("path", h.Path).
				Int64("size", g.Size).
				Msg("Truncated inode")
			return result
		}
		msg := "Handle unusable, trying next member"
		if proc.IsNotExist(err) {
			msg = "Holder is gone, trying next member"
		}
		log.Debug().Err(err).Str("inode", g.Inode).Str("livePath", livePath).Msg(msg)
		errs = append(errs, fmt.Errorf("%s: %w", livePath, err))
	}

	result.Outcome = OutcomeFailed
	result.Err = &ReclaimError{Target: "inode " + g.Inode, Path: result.LivePath, Err: errors.Join(errs...)}
	log.Warn().Err(result.Err).Str("inode", g.Inode).Msg("Failed to truncate inode")
	return result
}

// ReclaimMapping truncates the file behind one mapped region. Like
// ReclaimGroup, it runs to completion once started even if ctx is cancelled.
func (e *Executor) ReclaimMapping(ctx context.Context, m MappedRegion, dryRun bool) ReclaimResult {
	livePath := MappingPath(e.procRoot, m)
	result := ReclaimResult{
		Kind:     TargetMapping,
		ID:       m.PID + ":" + m.Range(),
		LivePath: livePath,
		Path:     m.Path,
		Size:     m.Extent(),
	}

	if dryRun {
		log.Info().
			Str("pid", m.PID).
			Str("livePath", livePath).
			Str("path", m.Path).
			Msg("Dry-run: would truncate mapping")
		result.Outcome = OutcomeDryRun
		return result
	}

	var inode string
	if m.Inode != 0 {
		inode = strconv.FormatUint(m.Inode, 10)
	}
	if err := e.truncate(ctx, livePath, inode); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = &ReclaimError{Target: "mapping " + result.ID, Path: livePath, Err: err}
		log.Warn().Err(result.Err).Str("pid", m.PID).Msg("Failed to truncate mapping")
		return result
	}

	result.Outcome = OutcomeReclaimed
	log.Info().
		Str("pid", m.PID).
		Str("livePath", livePath).
		Str("path", m.Path).
		Msg("Truncated mapping")
	return result
}

// ReclaimGroups runs ReclaimGroup over a batch, one item at a time. Once ctx
// is cancelled the remaining items are reported as skipped.
func (e *Executor) ReclaimGroups(ctx context.Context, groups []*InodeGroup, dryRun bool) []ReclaimResult {
	results := make([]ReclaimResult, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			results = append(results, ReclaimResult{Kind: TargetDescriptor, ID: g.Inode, Size: g.Size, Outcome: OutcomeSkipped, Err: err})
			continue
		}
		results = append(results, e.ReclaimGroup(ctx, g, dryRun))
	}
	return results
}

// ReclaimMappings runs ReclaimMapping over a batch, one item at a time.
func (e *Executor) ReclaimMappings(ctx context.Context, regions []MappedRegion, dryRun bool) []ReclaimResult {
	results := make([]ReclaimResult, 0, len(regions))
	for _, m := range regions {
		if err := ctx.Err(); err != nil {
			results = append(results, ReclaimResult{Kind: TargetMapping, ID: m.PID + ":" + m.Range(), Size: m.Extent(), Outcome: OutcomeSkipped, Err: err})
			continue
		}
		results = append(results, e.ReclaimMapping(ctx, m, dryRun))
	}
	return results
}

// truncate verifies that livePath still resolves to the unlinked file that
// was discovered, then truncates it. When the handle cannot be inspected for
// lack of privilege the privileged truncate is still attempted. The truncate
// is detached from cancellation of ctx; the host's command timeout still
// bounds it.
func (e *Executor) truncate(ctx context.Context, livePath, inode string) error {
	info, err := e.host.Inspect(livePath)
	switch {
	case errors.Is(err, fs.ErrPermission):
		log.Debug().Err(err).Str("livePath", livePath).Msg("Cannot inspect handle, truncating unverified")
	case err != nil:
		return err
	case !info.Deleted():
		return fmt.Errorf("%w: now points at %q", ErrStaleHandle, info.Target)
	case inode != "" && strconv.FormatUint(info.Inode, 10) != inode:
		return fmt.Errorf("%w: inode %d, expected %s", ErrStaleHandle, info.Inode, inode)
	}

	return e.host.Truncate(context.WithoutCancel(ctx), livePath)
}

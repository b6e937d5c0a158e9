// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/reclaim/internal/proc"
)

// ScanResult is the outcome of one scan. Skipped lists processes whose
// tables could not be read; their absence never fails the scan.
type ScanResult[T any] struct {
	Records []T
	Skipped []*PerProcessReadError
}

// Scanner discovers open handles and mappings on unlinked files.
type Scanner struct {
	host     Host
	settings Settings
}

// NewScanner creates a scanner bound to host and settings.
func NewScanner(host Host, settings Settings) *Scanner {
	return &Scanner{host: host, settings: settings}
}

// ScanHandles discovers open descriptors on deleted files beneath root that
// match the configured pattern and filter. A *DiscoveryError is returned
// when the listing facility cannot run; the result is then empty.
func (s *Scanner) ScanHandles(ctx context.Context, root string) (ScanResult[OpenHandle], error) {
	var (
		result ScanResult[OpenHandle]
		raw    []OpenHandle
	)

	switch s.settings.Source {
	case SourceProcfs:
		var err error
		raw, result.Skipped, err = s.procfsHandles(ctx, root)
		if err != nil {
			return ScanResult[OpenHandle]{}, err
		}
	default:
		output, err := s.host.ListDeleted(ctx, root)
		if err != nil {
			return ScanResult[OpenHandle]{}, &DiscoveryError{Source: string(SourceLsof), Err: err}
		}
		raw = ParseLsofOutput(output, s.settings.Parser.lineParser())
	}

	policy := s.settings
	policy.Root = root
	for _, h := range raw {
		if !policy.matchesPath(h.Path) {
			continue
		}
		ok, err := s.settings.Filter.MatchHandle(h)
		if err != nil {
			log.Warn().Err(err).Str("pid", h.PID).Str("fd", h.FD).Msg("Filter evaluation failed, excluding handle")
			continue
		}
		if ok {
			result.Records = append(result.Records, h)
		}
	}

	log.Debug().
		Str("source", string(s.settings.Source)).
		Int("candidates", len(raw)).
		Int("matched", len(result.Records)).
		Msg("Descriptor scan finished")

	return result, nil
}

func (s *Scanner) procfsHandles(ctx context.Context, root string) ([]OpenHandle, []*PerProcessReadError, error) {
	pids, err := s.host.PIDs(ctx)
	if err != nil {
		return nil, nil, &DiscoveryError{Source: string(SourceProcfs), Err: err}
	}

	var (
		handles []OpenHandle
		skipped []*PerProcessReadError
	)
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return handles, skipped, err
		}

		fds, err := s.host.Descriptors(ctx, pid)
		if err != nil {
			skipped = append(skipped, s.skip(pid, err))
			continue
		}

		for _, fd := range fds {
			if !fd.Deleted() || !isUnderRoot(fd.Target, root) {
				continue
			}
			handles = append(handles, OpenHandle{
				PID:     pid,
				FD:      fd.FD,
				Size:    fd.Size,
				Inode:   strconv.FormatUint(fd.Inode, 10),
				Path:    fd.Target,
				Command: fd.Command,
			})
		}
	}
	return handles, skipped, nil
}

// ScanMappings discovers memory mappings of deleted files beneath root whose
// path matches pattern. A process whose map table cannot be read is skipped.
func (s *Scanner) ScanMappings(ctx context.Context, root string, pattern *regexp.Regexp) (ScanResult[MappedRegion], error) {
	var result ScanResult[MappedRegion]

	pids, err := s.host.PIDs(ctx)
	if err != nil {
		return result, &DiscoveryError{Source: "procfs", Err: err}
	}

	policy := s.settings
	policy.Root = root
	policy.Pattern = pattern

	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		maps, err := s.host.Maps(ctx, pid)
		if err != nil {
			result.Skipped = append(result.Skipped, s.skip(pid, err))
			continue
		}

		for _, m := range maps {
			if m == nil || !strings.HasSuffix(m.Pathname, proc.DeletedMarker) {
				continue
			}
			if !policy.matchesPath(m.Pathname) {
				continue
			}

			region := MappedRegion{
				PID:   pid,
				Start: uint64(m.StartAddr),
				End:   uint64(m.EndAddr),
				Inode: m.Inode,
				Path:  m.Pathname,
			}
			ok, err := s.settings.Filter.MatchRegion(region)
			if err != nil {
				log.Warn().Err(err).Str("pid", pid).Str("range", region.Range()).Msg("Filter evaluation failed, excluding mapping")
				continue
			}
			if ok {
				result.Records = append(result.Records, region)
			}
		}
	}

	log.Debug().
		Int("processes", len(pids)).
		Int("skipped", len(result.Skipped)).
		Int("matched", len(result.Records)).
		Msg("Mapping scan finished")

	return result, nil
}

func (s *Scanner) skip(pid string, err error) *PerProcessReadError {
	perr := &PerProcessReadError{PID: pid, Err: err}
	log.Debug().Err(err).Str("pid", pid).Msg("Skipping process")
	return perr
}

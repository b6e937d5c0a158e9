// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package reclaim finds unlinked files that are still held open beneath a
// directory and releases their blocks by truncating them through the live
// /proc handle of a process that holds them.
package reclaim

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Stage is one scan-confirm-execute pass.
type Stage string

const (
	StageDescriptors Stage = "descriptors"
	StageMappings    Stage = "mappings"
)

// Hooks lets the caller observe each stage and gate its execution.
type Hooks struct {
	// Found is called after a stage's scan, before confirmation.
	Found func(stage Stage, report *Report)
	// Confirm gates the execute step of a stage that found something. It is
	// not consulted in dry-run mode. A nil Confirm approves every stage.
	Confirm func(stage Stage, report *Report) bool
}

// Report accumulates everything one run discovered and did.
type Report struct {
	Root     string
	DryRun   bool
	Started  time.Time
	Finished time.Time

	Handles  []OpenHandle
	Groups   *Groups
	Mappings []MappedRegion
	Results  []ReclaimResult

	DiscoveryErrors []error
	Skipped         []*PerProcessReadError
	Declined        []Stage
}

// Count returns the number of results of kind with outcome.
func (r *Report) Count(kind TargetKind, outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Kind == kind && res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Bytes sums the sizes of results of kind with outcome.
func (r *Report) Bytes(kind TargetKind, outcome Outcome) int64 {
	var total int64
	for _, res := range r.Results {
		if res.Kind == kind && res.Outcome == outcome {
			total += res.Size
		}
	}
	return total
}

// MappingBytes is the total extent of every discovered mapping.
func (r *Report) MappingBytes() int64 {
	var total int64
	for _, m := range r.Mappings {
		total += m.Extent()
	}
	return total
}

// StageResults returns the results produced by stage.
func (r *Report) StageResults(stage Stage) []ReclaimResult {
	kind := TargetDescriptor
	if stage == StageMappings {
		kind = TargetMapping
	}
	var out []ReclaimResult
	for _, res := range r.Results {
		if res.Kind == kind {
			out = append(out, res)
		}
	}
	return out
}

// Service runs the reclaim pipeline: scan, group, confirm, execute.
type Service struct {
	settings Settings
	scanner  *Scanner
	executor *Executor
	hooks    Hooks
}

// NewService creates a Service working through host.
func NewService(host Host, settings Settings, hooks Hooks) *Service {
	return &Service{
		settings: settings,
		scanner:  NewScanner(host, settings),
		executor: NewExecutor(host, settings.ProcRoot),
		hooks:    hooks,
	}
}

// Run executes every stage enabled by the configured mode. Discovery
// failures and per-target failures are recorded on the report and never
// fail the run; only context cancellation is returned as an error.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Root:    s.settings.Root,
		DryRun:  s.settings.DryRun,
		Started: time.Now(),
	}
	defer func() { report.Finished = time.Now() }()

	log.Info().
		Str("root", s.settings.Root).
		Str("mode", string(s.settings.Mode)).
		Str("source", string(s.settings.Source)).
		Bool("dryRun", s.settings.DryRun).
		Msg("Starting reclaim run")

	if s.settings.Mode.Descriptors() {
		if err := s.runDescriptors(ctx, report); err != nil {
			return report, err
		}
	}
	if s.settings.Mode.Mappings() {
		if err := s.runMappings(ctx, report); err != nil {
			return report, err
		}
	}

	log.Info().
		Int("handles", len(report.Handles)).
		Int("inodes", report.Groups.Len()).
		Int("mappings", len(report.Mappings)).
		Int("failed", report.Count(TargetDescriptor, OutcomeFailed)+report.Count(TargetMapping, OutcomeFailed)).
		Msg("Reclaim run finished")

	return report, nil
}

func (s *Service) runDescriptors(ctx context.Context, report *Report) error {
	scan, err := s.scanner.ScanHandles(ctx, s.settings.Root)
	if err := s.discoveryFailed(report, err); err != nil {
		return err
	}
	report.Handles = scan.Records
	report.Skipped = append(report.Skipped, scan.Skipped...)
	report.Groups = GroupByInode(scan.Records)

	s.found(StageDescriptors, report)
	if report.Groups.Len() == 0 {
		log.Info().Str("root", s.settings.Root).Msg("No open handles on deleted files found")
		return nil
	}

	groups := report.Groups.All()
	if !s.approved(StageDescriptors, report) {
		for _, g := range groups {
			report.Results = append(report.Results, ReclaimResult{Kind: TargetDescriptor, ID: g.Inode, Path: g.Members[0].Path, Size: g.Size, Outcome: OutcomeSkipped})
		}
		return nil
	}

	report.Results = append(report.Results, s.executor.ReclaimGroups(ctx, groups, s.settings.DryRun)...)
	return ctx.Err()
}

func (s *Service) runMappings(ctx context.Context, report *Report) error {
	scan, err := s.scanner.ScanMappings(ctx, s.settings.Root, s.settings.Pattern)
	if err := s.discoveryFailed(report, err); err != nil {
		return err
	}
	report.Mappings = scan.Records
	report.Skipped = append(report.Skipped, scan.Skipped...)

	s.found(StageMappings, report)
	if len(report.Mappings) == 0 {
		log.Info().Str("root", s.settings.Root).Msg("No mappings of deleted files found")
		return nil
	}

	if !s.approved(StageMappings, report) {
		for _, m := range report.Mappings {
			report.Results = append(report.Results, ReclaimResult{Kind: TargetMapping, ID: m.PID + ":" + m.Range(), Path: m.Path, Size: m.Extent(), Outcome: OutcomeSkipped})
		}
		return nil
	}

	report.Results = append(report.Results, s.executor.ReclaimMappings(ctx, report.Mappings, s.settings.DryRun)...)
	return ctx.Err()
}

// discoveryFailed records a DiscoveryError and lets the run continue. Any
// other error, such as cancellation, is returned.
func (s *Service) discoveryFailed(report *Report, err error) error {
	if err == nil {
		return nil
	}
	var derr *DiscoveryError
	if errors.As(err, &derr) {
		log.Warn().Err(err).Msg("Discovery failed, continuing with no results")
		report.DiscoveryErrors = append(report.DiscoveryErrors, err)
		return nil
	}
	return err
}

func (s *Service) found(stage Stage, report *Report) {
	if s.hooks.Found != nil {
		s.hooks.Found(stage, report)
	}
}

func (s *Service) approved(stage Stage, report *Report) bool {
	if s.settings.DryRun || s.hooks.Confirm == nil {
		return true
	}
	if s.hooks.Confirm(stage, report) {
		return true
	}
	log.Info().Str("stage", string(stage)).Msg("Reclaim declined, nothing truncated")
	report.Declined = append(report.Declined, stage)
	return false
}

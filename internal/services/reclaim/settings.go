// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/autobrr/reclaim/internal/domain"
)

// DefaultPattern matches Chromium's shared-memory temp files. It is only a
// default; every scan takes its pattern from Settings.
const DefaultPattern = `/tmp/\.org\.chromium\.Chromium\.[^ ]*(/[^ ]*)*( \(deleted\))?`

// Mode selects which scan paths run.
type Mode string

const (
	ModeDescriptors Mode = "descriptors"
	ModeMappings    Mode = "mappings"
	ModeBoth        Mode = "both"
)

// ParseMode accepts the mode names plus the short aliases fds, maps and all.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "descriptors", "fds", "fd":
		return ModeDescriptors, nil
	case "mappings", "maps", "map":
		return ModeMappings, nil
	case "both", "all", "":
		return ModeBoth, nil
	}
	return "", fmt.Errorf("invalid mode %q (options: descriptors, mappings, both)", s)
}

// Descriptors reports whether the descriptor scan runs.
func (m Mode) Descriptors() bool { return m == ModeDescriptors || m == ModeBoth }

// Mappings reports whether the mapping scan runs.
func (m Mode) Mappings() bool { return m == ModeMappings || m == ModeBoth }

// Source selects how open descriptors are discovered.
type Source string

const (
	// SourceLsof parses `lsof +L1 <root>` output.
	SourceLsof Source = "lsof"
	// SourceProcfs walks /proc/<pid>/fd directly.
	SourceProcfs Source = "procfs"
)

// ParseSource validates a descriptor source name.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceLsof, "":
		return SourceLsof, nil
	case SourceProcfs:
		return SourceProcfs, nil
	}
	return "", fmt.Errorf("invalid source %q (options: lsof, procfs)", s)
}

// Parser selects the lsof line parser.
type Parser string

const (
	ParserRegex  Parser = "regex"
	ParserFields Parser = "fields"
)

// ParseParser validates a parser name.
func ParseParser(s string) (Parser, error) {
	switch Parser(strings.ToLower(strings.TrimSpace(s))) {
	case ParserRegex, "":
		return ParserRegex, nil
	case ParserFields:
		return ParserFields, nil
	}
	return "", fmt.Errorf("invalid parser %q (options: regex, fields)", s)
}

// LineParser parses one line of lsof output. ok is false for lines that
// are not a qualifying deleted-file row.
type LineParser func(line string) (OpenHandle, bool)

func (p Parser) lineParser() LineParser {
	if p == ParserFields {
		return ParseLsofFields
	}
	return ParseLsofLine
}

// Settings is the validated scan and reclaim policy for one run.
type Settings struct {
	Root     string
	Pattern  *regexp.Regexp
	Mode     Mode
	Source   Source
	Parser   Parser
	Filter   *Filter
	DryRun   bool
	ProcRoot string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Root:     "/tmp",
		Pattern:  regexp.MustCompile(DefaultPattern),
		Mode:     ModeBoth,
		Source:   SourceLsof,
		Parser:   ParserRegex,
		ProcRoot: "/proc",
	}
}

// NewSettings validates cfg. Invalid patterns, modes and filters are
// configuration errors and must stop the run before any scan.
func NewSettings(cfg *domain.Config) (Settings, error) {
	s := DefaultSettings()
	var errs []error

	if cfg.Root != "" {
		s.Root = filepath.Clean(cfg.Root)
	}
	if cfg.ProcRoot != "" {
		s.ProcRoot = filepath.Clean(cfg.ProcRoot)
	}
	s.DryRun = cfg.DryRun

	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid pattern: %w", err))
	}
	s.Pattern = pattern

	if s.Mode, err = ParseMode(cfg.Mode); err != nil {
		errs = append(errs, err)
	}
	if s.Source, err = ParseSource(cfg.Source); err != nil {
		errs = append(errs, err)
	}
	if s.Parser, err = ParseParser(cfg.Parser); err != nil {
		errs = append(errs, err)
	}
	if s.Filter, err = CompileFilter(cfg.Filter); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version string

	// Root is the directory whose deleted-but-open files are considered.
	Root string `toml:"root" mapstructure:"root"`
	// Pattern is a regular expression searched for in each candidate path.
	Pattern string `toml:"pattern" mapstructure:"pattern"`
	// Mode selects the scan paths: descriptors, mappings or both.
	Mode string `toml:"mode" mapstructure:"mode"`
	// Source selects how descriptors are discovered: lsof or procfs.
	Source string `toml:"source" mapstructure:"source"`
	// Parser selects the lsof line parser: regex or fields.
	Parser string `toml:"parser" mapstructure:"parser"`
	// Filter is an optional boolean expression evaluated against each target.
	Filter string `toml:"filter" mapstructure:"filter"`

	DryRun    bool `toml:"dryRun" mapstructure:"dryRun"`
	AssumeYes bool `toml:"assumeYes" mapstructure:"assumeYes"`
	NoColor   bool `toml:"noColor" mapstructure:"noColor"`

	ProcRoot        string        `toml:"procRoot" mapstructure:"procRoot"`
	LsofCommand     string        `toml:"lsofCommand" mapstructure:"lsofCommand"`
	TruncateCommand string        `toml:"truncateCommand" mapstructure:"truncateCommand"`
	CommandTimeout  time.Duration `toml:"commandTimeout" mapstructure:"commandTimeout"`

	MetricsFile string `toml:"metricsFile" mapstructure:"metricsFile"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
}

var validLogLevels = []string{"ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

// Validate checks the settings that do not depend on the scan engine.
// Pattern, mode and filter are compiled by the engine itself.
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, errors.New("root must not be empty"))
	} else if !filepath.IsAbs(c.Root) {
		errs = append(errs, fmt.Errorf("root must be absolute: %s", c.Root))
	}

	if c.ProcRoot != "" && !filepath.IsAbs(c.ProcRoot) {
		errs = append(errs, fmt.Errorf("procRoot must be absolute: %s", c.ProcRoot))
	}

	if c.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("commandTimeout must be positive, got %s", c.CommandTimeout))
	}

	if c.LogLevel != "" && !isValidLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid logLevel %q (options: %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	if c.LogMaxSize < 0 || c.LogMaxBackups < 0 {
		errs = append(errs, errors.New("logMaxSize and logMaxBackups must not be negative"))
	}

	return errors.Join(errs...)
}

func isValidLogLevel(level string) bool {
	upper := strings.ToUpper(level)
	for _, l := range validLogLevels {
		if upper == l {
			return true
		}
	}
	return false
}

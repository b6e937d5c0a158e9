// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/autobrr/reclaim/internal/services/reclaim"
)

const configTemplate = `# config.toml - generated by reclaim config init

# Directory whose deleted-but-open files are considered
# Default: "/tmp"
root = "/tmp"

# Regular expression searched for in each deleted path (not a full match)
# Default targets Chromium's shared-memory temp files
pattern = '{{pattern}}'

# Which scans to run
# Options: "descriptors", "mappings", "both"
mode = "both"

# How open descriptors are discovered
# Options: "lsof", "procfs"
source = "lsof"

# lsof output parser
# Options: "regex", "fields"
parser = "regex"

# Optional expression every target must satisfy
# Variables: pid, fd, inode, size, path, command
#filter = "size > 50 * 1024 * 1024"

# Report only, never truncate
#dryRun = false

# Skip the confirmation prompt
#assumeYes = false

# Disable colored report output
#noColor = false

# External commands, split with shell quoting rules.
# Leave truncateCommand empty to truncate directly (requires running as root).
lsofCommand = "sudo lsof"
truncateCommand = "sudo truncate -s 0"

# Upper bound for each external command
commandTimeout = "30s"

# Where /proc is mounted
#procRoot = "/proc"

# Write run metrics in Prometheus text format (node_exporter textfile collector)
#metricsFile = "/var/lib/node_exporter/textfile/reclaim.prom"

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Log file path
# If not defined, logs to stderr only
#logPath = "log/reclaim.log"

# Maximum log file size in megabytes before rotation
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
#logMaxBackups = 3
`

// DefaultConfigContent returns the commented default config.toml.
func DefaultConfigContent() string {
	return strings.Replace(configTemplate, "{{pattern}}", reclaim.DefaultPattern, 1)
}

// WriteDefault writes the default config file to path, creating parent
// directories. An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "could not create config directory")
	}

	if err := os.WriteFile(path, []byte(DefaultConfigContent()), 0o644); err != nil {
		return errors.Wrapf(err, "could not write config file %s", path)
	}
	return nil
}

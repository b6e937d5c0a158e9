// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads reclaim settings from defaults, config.toml, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autobrr/reclaim/internal/buildinfo"
	"github.com/autobrr/reclaim/internal/domain"
	"github.com/autobrr/reclaim/internal/services/reclaim"
)

// EnvPrefix is prepended to every environment override, e.g. RECLAIM__DRY_RUN.
const EnvPrefix = "RECLAIM__"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"root":             "root",
	"pattern":          "pattern",
	"mode":             "mode",
	"source":           "source",
	"parser":           "parser",
	"filter":           "filter",
	"dry-run":          "dryRun",
	"yes":              "assumeYes",
	"no-color":         "noColor",
	"proc-root":        "procRoot",
	"lsof-command":     "lsofCommand",
	"truncate-command": "truncateCommand",
	"command-timeout":  "commandTimeout",
	"metrics-file":     "metricsFile",
	"log-level":        "logLevel",
	"log-path":         "logPath",
}

// AppConfig is the loaded configuration plus where it came from.
type AppConfig struct {
	Config *domain.Config
	// File is the config file that was read, empty when none was found.
	File string
}

// defaults lists every config key in its canonical spelling. viper
// lowercases keys internally, so env names are derived from this list.
var defaults = []struct {
	key   string
	value any
}{
	{"root", "/tmp"},
	{"pattern", reclaim.DefaultPattern},
	{"mode", string(reclaim.ModeBoth)},
	{"source", string(reclaim.SourceLsof)},
	{"parser", string(reclaim.ParserRegex)},
	{"filter", ""},
	{"dryRun", false},
	{"assumeYes", false},
	{"noColor", false},
	{"procRoot", "/proc"},
	{"lsofCommand", "sudo lsof"},
	{"truncateCommand", "sudo truncate -s 0"},
	{"commandTimeout", 30 * time.Second},
	{"metricsFile", ""},
	{"logLevel", "INFO"},
	{"logPath", ""},
	{"logMaxSize", 50},
	{"logMaxBackups", 3},
}

// New loads configuration. configPath may be empty, in which case the default
// location is used when a file exists there. flags may be nil.
func New(configPath string, flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	for _, d := range defaults {
		v.SetDefault(d.key, d.value)
	}

	file, err := resolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read config file %s", file)
		}
	}

	for _, d := range defaults {
		if err := v.BindEnv(d.key, envName(d.key)); err != nil {
			return nil, errors.Wrapf(err, "could not bind env for %s", d.key)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, errors.Wrapf(err, "could not bind flag --%s", name)
			}
		}
	}

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}
	cfg.Version = buildinfo.Version

	return &AppConfig{Config: cfg, File: file}, nil
}

func resolveConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "config file %s", explicit)
		}
		return explicit, nil
	}

	candidate := DefaultConfigPath()
	if candidate == "" {
		return "", nil
	}
	if _, err := os.Stat(candidate); err != nil {
		return "", nil
	}
	return candidate, nil
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/reclaim/config.toml, falling back
// to ~/.config/reclaim/config.toml.
func DefaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "reclaim", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "reclaim", "config.toml")
}

// envName converts a camelCase key to RECLAIM__SNAKE_CASE.
func envName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

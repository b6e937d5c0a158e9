// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build linux

package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/reclaim/internal/buildinfo"
	"github.com/autobrr/reclaim/internal/command"
	"github.com/autobrr/reclaim/internal/config"
	"github.com/autobrr/reclaim/internal/domain"
	"github.com/autobrr/reclaim/internal/logger"
	"github.com/autobrr/reclaim/internal/metrics"
	"github.com/autobrr/reclaim/internal/proc"
	"github.com/autobrr/reclaim/internal/prompt"
	"github.com/autobrr/reclaim/internal/report"
	"github.com/autobrr/reclaim/internal/services/reclaim"
)

func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Reclaim disk space held by deleted files that are still open",
		Long: `Find files beneath a directory that were deleted while a process still holds
them open, and truncate them to zero through /proc/<pid>/fd/<fd> or
/proc/<pid>/map_files/<start>-<end> so their blocks are released without
restarting the holder.`,
		Example: `  reclaim --dry-run
  reclaim --mode fds --yes
  reclaim --root /var/tmp --pattern '\.tmp' --filter 'size > 50 * 1024 * 1024'`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := config.New(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runReclaim(cmd, appCfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to config.toml (default $XDG_CONFIG_HOME/reclaim/config.toml)")
	f.String("root", "/tmp", "Directory whose deleted files are reclaimed")
	f.String("pattern", reclaim.DefaultPattern, "Regular expression a deleted path must contain")
	f.String("mode", string(reclaim.ModeBoth), "What to scan: descriptors (fds), mappings (maps) or both (all)")
	f.String("source", string(reclaim.SourceLsof), "How descriptors are discovered: lsof or procfs")
	f.String("parser", string(reclaim.ParserRegex), "lsof line parser: regex or fields")
	f.String("filter", "", "Expression every target must satisfy, e.g. 'size > 1048576'")
	f.Bool("dry-run", false, "Report what would be reclaimed without truncating anything")
	f.BoolP("yes", "y", false, "Do not ask for confirmation")
	f.Bool("no-color", false, "Disable colored output")
	f.String("proc-root", "/proc", "Mount point of procfs")
	f.String("lsof-command", "sudo lsof", "Command used to list open deleted files")
	f.String("truncate-command", "sudo truncate -s 0", "Command used to truncate a live handle; empty truncates in-process")
	f.Duration("command-timeout", 30*time.Second, "Upper bound for each external command")
	f.String("metrics-file", "", "Write run metrics to this file in Prometheus text format")
	f.String("log-level", "INFO", "Log level: ERROR, WARN, INFO, DEBUG or TRACE")
	f.String("log-path", "", "Also write logs to this file, rotated by size")

	cmd.AddCommand(RunVersionCommand())
	cmd.AddCommand(RunConfigCommand())

	return cmd
}

func runReclaim(cmd *cobra.Command, appCfg *config.AppConfig) error {
	cfg := appCfg.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	closer, err := logger.Setup(logger.Options{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		NoColor:    cfg.NoColor,
		Console:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Debug().Str("build", buildinfo.UserAgent).Str("config", appCfg.File).Msg("Configuration loaded")

	settings, err := reclaim.NewSettings(cfg)
	if err != nil {
		return err
	}

	host, err := newHost(cfg)
	if err != nil {
		return err
	}

	printer := report.New(cmd.OutOrStdout(), cfg.NoColor)
	svc := reclaim.NewService(host, settings, reclaim.Hooks{
		Found:   printer.Stage,
		Confirm: confirmStage(newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cfg.AssumeYes),
	})

	rep, err := svc.Run(cmd.Context())
	printer.Results(rep)

	if cfg.MetricsFile != "" {
		manager := metrics.NewManager()
		manager.Record(rep)
		if werr := manager.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Warn().Err(werr).Str("path", cfg.MetricsFile).Msg("Failed to write metrics file")
		}
	}

	return err
}

func newHost(cfg *domain.Config) (*proc.Host, error) {
	lsof := []string{"lsof"}
	if strings.TrimSpace(cfg.LsofCommand) != "" {
		argv, err := command.Parse(cfg.LsofCommand)
		if err != nil {
			return nil, err
		}
		lsof = argv
	}

	var truncate []string
	if strings.TrimSpace(cfg.TruncateCommand) != "" {
		argv, err := command.Parse(cfg.TruncateCommand)
		if err != nil {
			return nil, err
		}
		truncate = argv
	}

	return proc.NewHost(proc.Config{
		ProcRoot:        cfg.ProcRoot,
		LsofCommand:     lsof,
		TruncateCommand: truncate,
		Timeout:         cfg.CommandTimeout,
	})
}

func newPrompter(in io.Reader, out io.Writer) *prompt.Prompter {
	if f, ok := in.(*os.File); ok {
		return prompt.New(f, out)
	}
	return prompt.NewFromReader(in, out)
}

func confirmStage(p *prompt.Prompter, assumeYes bool) func(reclaim.Stage, *reclaim.Report) bool {
	return func(stage reclaim.Stage, r *reclaim.Report) bool {
		if assumeYes {
			return true
		}
		ok, err := p.Confirm(report.Question(stage, r))
		if err != nil {
			log.Warn().Err(err).Str("stage", string(stage)).Msg("Skipping stage without confirmation")
			return false
		}
		return ok
	}
}

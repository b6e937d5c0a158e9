// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package report renders what a reclaim run found and did for humans.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/autobrr/reclaim/internal/services/reclaim"
)

type styles struct {
	heading lipgloss.Style
	key     lipgloss.Style
	dim     lipgloss.Style
	size    lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
}

// Printer writes reports to w.
type Printer struct {
	w      io.Writer
	styles styles
}

// New creates a Printer. With noColor set, output is plain text regardless
// of what the terminal supports.
func New(w io.Writer, noColor bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Printer{
		w: w,
		styles: styles{
			heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("57")),
			key:     r.NewStyle().Bold(true),
			dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
			size:    r.NewStyle().Foreground(lipgloss.Color("39")),
			ok:      r.NewStyle().Foreground(lipgloss.Color("42")),
			warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
			fail:    r.NewStyle().Foreground(lipgloss.Color("196")),
		},
	}
}

// Bytes formats n in binary units, as in "100 MiB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// Stage prints what a stage's scan found. It is meant to be called before
// the stage is confirmed.
func (p *Printer) Stage(stage reclaim.Stage, r *reclaim.Report) {
	switch stage {
	case reclaim.StageDescriptors:
		p.handles(r)
	case reclaim.StageMappings:
		p.mappings(r)
	}
}

func (p *Printer) handles(r *reclaim.Report) {
	if r.Groups.Len() == 0 {
		p.println(p.styles.dim.Render(fmt.Sprintf("No open handles on deleted files under %s", r.Root)))
		return
	}

	p.println(p.styles.heading.Render(HandlesSummary(r)))
	for _, g := range r.Groups.All() {
		p.println(fmt.Sprintf("  %s %s  %s",
			p.styles.key.Render("inode "+g.Inode),
			p.styles.size.Render(Bytes(g.Size)),
			p.styles.dim.Render(plural(len(g.Members), "handle", "handles"))))
		for _, path := range g.Paths() {
			p.println("    " + path)
		}
		for _, m := range g.Members {
			line := fmt.Sprintf("pid %s fd %s", m.PID, m.FD)
			if m.Command != "" {
				line += " (" + m.Command + ")"
			}
			p.println("      " + p.styles.dim.Render(line))
		}
	}
}

func (p *Printer) mappings(r *reclaim.Report) {
	if len(r.Mappings) == 0 {
		p.println(p.styles.dim.Render(fmt.Sprintf("No mappings of deleted files under %s", r.Root)))
		return
	}

	p.println(p.styles.heading.Render(MappingsSummary(r)))
	for _, m := range r.Mappings {
		p.println(fmt.Sprintf("  %s %s  %s  %s",
			p.styles.key.Render("pid "+m.PID),
			p.styles.dim.Render(m.Range()),
			p.styles.size.Render(Bytes(m.Extent())),
			m.Path))
	}
}

// HandlesSummary is the one-line summary of the descriptor scan.
func HandlesSummary(r *reclaim.Report) string {
	return fmt.Sprintf("%s across %s → %s",
		plural(r.Groups.Handles(), "file", "files"),
		plural(r.Groups.Len(), "inode", "inodes"),
		Bytes(r.Groups.Size()))
}

// MappingsSummary is the one-line summary of the mapping scan.
func MappingsSummary(r *reclaim.Report) string {
	return fmt.Sprintf("%s of deleted files → %s",
		plural(len(r.Mappings), "mapping", "mappings"),
		Bytes(r.MappingBytes()))
}

// Question is the confirmation prompt for stage.
func Question(stage reclaim.Stage, r *reclaim.Report) string {
	if stage == reclaim.StageMappings {
		return fmt.Sprintf("Truncate %s (%s)?", plural(len(r.Mappings), "mapping", "mappings"), Bytes(r.MappingBytes()))
	}
	return fmt.Sprintf("Truncate %s (%s)?", plural(r.Groups.Len(), "inode", "inodes"), Bytes(r.Groups.Size()))
}

// Results prints one line per target, then the run totals.
func (p *Printer) Results(r *reclaim.Report) {
	if len(r.Results) == 0 && len(r.DiscoveryErrors) == 0 {
		return
	}

	p.println("")
	for _, res := range r.Results {
		p.println("  " + p.result(res))
	}

	for _, err := range r.DiscoveryErrors {
		p.println(p.styles.warn.Render("warning: " + err.Error()))
	}
	if n := len(r.Skipped); n > 0 {
		p.println(p.styles.dim.Render(fmt.Sprintf("%s could not be read", plural(n, "process", "processes"))))
	}

	p.println(p.styles.heading.Render(Totals(r)))
}

func (p *Printer) result(res reclaim.ReclaimResult) string {
	var status string
	switch res.Outcome {
	case reclaim.OutcomeReclaimed:
		status = p.styles.ok.Render("reclaimed")
	case reclaim.OutcomeDryRun:
		status = p.styles.dim.Render("would reclaim")
	case reclaim.OutcomeSkipped:
		status = p.styles.warn.Render("skipped")
	default:
		status = p.styles.fail.Render("failed")
	}

	target := string(res.Kind) + " " + res.ID
	if res.Kind == reclaim.TargetDescriptor {
		target = "inode " + res.ID
	}

	line := fmt.Sprintf("%s %s %s", status, target, p.styles.size.Render(Bytes(res.Size)))
	if res.LivePath != "" {
		line += " via " + res.LivePath
	}
	if res.Err != nil && res.Outcome == reclaim.OutcomeFailed {
		line += ": " + firstLine(res.Err.Error())
	}
	return line
}

// Totals is the final line of a run.
func Totals(r *reclaim.Report) string {
	if r.DryRun {
		return fmt.Sprintf("Dry run: would reclaim %s from %s and %s",
			Bytes(r.Bytes(reclaim.TargetDescriptor, reclaim.OutcomeDryRun)+r.Bytes(reclaim.TargetMapping, reclaim.OutcomeDryRun)),
			plural(r.Count(reclaim.TargetDescriptor, reclaim.OutcomeDryRun), "inode", "inodes"),
			plural(r.Count(reclaim.TargetMapping, reclaim.OutcomeDryRun), "mapping", "mappings"))
	}

	failed := r.Count(reclaim.TargetDescriptor, reclaim.OutcomeFailed) + r.Count(reclaim.TargetMapping, reclaim.OutcomeFailed)
	return fmt.Sprintf("Reclaimed %s from %s and %s, %d failed",
		Bytes(r.Bytes(reclaim.TargetDescriptor, reclaim.OutcomeReclaimed)+r.Bytes(reclaim.TargetMapping, reclaim.OutcomeReclaimed)),
		plural(r.Count(reclaim.TargetDescriptor, reclaim.OutcomeReclaimed), "inode", "inodes"),
		plural(r.Count(reclaim.TargetMapping, reclaim.OutcomeReclaimed), "mapping", "mappings"),
		failed)
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

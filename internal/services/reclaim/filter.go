// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/autobrr/reclaim/internal/proc"
)

// Filter is an optional boolean expression every target must satisfy, for
// example `size > 50 * 1024 * 1024 && command != "postgres"`. A nil Filter
// accepts everything.
type Filter struct {
	source  string
	program *vm.Program
}

func filterEnv(pid, fd, inode, path, command string, size int64) map[string]any {
	return map[string]any{
		"pid":     pid,
		"fd":      fd,
		"inode":   inode,
		"path":    path,
		"command": command,
		"size":    size,
	}
}

// CompileFilter compiles code. Blank code yields a nil Filter.
func CompileFilter(code string) (*Filter, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}

	program, err := expr.Compile(code, expr.Env(filterEnv("", "", "", "", "", 0)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", code, err)
	}
	return &Filter{source: code, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

func (f *Filter) eval(env map[string]any) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

// MatchHandle evaluates the filter against a descriptor record.
func (f *Filter) MatchHandle(h OpenHandle) (bool, error) {
	return f.eval(filterEnv(h.PID, h.FD, h.Inode, h.Path, h.Command, h.Size))
}

// MatchRegion evaluates the filter against a mapping. size is the extent of
// the mapping and fd is empty.
func (f *Filter) MatchRegion(m MappedRegion) (bool, error) {
	return f.eval(filterEnv(m.PID, "", fmt.Sprint(m.Inode), m.Path, "", m.Extent()))
}

// isUnderRoot reports whether path is root or lies beneath it, on a path
// boundary: /tmp/foo is under /tmp, /tmpfoo is not.
func isUnderRoot(path, root string) bool {
	path = filepath.Clean(strings.TrimSuffix(path, proc.DeletedMarker))
	root = filepath.Clean(root)
	if root == string(filepath.Separator) {
		return filepath.IsAbs(path)
	}
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root) && path[len(root)] == filepath.Separator
}

// matchesPath applies the shared path policy: beneath Root and a regex
// search (not a full match) of Pattern against the reported path.
func (s Settings) matchesPath(path string) bool {
	if !isUnderRoot(path, s.Root) {
		return false
	}
	return s.Pattern == nil || s.Pattern.MatchString(path)
}

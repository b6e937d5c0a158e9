// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"context"
	"io/fs"
	"regexp"
	"strconv"

	"github.com/prometheus/procfs"

	"github.com/autobrr/reclaim/internal/proc"
)

const sampleLsof = `COMMAND    PID USER   FD   TYPE DEVICE  SIZE/OFF NLINK    NODE NAME
chrome    4242 alice  45u   REG   0,37 104857600     0     555 /tmp/.org.chromium.Chromium.abc123 (deleted)
chrome    4243 alice  12r   REG   0,37         0     0     555 /tmp/.org.chromium.Chromium.abc123 (deleted)
chrome    4244 alice   7w   REG   0,37         0     0     555 /tmp/.org.chromium.Chromium.abc123 (deleted)
chrome    4242 alice  txt   REG   0,37      4096     0     777 /tmp/.org.chromium.Chromium.lib (deleted)
chrome    4242 alice  mem   REG   0,37      4096     0     778 /tmp/.org.chromium.Chromium.shm (deleted)
chrome    4245 alice  DEL   REG   0,37               0     779 /tmp/.org.chromium.Chromium.del (deleted)
postgres   900 pg       3u  REG   0,37      2048     0     901 /tmp/pgsql_tmp.1 (deleted)
chrome    4246 alice   9u   REG   0,37     65536     0     612 /tmp/.org.chromium.Chromium.xyz (deleted)
`

// fakeHost is an in-memory Host. Every call is recorded in calls.
type fakeHost struct {
	lsofOut string
	lsofErr error

	pids    []string
	pidsErr error

	descriptors map[string][]proc.Descriptor
	descErr     map[string]error
	maps        map[string][]*procfs.ProcMap
	mapsErr     map[string]error

	links       map[string]proc.LinkInfo
	inspectErr  map[string]error
	truncateErr map[string]error

	// onTruncate runs at the start of every Truncate call.
	onTruncate func(path string)

	calls     []string
	truncated []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		descriptors: make(map[string][]proc.Descriptor),
		descErr:     make(map[string]error),
		maps:        make(map[string][]*procfs.ProcMap),
		mapsErr:     make(map[string]error),
		links:       make(map[string]proc.LinkInfo),
		inspectErr:  make(map[string]error),
		truncateErr: make(map[string]error),
	}
}

// live registers livePath as a handle on a deleted file with inode.
func (f *fakeHost) live(livePath, inode string) {
	n, _ := strconv.ParseUint(inode, 10, 64)
	f.links[livePath] = proc.LinkInfo{Target: "/tmp/held" + proc.DeletedMarker, Inode: n}
}

// liveAll registers every handle parsed from lsofOut.
func (f *fakeHost) liveAll() {
	for _, h := range ParseLsofOutput(f.lsofOut, ParseLsofLine) {
		f.live(DescriptorPath("/proc", h.PID, h.FD), h.Inode)
	}
}

func (f *fakeHost) ListDeleted(_ context.Context, root string) (string, error) {
	f.calls = append(f.calls, "ListDeleted "+root)
	return f.lsofOut, f.lsofErr
}

func (f *fakeHost) PIDs(context.Context) ([]string, error) {
	f.calls = append(f.calls, "PIDs")
	return f.pids, f.pidsErr
}

func (f *fakeHost) Descriptors(_ context.Context, pid string) ([]proc.Descriptor, error) {
	f.calls = append(f.calls, "Descriptors "+pid)
	if err := f.descErr[pid]; err != nil {
		return nil, err
	}
	return f.descriptors[pid], nil
}

func (f *fakeHost) Maps(_ context.Context, pid string) ([]*procfs.ProcMap, error) {
	f.calls = append(f.calls, "Maps "+pid)
	if err := f.mapsErr[pid]; err != nil {
		return nil, err
	}
	return f.maps[pid], nil
}

func (f *fakeHost) Inspect(path string) (proc.LinkInfo, error) {
	f.calls = append(f.calls, "Inspect "+path)
	if err := f.inspectErr[path]; err != nil {
		return proc.LinkInfo{}, err
	}
	info, ok := f.links[path]
	if !ok {
		return proc.LinkInfo{}, fs.ErrNotExist
	}
	return info, nil
}

// Truncate fails with the context error when ctx is done by the time the
// truncate would complete, like a command killed by exec.CommandContext.
func (f *fakeHost) Truncate(ctx context.Context, path string) error {
	f.calls = append(f.calls, "Truncate "+path)
	if f.onTruncate != nil {
		f.onTruncate(path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.truncateErr[path]; err != nil {
		return err
	}
	f.truncated = append(f.truncated, path)
	return nil
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Pattern = regexp.MustCompile(DefaultPattern)
	return s
}

func mapping(start, end uintptr, inode uint64, path string) *procfs.ProcMap {
	return &procfs.ProcMap{StartAddr: start, EndAddr: end, Inode: inode, Pathname: path}
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/autobrr/reclaim/internal/proc"
)

// lsof +L1 columns: COMMAND PID USER FD TYPE DEVICE SIZE/OFF NLINK NODE NAME.
//
// Only numeric descriptors qualify, optionally followed by an access mode
// (r, w, u) and a lock character. txt, mem, DEL, cwd and friends have no
// /proc/<pid>/fd entry to truncate through; mapped files are handled by the
// mapping scan instead.
var lsofLineRe = regexp.MustCompile(
	`^(\S+)\s+(\d+)\s+\S+\s+(\d+)[rwu]?[A-Za-z]?\s+\S+\s+\S+\s+(\d+)\s+\d+\s+(\d+)\s+(.+ \(deleted\))$`,
)

// ParseLsofLine parses one lsof +L1 row with a regular expression.
func ParseLsofLine(line string) (OpenHandle, bool) {
	m := lsofLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return OpenHandle{}, false
	}

	size, ok := parseSize(m[4])
	if !ok {
		return OpenHandle{}, false
	}

	return OpenHandle{
		Command: m[1],
		PID:     m[2],
		FD:      m[3],
		Size:    size,
		Inode:   m[5],
		Path:    m[6],
	}, true
}

// ParseLsofFields parses one lsof +L1 row by splitting on whitespace. Runs
// of spaces inside the path collapse to one; otherwise it agrees with
// ParseLsofLine.
func ParseLsofFields(line string) (OpenHandle, bool) {
	fields := strings.Fields(line)
	// Nine columns plus at least one path word and the marker.
	if len(fields) < 11 || fields[len(fields)-1] != "(deleted)" {
		return OpenHandle{}, false
	}

	pid, fdField, sizeField, nlink, inode := fields[1], fields[3], fields[6], fields[7], fields[8]
	if !isDigits(pid) || !isDigits(nlink) || !isDigits(inode) {
		return OpenHandle{}, false
	}

	fd, ok := descriptorNumber(fdField)
	if !ok {
		return OpenHandle{}, false
	}

	if !isDigits(sizeField) {
		return OpenHandle{}, false
	}

	size, ok := parseSize(sizeField)
	if !ok {
		return OpenHandle{}, false
	}

	return OpenHandle{
		Command: fields[0],
		PID:     pid,
		FD:      fd,
		Size:    size,
		Inode:   inode,
		Path:    strings.Join(fields[9:], " "),
	}, true
}

// ParseLsofOutput parses every qualifying row of lsof output. Unparseable
// lines, including the header, are dropped.
func ParseLsofOutput(output string, parse LineParser) []OpenHandle {
	var handles []OpenHandle
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, proc.DeletedMarker) {
			continue
		}
		if h, ok := parse(line); ok {
			handles = append(handles, h)
		}
	}
	return handles
}

// descriptorNumber accepts the same FD column shapes as lsofLineRe:
// digits, then an optional r/w/u mode, then an optional lock letter.
func descriptorNumber(field string) (string, bool) {
	i := 0
	for i < len(field) && field[i] >= '0' && field[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", false
	}

	rest := field[i:]
	switch len(rest) {
	case 0:
	case 1:
		if !isLetter(rest[0]) {
			return "", false
		}
	case 2:
		if !strings.ContainsRune("rwu", rune(rest[0])) || !isLetter(rest[1]) {
			return "", false
		}
	default:
		return "", false
	}
	return field[:i], true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseSize(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

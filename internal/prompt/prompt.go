// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned by Confirm when there is no terminal to ask.
var ErrNotInteractive = errors.New("stdin is not a terminal, pass --yes to reclaim without a prompt")

// Prompter asks yes/no questions. The default answer is always no.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// New creates a Prompter reading answers from in. Questions are only asked
// when in is a terminal.
func New(in *os.File, out io.Writer) *Prompter {
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())),
	}
}

// NewFromReader creates an interactive Prompter over an arbitrary reader.
func NewFromReader(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: true}
}

// Confirm prints question followed by " (y/N): " and reads one line. Only
// "y" and "yes" (any case) confirm; end of input declines.
func (p *Prompter) Confirm(question string) (bool, error) {
	if !p.interactive {
		return false, ErrNotInteractive
	}

	if _, err := fmt.Fprintf(p.out, "%s (y/N): ", question); err != nil {
		return false, err
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

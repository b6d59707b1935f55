// Package prompt asks the operator for an install path and for run
// confirmation, with a terminal UI when attached to a TTY and plain
// line input otherwise.
package prompt

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

var ErrCancelled = errors.New("prompt cancelled")

// Prompter supplies install paths and yes/no answers.
type Prompter interface {
	RequestPath(ctx context.Context, reason string) (string, error)
	Confirm(ctx context.Context, question string) (bool, error)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// New picks the terminal UI when both ends are terminals.
func New(in *os.File, out *os.File) Prompter {
	if IsTerminal(in) && IsTerminal(out) {
		return &TeaPrompter{In: in, Out: out}
	}
	var r io.Reader = strings.NewReader("")
	if in != nil {
		r = in
	}
	var w io.Writer = io.Discard
	if out != nil {
		w = out
	}
	return NewLinePrompter(r, w)
}

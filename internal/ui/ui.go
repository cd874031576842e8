// Package ui provides the small amount of terminal-awareness the CLI needs:
// dimming its own diagnostic banners when stderr is an interactive terminal,
// and leaving them plain when it isn't (pipes, redirects, CI logs).
package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// DiagWriter wraps an io.Writer, dimming every Write when colors is true and
// passing bytes through untouched otherwise.
type DiagWriter struct {
	w      io.Writer
	colors bool
}

// NewDiagWriter returns a DiagWriter around w. Pass colors=true only when w
// is known to be an interactive terminal.
func NewDiagWriter(w io.Writer, colors bool) *DiagWriter {
	return &DiagWriter{w: w, colors: colors}
}

func (d *DiagWriter) Write(p []byte) (int, error) {
	if !d.colors || len(p) == 0 {
		return d.w.Write(p)
	}
	if _, err := io.WriteString(d.w, ansiDim); err != nil {
		return 0, err
	}
	n, err := d.w.Write(p)
	if err != nil {
		return n, err
	}
	if _, werr := io.WriteString(d.w, ansiReset); werr != nil {
		return n, werr
	}
	return n, nil
}

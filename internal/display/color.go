// Package display renders terminal output for the CLI: ANSI styling and
// aligned tables.
//
// Styling honors NO_COLOR (https://no-color.org/) and FORCE_COLOR, and is
// off when the output is not a terminal.
package display

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	fgGray = "\033[90m"
)

var enabled = shouldEnable(os.Stdout)

func shouldEnable(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		return true
	}
	return isTerminal(w)
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Configure decides styling for output written to w. plain forces it off,
// as --json does.
func Configure(w io.Writer, plain bool) {
	enabled = !plain && shouldEnable(w)
}

// SetEnabled overrides the detected state.
func SetEnabled(b bool) {
	enabled = b
}

// Enabled reports whether styling is on.
func Enabled() bool {
	return enabled
}

func wrap(code, text string) string {
	if !enabled {
		return text
	}
	return code + text + reset
}

func Bold(text string) string   { return wrap(bold, text) }
func Dim(text string) string    { return wrap(dim, text) }
func Red(text string) string    { return wrap(red, text) }
func Green(text string) string  { return wrap(green, text) }
func Yellow(text string) string { return wrap(yellow, text) }
func Cyan(text string) string   { return wrap(cyan, text) }
func Gray(text string) string   { return wrap(fgGray, text) }

// Accent marks the next prayer (bold cyan).
func Accent(text string) string {
	if !enabled {
		return text
	}
	return bold + cyan + text + reset
}

// Boldf formats and bolds a string.
func Boldf(format string, a ...any) string {
	return Bold(fmt.Sprintf(format, a...))
}

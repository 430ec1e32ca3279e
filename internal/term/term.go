// Package term holds the ANSI color state used by terminal reports.
//
// [Configure] runs once from logging setup. When colors are off every
// color variable is empty, so concatenating them is a no-op and report
// code never has to check.
package term

import (
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/backmassage/mediasweep/internal/config"
)

// ANSI color codes. Empty when colors are disabled.
var (
	Bold   = ""
	Red    = ""
	Orange = ""
	NC     = "" // Reset sequence.
)

// Configure resolves mode against stdout and the environment and sets the
// color variables.
func Configure(mode config.ColorMode) {
	set(resolve(mode, IsTerminal(os.Stdout), os.Getenv))
}

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return NC != "" }

func set(on bool) {
	if on {
		Bold = "\033[1m"
		Red = "\033[1;91m"
		Orange = "\033[1;38;5;208m"
		NC = "\033[0m"
		return
	}
	Bold, Red, Orange, NC = "", "", "", ""
}

// resolve applies the mode; auto honors NO_COLOR (https://no-color.org)
// and TERM=dumb.
func resolve(mode config.ColorMode, tty bool, getenv func(string) string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return tty &&
			getenv("NO_COLOR") == "" &&
			strings.ToLower(getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

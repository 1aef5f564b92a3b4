package ui

import (
	"fmt"
	"io"
	"os"
)

var (
	reset = "\033[0m"
	bold  = "\033[1m"

	fgGray   = "\033[90m"
	fgGreen  = "\033[32m"
	fgYellow = "\033[33m"
	fgBlue   = "\033[34m"
	fgRed    = "\033[31m"

	symCheck = "✔"
	symCross = "✖"
	symWarn  = "!"
)

var (
	forceColor   bool
	disableColor bool

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func SetColorForcing(force, disable bool) {
	forceColor = force
	disableColor = disable
}

// SetOutput redirects OK/Fail/Warn/Panel, mainly for tests.
func SetOutput(out, errOut io.Writer) {
	stdout, stderr = out, errOut
}

// Stderr is the writer Fail and Warn use.
func Stderr() io.Writer { return stderr }

func isTTY() bool {
	f, ok := stdout.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// C wraps s in color when the output is a terminal.
func C(color, s string) string {
	if disableColor || color == "" {
		return s
	}
	if forceColor || isTTY() {
		return color + s + reset
	}
	return s
}

func OK(msg string)   { fmt.Fprintln(stdout, C(fgGreen, symCheck+" "+msg)) }
func Fail(msg string) { fmt.Fprintln(stderr, C(fgRed, symCross+" "+msg)) }
func Warn(msg string) { fmt.Fprintln(stderr, C(fgYellow, symWarn+" "+msg)) }

// Println writes a plain line to the current output.
func Println(a ...any) { fmt.Fprintln(stdout, a...) }

// Printf writes formatted text to the current output.
func Printf(format string, a ...any) { fmt.Fprintf(stdout, format, a...) }

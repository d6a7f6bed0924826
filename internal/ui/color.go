package ui

import (
	"io"

	fcolor "github.com/fatih/color"
)

const (
	errorSymbol   = "✗ "
	successSymbol = "✔ "
)

var (
	green  = fcolor.New(fcolor.FgGreen)
	red    = fcolor.New(fcolor.FgRed)
	yellow = fcolor.New(fcolor.FgYellow)
)

// Status colors a job status word: finished green, failed red, anything
// still open yellow. Plain text when color output is disabled.
func Status(status string) string {
	switch status {
	case "DONE", "COMPLETED", "done":
		return green.Sprint(status)
	case "ERROR", "PCM_FAILED":
		return red.Sprint(status)
	case "UNDONE", "RUNNING":
		return yellow.Sprint(status)
	default:
		return status
	}
}

// PrintError prints the message in red with a ✗ symbol.
func PrintError(w io.Writer, format string, a ...any) {
	_, _ = red.Fprintf(w, errorSymbol+format+"\n", a...)
}

// PrintWarning prints the message in yellow with a ✗ symbol.
func PrintWarning(w io.Writer, format string, a ...any) {
	_, _ = yellow.Fprintf(w, errorSymbol+format+"\n", a...)
}

// PrintSuccess prints the message in green with a ✔ symbol.
func PrintSuccess(w io.Writer, format string, a ...any) {
	_, _ = green.Fprintf(w, successSymbol+format+"\n", a...)
}

// Rule returns a dashed line as wide as the terminal on w, at most limit.
func Rule(w io.Writer, limit int) string {
	return dashes(min(Width(w), limit))
}

// Package utils holds the terminal presentation helpers shared by the CLI
// commands. Everything here writes to stderr: stdout belongs to the progress
// event stream and must stay machine-parseable.
package utils

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Theme - semantic colors for the CLI output
var Theme = struct {
	Success text.Colors
	Info    text.Colors
	Warning text.Colors
	Error   text.Colors
	Heading text.Colors
	Subtle  text.Colors
}{
	Success: text.Colors{text.FgGreen},
	Info:    text.Colors{text.FgBlue},
	Warning: text.Colors{text.FgYellow},
	Error:   text.Colors{text.FgRed},
	Heading: text.Colors{text.FgHiCyan, text.Bold},
	Subtle:  text.Colors{text.FgHiBlack},
}

// PrintHeading prints a formatted heading
func PrintHeading(title string) {
	fmt.Fprintln(os.Stderr, Theme.Heading.Sprint(title))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintln(os.Stderr, Theme.Success.Sprint("✓ ")+message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Fprintln(os.Stderr, Theme.Info.Sprint("ℹ ")+message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintln(os.Stderr, Theme.Warning.Sprint("⚠ ")+message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintln(os.Stderr, Theme.Error.Sprint("✗ ")+message)
}

// PrintKeyValue prints a key-value pair
func PrintKeyValue(key, value string) {
	fmt.Fprintln(os.Stderr, Theme.Subtle.Sprint(key+": ")+value)
}

// NewTable returns a table writer with the house style, targeting stderr
func NewTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stderr)
	t.AppendHeader(header)
	t.SetStyle(table.StyleRounded)
	return t
}

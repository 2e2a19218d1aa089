package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	noColorFlag bool
	verboseFlag bool

	// Out receives status messages. Standard output is reserved for results.
	Out io.Writer = os.Stderr
)

// InitUI initializes the UI with color and verbose settings.
func InitUI(noColor, verbose bool) {
	noColorFlag = noColor
	verboseFlag = verbose

	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}

func printf(attr color.Attribute, symbol, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if noColorFlag {
		fmt.Fprintf(Out, "%s %s\n", symbol, msg)
		return
	}
	color.New(attr).Fprintf(Out, "%s %s\n", symbol, msg)
}

// Success displays a success message.
func Success(format string, args ...interface{}) {
	printf(color.FgGreen, "✓", format, args...)
}

// Error displays an error message.
func Error(format string, args ...interface{}) {
	printf(color.FgRed, "✗", format, args...)
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	printf(color.FgYellow, "⚠", format, args...)
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	printf(color.FgCyan, "ℹ", format, args...)
}

// Step displays a step message.
func Step(format string, args ...interface{}) {
	printf(color.FgBlue, "→", format, args...)
}

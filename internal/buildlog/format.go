package buildlog

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

var (
	valueColor     = color.New(color.FgYellow)
	commandColor   = color.New(color.FgYellow, color.Bold)
	urlColor       = color.New(color.FgCyan, color.Underline)
	headerColor    = color.New(color.FgMagenta, color.Bold)
	warningColor   = color.New(color.FgYellow, color.Bold)
	importantColor = color.New(color.FgCyan, color.Bold)
	errorColor     = color.New(color.FgRed, color.Bold)
)

// Enables or disables ANSI colors in all build log output.
//
// Colors are disabled by default when stdout is not a terminal or NO_COLOR is
// set.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// Highlights a version, file name or other notable value.
func Value(s string) string {
	return valueColor.Sprint(s)
}

// Highlights a command, wrapped in backticks.
func Command(s string) string {
	return commandColor.Sprint("`" + s + "`")
}

// Highlights a URL.
func URL(s string) string {
	return urlColor.Sprint(s)
}

// Formats trailing details, e.g. "Clearing cache (Ruby version changed)".
func Details(s string) string {
	return "(" + s + ")"
}

// Formats a duration for the build log.
//
// Durations under a tenth of a second are shown as "< 0.1s", durations under a
// minute with one decimal, and longer ones in minutes and seconds.
func Duration(d time.Duration) string {
	switch {
	case d < 100*time.Millisecond:
		return "< 0.1s"
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d/time.Minute), int(d%time.Minute/time.Second))
	}
	return fmt.Sprintf("%dh %dm %ds", int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second))
}

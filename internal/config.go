package internal

import (
	"log/slog"
	"strconv"
	"sync/atomic"
)

var (
	quietMode   atomic.Bool // Suppresses the build log except warnings and errors.
	debugMode   atomic.Bool // Enables debug diagnostics on stderr.
	verboseMode atomic.Bool // Enables cache invalidation diffs in the build log.
	noColorMode atomic.Bool // Disables ANSI colors in the build log.
)

// Parses the linker flags into usable runtime variables.
//
// The rawQuiet, rawDebug, rawVerbose and rawNoColor variables should be set
// via ldflags during the build process. If not set, they default to "false".
func init() {
	parseFlag(rawQuiet, &quietMode)
	parseFlag(rawDebug, &debugMode)
	parseFlag(rawVerbose, &verboseMode)
	parseFlag(rawNoColor, &noColorMode)
}

// Stores the boolean value of raw into mode, ignoring unparsable values.
func parseFlag(raw string, mode *atomic.Bool) {
	if v, err := strconv.ParseBool(raw); err == nil {
		mode.Store(v)
	}
}

// Enables or disables quiet mode.
func SetQuiet(enabled bool) {
	quietMode.Store(enabled)
}

// Returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode.Load()
}

// Enables or disables debug mode.
func SetDebug(enabled bool) {
	debugMode.Store(enabled)
}

// Returns true if debug mode is enabled.
func IsDebug() bool {
	return debugMode.Load()
}

// Enables or disables verbose output.
func SetVerbose(enabled bool) {
	verboseMode.Store(enabled)
}

// Returns true if verbose output is enabled.
func IsVerbose() bool {
	return verboseMode.Load()
}

// Enables or disables colored output.
func SetNoColor(enabled bool) {
	noColorMode.Store(enabled)
}

// Returns true if colored output is disabled.
func IsNoColor() bool {
	return noColorMode.Load()
}

// Returns the diagnostic log level implied by the current modes.
//
// Debug wins over quiet, and quiet wins over the default info level.
func LogLevel() slog.Level {
	if IsDebug() {
		return slog.LevelDebug
	}
	if IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

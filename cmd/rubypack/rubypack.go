package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/cruciblehq/rubypack/internal"
	"github.com/cruciblehq/rubypack/internal/cli"
	"github.com/cruciblehq/rubypack/internal/failure"
)

// The entry point for rubypack.
//
// Initializes logging, displays startup information, and executes the root
// command. If any error occurs during execution, it exits with a non-zero code.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("rubypack is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		// Classified failures are already on the build log.
		var ferr *failure.Error
		if errors.As(err, &ferr) {
			slog.Debug("build failed", "kind", ferr.Kind, "error", ferr.Err)
		} else {
			slog.Error(err.Error())
		}
		os.Exit(1)
	}
}

// Creates a logger seeded from build-time linker flags.
//
// The level is adjusted after flag parsing via cli.Execute.
func logger() *slog.Logger {
	cli.LogLevel.Set(internal.LogLevel())
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cli.LogLevel})
	return slog.New(handler.WithGroup(internal.Name))
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}

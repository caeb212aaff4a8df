package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/cruciblehq/rubypack/internal"
	"github.com/cruciblehq/rubypack/internal/buildlog"
	"github.com/cruciblehq/rubypack/internal/paths"
	"github.com/cruciblehq/rubypack/internal/plan"
	"github.com/cruciblehq/rubypack/internal/ruby"
)

// Level of the global diagnostic logger, adjusted after flag parsing.
var LogLevel = new(slog.LevelVar)

// Represents the root command for rubypack.
var RootCmd struct {
	Quiet     bool       `short:"q" help:"Only show warnings and errors."`
	Verbose   bool       `short:"v" help:"Show changed inputs when a cache is invalidated."`
	Debug     bool       `short:"d" help:"Enable debug diagnostics."`
	NoColor   bool       `help:"Disable colored output."`
	CacheRoot string     `help:"Directory holding the build caches." default:"${cache_root}" env:"RUBYPACK_CACHE_ROOT" type:"path" placeholder:"DIR"`
	Build     BuildCmd   `cmd:"" help:"Build an application."`
	Cache     CacheCmd   `cmd:"" help:"Inspect and clear build caches."`
	Version   VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
//
// Signals keep their default handling, and running commands stay in the
// process group of rubypack so the caller can tear them down together.
func Execute() error {
	parser, err := newParser(context.Background(), os.Stdout)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	configure()

	return kongCtx.Run()
}

// Creates the argument parser, binding ctx and out for the commands.
func newParser(ctx context.Context, out io.Writer) (*kong.Kong, error) {
	return kong.New(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Builds Ruby applications, reusing cached work when its inputs are unchanged."),
		kong.UsageOnError(),
		kong.Vars{
			"version":                 internal.VersionString(),
			"cache_root":              paths.CacheRoot(),
			"plan_file":               plan.DefaultFile,
			"default_stack":           ruby.DefaultStack,
			"default_ruby_version":    ruby.DefaultRubyVersion,
			"default_bundler_version": ruby.DefaultBundlerVersion,
			"default_bundle_without":  ruby.DefaultBundleWithout,
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(out, (*io.Writer)(nil)),
	)
}

// Applies the parsed flags to the global modes, logger and colors.
func configure() {
	if RootCmd.Debug {
		internal.SetDebug(true)
	}
	if RootCmd.Quiet {
		internal.SetQuiet(true)
	}
	if RootCmd.Verbose {
		internal.SetVerbose(true)
	}
	if RootCmd.NoColor || os.Getenv("NO_COLOR") != "" {
		internal.SetNoColor(true)
	}

	LogLevel.Set(internal.LogLevel())

	// Color detection is left to the terminal check unless disabled.
	if internal.IsNoColor() {
		buildlog.SetColor(false)
	}
}

// Returns the build log for out, honoring quiet mode.
func newBuildLog(out io.Writer) buildlog.Logger {
	var log buildlog.Logger = buildlog.NewTerminal(out)
	if internal.IsQuiet() {
		log = buildlog.Quiet(log)
	}
	return log
}

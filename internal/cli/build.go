package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cruciblehq/rubypack/internal"
	"github.com/cruciblehq/rubypack/internal/build"
	"github.com/cruciblehq/rubypack/internal/buildlog"
	"github.com/cruciblehq/rubypack/internal/failure"
	"github.com/cruciblehq/rubypack/internal/plan"
	"github.com/cruciblehq/rubypack/internal/ruby"
	"github.com/cruciblehq/rubypack/internal/runner"
	"github.com/joho/godotenv"
)

// Represents the 'rubypack build' command.
type BuildCmd struct {
	AppDir         string            `arg:"" optional:"" default:"." type:"existingdir" help:"Application directory."`
	Plan           string            `help:"Build plan declaring the steps. Defaults to ${plan_file} in the application directory, then the Ruby preset." type:"path" placeholder:"FILE"`
	EnvFile        []string          `help:"File of user configured environment variables, in .env format." type:"existingfile" placeholder:"FILE"`
	Env            map[string]string `short:"e" help:"User configured environment variable." placeholder:"KEY=VALUE"`
	Stack          string            `help:"Stack of the prebuilt Ruby." default:"${default_stack}" env:"STACK"`
	Platform       string            `help:"Target platform, e.g. linux/arm64. Defaults to the host architecture." placeholder:"PLATFORM"`
	RubyVersion    string            `help:"Ruby version used when Gemfile.lock records none." default:"${default_ruby_version}"`
	BundlerVersion string            `help:"Bundler version used when Gemfile.lock records none." default:"${default_bundler_version}"`
	BundleWithout  string            `help:"Gem groups left out of the install." default:"${default_bundle_without}"`
	Task           []string          `help:"Rake task to run. Detected when omitted." placeholder:"TASK"`
	NoTasks        bool              `help:"Do not run any rake task."`
	Timeout        time.Duration     `help:"Abort the build after this long. Zero means no limit."`
}

// Executes the build command.
//
// Failures are announced on the build log before they are returned.
func (c *BuildCmd) Run(ctx context.Context, out io.Writer) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	log := newBuildLog(out)
	log.Header(internal.Name)

	steps, env, err := c.prepare()
	if err != nil {
		return report(log, err)
	}

	pipeline := build.New(build.Options{
		AppDir:    c.AppDir,
		CacheRoot: RootCmd.CacheRoot,
		Runner:    runner.New(),
		Log:       log,
		Env:       env,
		Verbose:   internal.IsVerbose(),
	})

	result, err := pipeline.Run(ctx, steps)
	if err != nil {
		var ferr *failure.Error
		if errors.As(err, &ferr) {
			return ferr
		}
		return report(log, err)
	}

	slog.Debug("build succeeded", "ran", result.Ran(), "duration", result.Duration)
	return nil
}

// Reads the user environment and declares the steps.
func (c *BuildCmd) prepare() ([]build.Step, map[string]string, error) {
	env, err := c.environment()
	if err != nil {
		return nil, nil, err
	}

	path, err := c.planFile()
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		slog.Debug("using build plan", "path", path)
		steps, err := plan.Load(path, lookup(env))
		if errors.Is(err, plan.ErrInvalidPlan) {
			err = &failure.ParseError{Source: path, Reason: "invalid build plan", Err: err}
		}
		return steps, env, err
	}

	tasks := c.Task
	if c.NoTasks {
		tasks = []string{}
	}

	steps, err := ruby.Steps(ruby.Options{
		AppDir:         c.AppDir,
		CacheRoot:      RootCmd.CacheRoot,
		Stack:          c.Stack,
		Platform:       c.Platform,
		RubyVersion:    c.RubyVersion,
		BundlerVersion: c.BundlerVersion,
		BundleWithout:  c.BundleWithout,
		Env:            env,
		Tasks:          tasks,
	})
	return steps, env, err
}

// Returns the plan file to load, or an empty string for the Ruby preset.
func (c *BuildCmd) planFile() (string, error) {
	if c.Plan != "" {
		return c.Plan, nil
	}
	path := filepath.Join(c.AppDir, plan.DefaultFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// Returns the user configured environment.
//
// Env files are read in order, later files overriding earlier ones, and
// variables given with --env override them all.
func (c *BuildCmd) environment() (map[string]string, error) {
	env := make(map[string]string)
	for _, file := range c.EnvFile {
		vars, err := godotenv.Read(file)
		if err != nil {
			return nil, &failure.ParseError{Source: file, Reason: "invalid env file", Err: err}
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	for k, v := range c.Env {
		env[k] = v
	}
	return env, nil
}

// Returns a lookup resolving user variables before the process environment.
func lookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env[key]; ok {
			return v, true
		}
		return os.LookupEnv(key)
	}
}

// Classifies err, announces it on log and returns it.
func report(log buildlog.Logger, err error) error {
	ferr := failure.Classify(failure.OriginUnknown, err)
	ferr.Report(log)
	return ferr
}

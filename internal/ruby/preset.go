package ruby

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/containerd/platforms"
	"github.com/cruciblehq/rubypack/internal"
	"github.com/cruciblehq/rubypack/internal/build"
	"github.com/cruciblehq/rubypack/internal/buildlog"
	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/failure"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/paths"
	"github.com/cruciblehq/rubypack/internal/runner"
)

const (
	DefaultBaseURL        = "https://heroku-buildpack-ruby.s3.us-east-1.amazonaws.com" // Host of prebuilt Ruby archives.
	DefaultStack          = "heroku-22"                                               // Stack the archives are built for.
	DefaultRubyVersion    = "3.1.2"                                                   // Used when Gemfile.lock records no Ruby version.
	DefaultBundlerVersion = "2.3.26"                                                  // Used when Gemfile.lock records no bundler version.
	DefaultBundleWithout  = "development:test"                                        // Gem groups left out of the install.
)

const (
	GemfileName  = "Gemfile"
	LockfileName = "Gemfile.lock"
	RakefileName = "Rakefile"
)

// Names of the steps, which are also the cache store names.
const (
	RubyStep    = "ruby"
	BundlerStep = "bundler"
	GemsStep    = "gems"
	TasksStep   = "rake"
)

// Default rake task for applications using Rails.
const assetsTask = "assets:precompile"

// Inputs for declaring the Ruby build steps.
type Options struct {
	AppDir         string            // Application directory.
	CacheRoot      string            // Directory holding the cache stores. Defaults to [paths.CacheRoot].
	Stack          string            // Stack of the prebuilt Ruby archive. Defaults to [DefaultStack].
	Platform       string            // Target platform, e.g. "linux/arm64". Defaults to the host architecture.
	BaseURL        string            // Host of prebuilt Ruby archives. Defaults to [DefaultBaseURL].
	RubyVersion    string            // Fallback Ruby version. Defaults to [DefaultRubyVersion].
	BundlerVersion string            // Fallback bundler version. Defaults to [DefaultBundlerVersion].
	BundleWithout  string            // Gem groups left out. Defaults to [DefaultBundleWithout].
	Env            map[string]string // User configured variables, part of the gems fingerprint.
	Tasks          []string          // Rake tasks to run. Detected when nil.
}

// Fills in defaults for empty fields.
func (o Options) withDefaults() Options {
	if o.AppDir == "" {
		o.AppDir = "."
	}
	if o.CacheRoot == "" {
		o.CacheRoot = paths.CacheRoot()
	}
	if o.Stack == "" {
		o.Stack = DefaultStack
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.RubyVersion == "" {
		o.RubyVersion = DefaultRubyVersion
	}
	if o.BundlerVersion == "" {
		o.BundlerVersion = DefaultBundlerVersion
	}
	if o.BundleWithout == "" {
		o.BundleWithout = DefaultBundleWithout
	}
	return o
}

// Declares the build steps for the Ruby application in opts.AppDir.
//
// The returned steps install Ruby, install bundler, install the locked gems
// and, when there is anything to run, run rake tasks. Errors are returned as
// a [*failure.Error]: a missing Gemfile.lock is [failure.ManifestLockMissing],
// a malformed Ruby version [failure.RuntimeDetectionFailed] and a malformed
// bundler version [failure.DependencyListingFailed].
func Steps(opts Options) ([]build.Step, error) {
	opts = opts.withDefaults()

	appDir, err := filepath.Abs(opts.AppDir)
	if err != nil {
		return nil, failure.Classify(failure.OriginUnknown, err)
	}
	cacheRoot, err := filepath.Abs(opts.CacheRoot)
	if err != nil {
		return nil, failure.Classify(failure.OriginUnknown, err)
	}
	opts.AppDir, opts.CacheRoot = appDir, cacheRoot

	lock, err := readLockfile(appDir)
	if err != nil {
		return nil, failure.Classify(failure.OriginRuntimeInstall, err)
	}

	rubyVersion, err := lock.RubyVersion()
	if err != nil {
		return nil, failure.Classify(failure.OriginRuntimeInstall, err)
	}
	bundlerVersion, err := lock.BundlerVersion()
	if err != nil {
		return nil, failure.Classify(failure.OriginDependencyCacheValidate, err)
	}

	rubyStep, err := installRuby(opts, rubyVersion)
	if err != nil {
		return nil, failure.Classify(failure.OriginRuntimeInstall, err)
	}
	ruby := rubyStep.Identity.Value

	steps := []build.Step{
		rubyStep,
		installBundler(opts, ruby, bundlerVersion),
		installGems(opts),
	}

	if tasks := rakeTasks(opts, lock); len(tasks) > 0 {
		steps = append(steps, runTasks(tasks))
	}
	return steps, nil
}

// Reads and parses the application's Gemfile.lock.
func readLockfile(appDir string) (*Lockfile, error) {
	data, err := os.ReadFile(filepath.Join(appDir, LockfileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", failure.ErrMissingInput, LockfileName)
		}
		return nil, &failure.ParseError{Source: LockfileName, Reason: "cannot be read", Err: err}
	}
	return ParseLockfile(data), nil
}

// Declares the step downloading and unpacking a prebuilt Ruby.
//
// An empty version falls back to opts.RubyVersion.
func installRuby(opts Options, version string) (build.Step, error) {
	note := "Ruby version " + quoted(version) + " from " + quoted(LockfileName)
	var notices []build.Notice
	if version == "" {
		version = opts.RubyVersion
		note = "Using default Ruby version " + quoted(version)
		notices = append(notices, build.Notice{
			Header: "No Ruby version in " + LockfileName,
			Body: fmt.Sprintf("The application will be built with Ruby %s. Declare a `ruby` version in the %s "+
				"and run `bundle update --ruby` so later builds do not depend on this default.", version, GemfileName),
		})
	}

	arch, err := architecture(opts.Platform)
	if err != nil {
		return build.Step{}, err
	}
	location, err := DownloadURL(opts.BaseURL, opts.Stack, arch, version)
	if err != nil {
		return build.Step{}, err
	}

	script := fmt.Sprintf(
		`curl --fail --silent --show-error --location --retry 3 --user-agent '%s' '%s' | tar -xz -C "$%s"`,
		internal.UserAgent(), location, runner.LayerDirEnv,
	)

	return build.Step{
		Kind:    build.RuntimeInstall,
		Name:    RubyStep,
		Title:   "Ruby version",
		Notes:   []string{note},
		Notices: notices,
		Inputs: []fingerprint.Input{
			fingerprint.String("stack", opts.Stack),
			fingerprint.String("architecture", arch),
		},
		Identity: cache.Identity{Label: "Ruby version", Value: version, Policy: cache.IdentityRecreate},
		Command:  runner.Command{Name: "sh", Args: []string{"-c", script}},
		Exports:  map[string]string{"PATH": "$LAYER_DIR/bin:$PATH"},
		Reuse:    "Using previously installed Ruby version " + quoted(version),
	}, nil
}

// Declares the step installing bundler into its own store.
//
// An empty version falls back to opts.BundlerVersion.
func installBundler(opts Options, ruby, version string) build.Step {
	note := "Bundler version " + quoted(version) + " from " + quoted(LockfileName)
	if version == "" {
		version = opts.BundlerVersion
		note = "Using default bundler version " + quoted(version)
	}

	dir := paths.CacheDir(opts.CacheRoot, BundlerStep)

	return build.Step{
		Kind:     build.DependencyCacheValidate,
		Name:     BundlerStep,
		Title:    "Bundler",
		Notes:    []string{note},
		Inputs:   []fingerprint.Input{fingerprint.String("Ruby version", ruby)},
		Identity: cache.Identity{Label: "bundler version", Value: version, Policy: cache.IdentityRecreate},
		Command: runner.Command{
			Name: "gem",
			Args: []string{
				"install", "bundler",
				"--version", version,
				"--install-dir", dir,
				"--bindir", filepath.Join(dir, "bin"),
				"--force", "--no-document", "--env-shebang",
			},
		},
		Exports: map[string]string{
			"GEM_PATH": "$LAYER_DIR",
			"PATH":     "$LAYER_DIR/bin:$PATH",
		},
		Reuse: "Using previously installed bundler version " + quoted(version),
	}
}

// Declares the bundle install step.
//
// The gems store is recreated when the Ruby version changes and reused
// otherwise, so bundle install only fetches what the lock file added.
func installGems(opts Options) build.Step {
	dir := paths.CacheDir(opts.CacheRoot, GemsStep)

	pinned := map[string]string{
		"BUNDLE_BIN":        filepath.Join(dir, "bin"),
		"BUNDLE_CLEAN":      "1",
		"BUNDLE_DEPLOYMENT": "1",
		"BUNDLE_GEMFILE":    filepath.Join(opts.AppDir, GemfileName),
		"BUNDLE_PATH":       dir,
		"BUNDLE_WITHOUT":    opts.BundleWithout,
	}

	inputs := []fingerprint.Input{
		fingerprint.File(GemfileName, filepath.Join(opts.AppDir, GemfileName)),
		fingerprint.File(LockfileName, filepath.Join(opts.AppDir, LockfileName)),
		fingerprint.String("$BUNDLE_WITHOUT", opts.BundleWithout),
	}
	for _, key := range sortedKeys(opts.Env) {
		if _, ok := pinned[key]; ok {
			continue
		}
		inputs = append(inputs, fingerprint.EnvFrom(key, opts.Env))
	}

	exports := make(map[string]string, len(pinned)+1)
	for k, v := range pinned {
		exports[k] = v
	}
	exports["PATH"] = "$LAYER_DIR/bin:$PATH"

	return build.Step{
		Kind:     build.PackageManagerInstall,
		Name:     GemsStep,
		Title:    "Dependencies",
		Inputs:   inputs,
		Identity: cache.Identity{Label: "Ruby version", Policy: cache.IdentityRecreate},
		Command:  runner.Command{Name: "bundle", Args: []string{"install"}, Env: pinned},
		Required: []string{GemfileName, LockfileName},
		Exports:  exports,
	}
}

// Declares the step running rake tasks on every build.
func runTasks(tasks []string) build.Step {
	return build.Step{
		Kind:     build.ProjectTasks,
		Name:     TasksStep,
		Title:    "Rake tasks",
		Command:  runner.Command{Name: "bundle", Args: append([]string{"exec", "rake"}, tasks...)},
		Required: []string{RakefileName},
		Uncached: true,
	}
}

// Returns the rake tasks to run.
//
// Configured tasks win. Otherwise Rails applications with a Rakefile get
// their assets precompiled and other applications run nothing.
func rakeTasks(opts Options, lock *Lockfile) []string {
	if opts.Tasks != nil {
		return opts.Tasks
	}
	if !lock.HasGem("railties") || !lock.HasGem("rake") {
		return nil
	}
	if _, err := os.Stat(filepath.Join(opts.AppDir, RakefileName)); err != nil {
		return nil
	}
	return []string{assetsTask}
}

// Returns the architecture of the target platform.
//
// Prebuilt archives exist for Linux only. An empty spec selects the host
// architecture.
func architecture(spec string) (string, error) {
	if spec == "" {
		return platforms.Normalize(platforms.DefaultSpec()).Architecture, nil
	}

	p, err := platforms.Parse(spec)
	if err != nil {
		return "", &failure.ParseError{Source: "platform", Reason: fmt.Sprintf("invalid platform %q", spec), Err: err}
	}
	p = platforms.Normalize(p)
	if p.OS != "linux" {
		return "", &failure.ParseError{Source: "platform", Reason: fmt.Sprintf("unsupported platform %s", platforms.Format(p))}
	}
	return p.Architecture, nil
}

// Returns the location of the prebuilt Ruby archive.
//
// Archives for amd64 live directly below the stack, other architectures in a
// subdirectory named after the architecture, e.g.
// "<base>/heroku-22/arm64/ruby-3.1.2.tgz".
func DownloadURL(base, stack, arch, version string) (string, error) {
	elems := []string{stack}
	if arch != "" && arch != "amd64" {
		elems = append(elems, arch)
	}
	elems = append(elems, "ruby-"+version+".tgz")

	location, err := url.JoinPath(base, elems...)
	if err != nil {
		return "", &failure.ParseError{Source: "download URL", Reason: fmt.Sprintf("invalid base %q", base), Err: err}
	}
	return location, nil
}

// Formats a value for the build log.
func quoted(s string) string {
	return buildlog.Value("`" + s + "`")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

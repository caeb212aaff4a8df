package failure

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/cruciblehq/rubypack/internal"
	"github.com/cruciblehq/rubypack/internal/buildlog"
	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/runner"
)

// Category of a build failure.
type Kind int

const (
	Internal                    Kind = iota // Failure in the tool itself.
	RuntimeDetectionFailed                  // The runtime version could not be determined.
	DependencyListingFailed                 // Dependency information could not be read.
	RuntimeInstallFailed                    // The runtime could not be installed.
	ManifestLockMissing                     // A required manifest or lock file is missing.
	CacheIOFailed                           // Reading or writing a cache failed.
	PackageManagerInstallFailed             // The package manager failed to install dependencies.
	ProjectTaskFailed                       // A project-defined build task failed.
	PackageManagerSetupFailed               // The package manager itself could not be installed.
)

var kindNames = [...]string{
	Internal:                    "Internal",
	RuntimeDetectionFailed:      "RuntimeDetectionFailed",
	DependencyListingFailed:     "DependencyListingFailed",
	RuntimeInstallFailed:        "RuntimeInstallFailed",
	ManifestLockMissing:         "ManifestLockMissing",
	CacheIOFailed:               "CacheIoFailed",
	PackageManagerInstallFailed: "PackageManagerInstallFailed",
	ProjectTaskFailed:           "ProjectTaskFailed",
	PackageManagerSetupFailed:   "PackageManagerSetupFailed",
}

// Returns the kind's name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pipeline stage at which a failure was observed.
type Origin int

const (
	OriginUnknown Origin = iota
	OriginRuntimeInstall
	OriginDependencyCacheValidate
	OriginPackageManagerInstall
	OriginProjectTasks
)

// Classified build failure.
type Error struct {
	Kind        Kind   // Failure category.
	Header      string // One-line summary for the operator.
	Remediation string // What the operator can do about it.
	Detail      string // Underlying detail, verbatim.
	Err         error  // Classified error.
}

// Implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Header
	}
	return e.Header + ": " + e.Err.Error()
}

// Returns the classified error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Returns the remediation text followed by the underlying detail.
func (e *Error) Body() string {
	label := "Details:"
	var perr *runner.ProcessError
	if errors.As(e.Err, &perr) {
		label = "Command failed:"
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n", e.Remediation, label, e.Detail)
}

// Announces the failure on log.
func (e *Error) Report(log buildlog.Logger) {
	log.Error(e.Header, e.Body())
}

// Maps err, observed at origin, to a classified failure.
//
// An error that is already classified is returned unchanged. Returns nil for a
// nil error.
func Classify(origin Origin, err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	return newError(kindOf(origin, err), err)
}

// Determines the kind of err, observed at origin.
func kindOf(origin Origin, err error) Kind {
	var (
		perr    *runner.ProcessError
		parse   *ParseError
		pathErr *fs.PathError
	)

	switch {
	case errors.As(err, &perr):
		switch origin {
		case OriginRuntimeInstall:
			return RuntimeInstallFailed
		case OriginDependencyCacheValidate:
			return PackageManagerSetupFailed
		case OriginPackageManagerInstall:
			return PackageManagerInstallFailed
		case OriginProjectTasks:
			return ProjectTaskFailed
		}
		return Internal
	case errors.Is(err, ErrMissingInput):
		return ManifestLockMissing
	case errors.As(err, &parse):
		if origin == OriginRuntimeInstall {
			return RuntimeDetectionFailed
		}
		return DependencyListingFailed
	case errors.Is(err, cache.ErrCacheIO),
		errors.Is(err, fingerprint.ErrUnreadableInput),
		errors.As(err, &pathErr):
		return CacheIOFailed
	}
	return Internal
}

// Builds the classified error for kind from its remedy.
func newError(kind Kind, err error) *Error {
	t := remedies[kind]
	return &Error{
		Kind:        kind,
		Header:      t.header,
		Remediation: strings.TrimSpace(t.remediation),
		Detail:      detail(err),
		Err:         err,
	}
}

// Returns the underlying detail of err, including command output.
func detail(err error) string {
	var perr *runner.ProcessError
	if errors.As(err, &perr) && len(perr.Tail) > 0 {
		return perr.Error() + "\n\n" + perr.Output()
	}
	return err.Error()
}

type remedy struct {
	header      string
	remediation string
}

var remedies = map[Kind]remedy{
	Internal: {
		header:      internal.Name + " internal error",
		remediation: `
An unexpected internal error was reported while building your application.

If the issue persists, consider opening an issue on the ` + internal.Name + `
repository and include the details below.`,
	},
	RuntimeDetectionFailed: {
		header:      "Error detecting Ruby version",
		remediation: `
The Ruby version your application needs is read from its Gemfile.lock. It
could not be determined, and the build cannot continue without it.

Check that the RUBY VERSION section of Gemfile.lock is well formed, for
example by running ` + "`bundle update --ruby`" + ` locally.`,
	},
	DependencyListingFailed: {
		header:      "Error detecting dependencies",
		remediation: `
Dependency information from your application is used to guide the build.
Without this information, the build cannot continue.

Check that Gemfile.lock is valid by running ` + "`bundle install`" + ` locally and
committing the result.`,
	},
	RuntimeInstallFailed: {
		header:      "Error installing Ruby",
		remediation: `
Could not install the detected Ruby version.

Check that the version is supported on this stack and that the download
location is reachable.`,
	},
	ManifestLockMissing: {
		header:      "Gemfile.lock required",
		remediation: `
To build a Ruby application, a Gemfile.lock file is required in the root of
your application, but none was found.

If you have a Gemfile.lock in your application, it may not be tracked in git,
or you may be on a different branch.`,
	},
	CacheIOFailed: {
		header:      "Internal cache error",
		remediation: `
An error occurred while reading or writing cached files.

Clearing the cache with ` + "`" + internal.Name + " cache clear`" + ` and building
again usually resolves it.`,
	},
	PackageManagerInstallFailed: {
		header:      "Installing gems failed",
		remediation: `
Could not install gems via bundler. Gems are dependencies your application
listed in the Gemfile and resolved in the Gemfile.lock.`,
	},
	ProjectTaskFailed: {
		header:      "Build task failed",
		remediation: `
An error occurred while running a build task defined by your application, such
as asset compilation.`,
	},
	PackageManagerSetupFailed: {
		header:      "Error installing bundler",
		remediation: `
Installation of bundler failed. Bundler is the package management library for
Ruby, and it is needed to install the dependencies listed in the Gemfile.`,
	},
}

package internal

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

const (

	// Name of the program, used for the CLI, log groups and directory names.
	Name = "rubypack"

	// Version reported by builds that carry no release metadata.
	localVersion = "(local)"

	// Release channel that is left out of version strings.
	mainChannel = "main"

	// Length of the commit hash shown in version strings.
	shortCommit = 12
)

// Release metadata, set by release builds with linker flags such as
// -X github.com/cruciblehq/rubypack/internal.version=1.4.0.
var (
	version   = "" // Semantic version, with or without a "v" prefix.
	stage     = "" // Release channel, usually the branch the build came from.
	gitCommit = "" // Source revision.

	rawQuiet   = "false" // Whether to enable quiet mode
	rawDebug   = "false" // Whether to enable debug mode
	rawVerbose = "false" // Whether to enable verbose output
	rawNoColor = "false" // Whether to disable colored output
)

// Describes the running rubypack binary.
type Release struct {
	Version string // Semantic version without a "v" prefix. Empty when unknown.
	Channel string // Release channel. Empty for the main channel.
	Commit  string // Shortened source revision. Empty when unknown.
	Dirty   bool   // Whether the source tree had uncommitted changes.
	Arch    string // Architecture the binary was built for.
}

var current = sync.OnceValue(func() Release {
	r := releaseFromFlags()
	if info, ok := debug.ReadBuildInfo(); ok {
		r.complete(info)
	}
	return r
})

// Returns the release metadata of the running binary.
//
// Linker flags take precedence. Anything they leave unset is taken from the
// module version and VCS stamp the go command embeds, so binaries installed
// with "go install" still report where they came from.
func CurrentRelease() Release {
	return current()
}

// Builds a release from the linker flag variables.
func releaseFromFlags() Release {
	r := Release{
		Version: normalizeVersion(version),
		Channel: strings.ToLower(strings.TrimSpace(stage)),
		Commit:  strings.TrimSpace(gitCommit),
		Arch:    runtime.GOARCH,
	}
	if r.Channel == mainChannel {
		r.Channel = ""
	}
	return r
}

// Fills the fields still empty in r from info.
func (r *Release) complete(info *debug.BuildInfo) {
	if r.Version == "" && info.Main.Version != "(devel)" {
		r.Version = normalizeVersion(info.Main.Version)
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if r.Commit == "" {
				r.Commit = s.Value
			}
		case "vcs.modified":
			r.Dirty = s.Value == "true"
		}
	}
	if len(r.Commit) > shortCommit {
		r.Commit = r.Commit[:shortCommit]
	}
}

// Strips surrounding space and a "v" prefix.
func normalizeVersion(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.TrimPrefix(v, "v")
}

// Returns true if the release has no version, as with "go run" and tests.
func (r Release) IsLocal() bool {
	return r.Version == ""
}

// Formats the release as "<version>[+<channel>] [<commit>[-dirty]] [<arch>]",
// or "(local)" when the version is unknown.
func (r Release) String() string {
	if r.IsLocal() {
		return localVersion
	}

	var b strings.Builder
	b.WriteString(r.Version)
	if r.Channel != "" {
		b.WriteString("+" + r.Channel)
	}
	if r.Commit != "" {
		b.WriteString(" " + r.Commit)
		if r.Dirty {
			b.WriteString("-dirty")
		}
	}
	fmt.Fprintf(&b, " [%s]", r.Arch)
	return b.String()
}

// Returns the user agent sent with runtime downloads, for example
// "rubypack/1.4.0 (linux; amd64)". Local builds report "dev" as the version.
func (r Release) UserAgent() string {
	v := r.Version
	if r.IsLocal() {
		v = "dev"
	}
	return fmt.Sprintf("%s/%s (%s; %s)", Name, v, runtime.GOOS, r.Arch)
}

// Returns the version string of the running binary.
func VersionString() string {
	return CurrentRelease().String()
}

// Returns the user agent of the running binary.
func UserAgent() string {
	return CurrentRelease().UserAgent()
}

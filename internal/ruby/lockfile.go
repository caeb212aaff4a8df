package ruby

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/cruciblehq/rubypack/internal/failure"
)

const (
	rubyVersionSection = "RUBY VERSION"
	bundledWithSection = "BUNDLED WITH"
)

var (
	// Matches "ruby 3.1.2p20" and "ruby 2.6.8p001 (jruby 9.3.6.0)".
	rubyVersionPattern = regexp.MustCompile(`^ruby (\d+\.\d+\.\d+(?:\.[0-9a-z]+)?)(?:p\d+)?(?: \(([a-z]+) (\d[0-9A-Za-z.]*)\))?$`)

	// Matches release versions such as "2.3.7" or "2.5.0.dev".
	versionPattern = regexp.MustCompile(`^\d+(?:\.[0-9A-Za-z]+)*$`)

	// Matches a top-level spec such as "    rake (13.0.6)".
	specPattern = regexp.MustCompile(`^    ([^ ()]+) \(([^)]+)\)$`)
)

// Facts read from a Gemfile.lock.
type Lockfile struct {
	Ruby    string            // Raw RUBY VERSION entry, empty when not recorded.
	Bundler string            // Raw BUNDLED WITH entry, empty when not recorded.
	Gems    map[string]string // Locked gem versions by name.
}

// Reads the sections of a Gemfile.lock.
//
// Only structure is read here; the recorded versions are validated by
// [Lockfile.RubyVersion] and [Lockfile.BundlerVersion].
func ParseLockfile(data []byte) *Lockfile {
	lock := &Lockfile{Gems: make(map[string]string)}

	var section string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, " ") {
			section = line
			continue
		}

		switch section {
		case "GEM", "GIT", "PATH":
			if m := specPattern.FindStringSubmatch(line); m != nil {
				lock.Gems[m[1]] = m[2]
			}
		case rubyVersionSection:
			if lock.Ruby == "" {
				lock.Ruby = strings.TrimSpace(line)
			}
		case bundledWithSection:
			if lock.Bundler == "" {
				lock.Bundler = strings.TrimSpace(line)
			}
		}
	}
	return lock
}

// Returns the Ruby version recorded in the lock file.
//
// The patch level is dropped and an alternative engine is appended, so
// "ruby 2.6.8p001 (jruby 9.3.6.0)" becomes "2.6.8-jruby-9.3.6.0". Returns an
// empty string when no version is recorded, and a [*failure.ParseError] when
// the entry is malformed.
func (l *Lockfile) RubyVersion() (string, error) {
	if l.Ruby == "" {
		return "", nil
	}
	m := rubyVersionPattern.FindStringSubmatch(l.Ruby)
	if m == nil {
		return "", &failure.ParseError{
			Source: LockfileName,
			Reason: fmt.Sprintf("malformed %s entry %q", rubyVersionSection, l.Ruby),
		}
	}
	if m[2] != "" {
		return m[1] + "-" + m[2] + "-" + m[3], nil
	}
	return m[1], nil
}

// Returns the bundler version recorded in the lock file.
//
// Returns an empty string when no version is recorded, and a
// [*failure.ParseError] when the entry is malformed.
func (l *Lockfile) BundlerVersion() (string, error) {
	if l.Bundler == "" {
		return "", nil
	}
	if !versionPattern.MatchString(l.Bundler) {
		return "", &failure.ParseError{
			Source: LockfileName,
			Reason: fmt.Sprintf("malformed %s entry %q", bundledWithSection, l.Bundler),
		}
	}
	return l.Bundler, nil
}

// Returns true if the lock file lists the gem.
func (l *Lockfile) HasGem(name string) bool {
	_, ok := l.Gems[name]
	return ok
}

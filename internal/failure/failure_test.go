package failure

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/cruciblehq/rubypack/internal/buildlog"
	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processError(code int, tail ...string) error {
	return &runner.ProcessError{Command: "bundle install", ExitCode: code, Tail: tail}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		origin Origin
		err    error
		want   Kind
	}{
		{"runtime install command", OriginRuntimeInstall, processError(22), RuntimeInstallFailed},
		{"bundler install command", OriginDependencyCacheValidate, processError(1), PackageManagerSetupFailed},
		{"gem install command", OriginPackageManagerInstall, processError(5), PackageManagerInstallFailed},
		{"project task command", OriginProjectTasks, processError(1), ProjectTaskFailed},
		{"command outside a stage", OriginUnknown, processError(1), Internal},
		{"wrapped command", OriginPackageManagerInstall, fmt.Errorf("step gems: %w", processError(1)), PackageManagerInstallFailed},
		{"missing lock file", OriginPackageManagerInstall, fmt.Errorf("%w: Gemfile.lock", ErrMissingInput), ManifestLockMissing},
		{"missing lock file at runtime", OriginRuntimeInstall, fmt.Errorf("%w: Gemfile.lock", ErrMissingInput), ManifestLockMissing},
		{"runtime version parse", OriginRuntimeInstall, &ParseError{Source: "Gemfile.lock", Reason: "bad version"}, RuntimeDetectionFailed},
		{"dependency parse", OriginDependencyCacheValidate, &ParseError{Source: "Gemfile.lock", Reason: "bad bundler version"}, DependencyListingFailed},
		{"cache io", OriginPackageManagerInstall, fmt.Errorf("%w: disk full", cache.ErrCacheIO), CacheIOFailed},
		{"unreadable input", OriginPackageManagerInstall, fmt.Errorf("%w: Gemfile", fingerprint.ErrUnreadableInput), CacheIOFailed},
		{"path error", OriginProjectTasks, &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, CacheIOFailed},
		{"unknown", OriginProjectTasks, errors.New("boom"), Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.origin, tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
			assert.NotEmpty(t, got.Header)
			assert.NotEmpty(t, got.Remediation)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(OriginRuntimeInstall, nil))
}

func TestClassifyIsIdempotent(t *testing.T) {
	first := Classify(OriginPackageManagerInstall, processError(1))
	again := Classify(OriginProjectTasks, fmt.Errorf("pipeline: %w", first))
	assert.Same(t, first, again)
	assert.Equal(t, PackageManagerInstallFailed, again.Kind)
}

func TestDetailPreservesOutput(t *testing.T) {
	err := Classify(OriginPackageManagerInstall, processError(5, "Fetching rack", "Could not find gem 'nope'"))

	assert.Contains(t, err.Detail, "exited with status 5")
	assert.Contains(t, err.Detail, "Could not find gem 'nope'")

	body := err.Body()
	assert.True(t, strings.HasPrefix(body, err.Remediation))
	assert.Contains(t, body, "Command failed:")
	assert.Contains(t, body, "Could not find gem 'nope'")
}

func TestInternalIsGeneric(t *testing.T) {
	err := Classify(OriginUnknown, errors.New("nil pointer in orchestrator"))

	assert.Equal(t, Internal, err.Kind)
	assert.Contains(t, err.Header, "internal error")
	assert.Contains(t, err.Remediation, "If the issue persists")
	assert.Contains(t, err.Body(), "Details:\n\nnil pointer in orchestrator")
}

func TestEveryKindHasRemedy(t *testing.T) {
	for k := Internal; k <= PackageManagerSetupFailed; k++ {
		r, ok := remedies[k]
		require.Truef(t, ok, "no remedy for %s", k)
		assert.NotEmpty(t, r.header)
		assert.NotEmpty(t, strings.TrimSpace(r.remediation))
	}
}

func TestReport(t *testing.T) {
	var log buildlog.Recorder
	Classify(OriginRuntimeInstall, processError(22, "curl: (22) 404")).Report(&log)

	errs := log.Texts(buildlog.EventError)
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Error installing Ruby\n"))
	assert.Contains(t, errs[0], "curl: (22) 404")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "CacheIoFailed", CacheIOFailed.String())
	assert.Equal(t, "ManifestLockMissing", ManifestLockMissing.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestParseError(t *testing.T) {
	cause := errors.New("unexpected token")
	err := &ParseError{Source: "Gemfile.lock", Reason: "invalid RUBY VERSION", Err: cause}
	assert.Equal(t, "parsing Gemfile.lock: invalid RUBY VERSION: unexpected token", err.Error())
	assert.ErrorIs(t, err, cause)
}

package fingerprint

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestComputeDeterministic(t *testing.T) {
	dir := t.TempDir()
	lock := writeFile(t, dir, "Gemfile.lock", "GEM\n  specs:\n    rack (3.0.0)\n")
	env := map[string]string{"BUNDLE_WITHOUT": "development:test"}

	inputs := []Input{
		File("Gemfile.lock", lock),
		EnvFrom("BUNDLE_WITHOUT", env),
		String("ruby", "3.1.2"),
	}

	first, err := Compute(inputs)
	require.NoError(t, err)
	for range 5 {
		again, err := Compute(inputs)
		require.NoError(t, err)
		assert.Equal(t, first.Fingerprint, again.Fingerprint)
	}

	assert.Equal(t, []string{"Gemfile.lock", "$BUNDLE_WITHOUT", "ruby"}, first.Names())
	assert.Len(t, first.Fingerprint.Hex(), 64)
	assert.Len(t, first.Fingerprint.Short(), shortLength)
}

func TestComputeSingleByteChange(t *testing.T) {
	base := []byte("GEM\n  specs:\n    rack (3.0.0)\n")
	want, err := Of(Bytes("Gemfile.lock", base))
	require.NoError(t, err)

	seen := map[Fingerprint]int{want: -1}
	for i := range base {
		changed := append([]byte(nil), base...)
		changed[i] ^= 0x01

		got, err := Of(Bytes("Gemfile.lock", changed))
		require.NoError(t, err)
		prev, dup := seen[got]
		require.Falsef(t, dup, "byte %d collides with byte %d", i, prev)
		seen[got] = i
	}
}

func TestComputeAbsentDiffersFromEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty", "")
	missing := filepath.Join(dir, "missing")

	absentFP, err := Of(File("Gemfile.lock", missing))
	require.NoError(t, err)
	emptyFP, err := Of(File("Gemfile.lock", empty))
	require.NoError(t, err)
	assert.NotEqual(t, absentFP, emptyFP)

	explicit, err := Of(Absent("Gemfile.lock"))
	require.NoError(t, err)
	assert.Equal(t, absentFP, explicit)
}

func TestComputeUnsetEnvDiffersFromEmptyEnv(t *testing.T) {
	unset, err := Of(EnvFrom("BUNDLE_WITHOUT", nil))
	require.NoError(t, err)
	empty, err := Of(EnvFrom("BUNDLE_WITHOUT", map[string]string{"BUNDLE_WITHOUT": ""}))
	require.NoError(t, err)
	assert.NotEqual(t, unset, empty)
}

func TestComputeBoundaryAmbiguity(t *testing.T) {
	a, err := Of(String("ab", "c"))
	require.NoError(t, err)
	b, err := Of(String("a", "bc"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	split, err := Of(String("x", "ab"), String("y", "c"))
	require.NoError(t, err)
	joined, err := Of(String("x", "a"), String("y", "bc"))
	require.NoError(t, err)
	assert.NotEqual(t, split, joined)
}

func TestComputeOrderSensitive(t *testing.T) {
	ab, err := Of(String("a", "1"), String("b", "2"))
	require.NoError(t, err)
	ba, err := Of(String("b", "2"), String("a", "1"))
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)
}

func TestComputeIgnoresFileMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Gemfile", "source 'https://rubygems.org'\n")

	before, err := Of(File("Gemfile", path))
	require.NoError(t, err)

	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, old, old))
	require.NoError(t, os.Chmod(path, 0600))

	after, err := Of(File("Gemfile", path))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Same content read from a different checkout location.
	other := writeFile(t, t.TempDir(), "Gemfile", "source 'https://rubygems.org'\n")
	moved, err := Of(File("Gemfile", other))
	require.NoError(t, err)
	assert.Equal(t, before, moved)
}

func TestComputeInvalidInputs(t *testing.T) {
	tests := []struct {
		name   string
		inputs []Input
	}{
		{name: "empty name", inputs: []Input{String("", "x")}},
		{name: "nul in name", inputs: []Input{String("a\x00b", "x")}},
		{name: "duplicate", inputs: []Input{String("a", "1"), String("a", "2")}},
		{name: "zero input", inputs: []Input{{Name: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.inputs)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestComputeUnreadable(t *testing.T) {
	dir := t.TempDir()
	_, err := Compute([]Input{File("dir", dir)})
	require.ErrorIs(t, err, ErrUnreadableInput)
}

func TestComputeConcurrent(t *testing.T) {
	want, err := Of(String("a", "1"), String("b", "2"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Of(String("a", "1"), String("b", "2"))
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestSummary(t *testing.T) {
	result, err := Compute([]Input{String("ruby", "3.1.2"), Absent("Gemfile.lock")})
	require.NoError(t, err)

	summary := result.Summary()
	assert.Equal(t, "absent", summary["Gemfile.lock"])
	assert.Contains(t, summary["ruby"], "sha256:")
}

func TestParse(t *testing.T) {
	fp, err := Of(String("ruby", "3.1.2"))
	require.NoError(t, err)

	parsed, err := Parse(fp.String())
	require.NoError(t, err)
	assert.Equal(t, fp, parsed)

	for _, bad := range []string{"", "sha256:zz", "md5:abc", "not a digest", fp.Hex()} {
		_, err := Parse(bad)
		assert.ErrorIsf(t, err, ErrInvalid, "input %q", bad)
	}

	var decoded Fingerprint
	require.Error(t, decoded.UnmarshalText([]byte("sha256:short")))
	require.NoError(t, decoded.UnmarshalText([]byte(fp.String())))
	assert.Equal(t, fp, decoded)
}

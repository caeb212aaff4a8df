package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cruciblehq/rubypack/internal/buildlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sh(script string) Command {
	return Command{Name: "/bin/sh", Args: []string{"-c", script}}
}

func TestRunStreamsInOrder(t *testing.T) {
	var log buildlog.Recorder
	script := "echo out1; echo err1 >&2; echo out2; echo err2 >&2"

	result, err := New().Run(context.Background(), sh(script), t.TempDir(), "", &log)
	require.NoError(t, err)

	want := []string{"out1", "err1", "out2", "err2"}
	assert.Equal(t, want, log.Texts(buildlog.EventLine))
	assert.Equal(t, want, result.Tail)

	events := log.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, buildlog.EventStart, events[0].Kind)
	assert.Contains(t, events[0].Text, "/bin/sh -c")
	assert.Equal(t, buildlog.EventStop, events[len(events)-1].Kind)
}

func TestRunInterleavedOverTime(t *testing.T) {
	var log buildlog.Recorder
	script := "echo one; sleep 0.3; echo two >&2; sleep 0.3; echo three; sleep 0.3; echo four >&2"

	r := New(WithTickInterval(50 * time.Millisecond))
	start := time.Now()
	result, err := r.Run(context.Background(), sh(script), t.TempDir(), "", &log)
	wall := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three", "four"}, log.Texts(buildlog.EventLine))
	assert.GreaterOrEqual(t, result.Duration, 900*time.Millisecond)
	assert.LessOrEqual(t, result.Duration, wall)
	assert.InDelta(t, wall.Seconds(), result.Duration.Seconds(), 0.25)

	var ticks int
	var lastTick time.Duration
	for _, e := range log.Events() {
		if e.Kind == buildlog.EventTick {
			ticks++
			assert.GreaterOrEqual(t, e.Elapsed, lastTick)
			lastTick = e.Elapsed
		}
	}
	assert.Greater(t, ticks, 0)

	// The first line arrives before the command finishes.
	events := log.Events()
	var firstLine, firstTickAfter int = -1, -1
	for i, e := range events {
		if e.Kind == buildlog.EventLine && firstLine < 0 {
			firstLine = i
		}
		if e.Kind == buildlog.EventTick && firstLine >= 0 && firstTickAfter < 0 {
			firstTickAfter = i
		}
	}
	assert.GreaterOrEqual(t, firstTickAfter, 0, "no tick after the first line was streamed")
}

func TestRunNonZeroExit(t *testing.T) {
	var log buildlog.Recorder

	_, err := New().Run(context.Background(), sh("echo a; echo boom >&2; exit 3"), t.TempDir(), "", &log)
	require.Error(t, err)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.ExitCode)
	assert.Equal(t, []string{"a", "boom"}, perr.Tail)
	assert.Equal(t, "a\nboom", perr.Output())
	assert.NoError(t, perr.Err)
	assert.Contains(t, perr.Error(), "exited with status 3")

	// The timed step is closed even on failure.
	assert.Len(t, log.Texts(buildlog.EventStop), 1)
}

func TestRunMissingProgram(t *testing.T) {
	var log buildlog.Recorder
	cmd := Command{Name: "rubypack-test-no-such-program"}

	_, err := New().Run(context.Background(), cmd, t.TempDir(), "", &log)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, -1, perr.ExitCode)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Len(t, log.Texts(buildlog.EventStop), 1)
}

func TestRunInvalidCommand(t *testing.T) {
	_, err := New().Run(context.Background(), Command{}, t.TempDir(), "", buildlog.Discard)
	require.ErrorIs(t, err, ErrInvalidCommand)
}

func TestRunEnvironment(t *testing.T) {
	var log buildlog.Recorder
	environ := func() []string {
		return []string{"PATH=" + os.Getenv("PATH"), "FOO=inherited", "BAR=inherited"}
	}
	cmd := sh(`echo "$FOO $BAR $BAZ $LAYER_DIR"`)
	cmd.Env = map[string]string{"FOO": "pinned"}
	cmd.Ambient = map[string]string{"FOO": "ambient", "BAZ": "ambient"}

	_, err := New(WithEnviron(environ)).Run(context.Background(), cmd, t.TempDir(), "/cache/gems", &log)
	require.NoError(t, err)
	assert.Equal(t, []string{"pinned inherited ambient /cache/gems"}, log.Texts(buildlog.EventLine))

	// Ambient variables are not part of the displayed command.
	assert.NotContains(t, log.Texts(buildlog.EventStart)[0], `BAZ="ambient"`)
}

func TestRunWorkdir(t *testing.T) {
	var log buildlog.Recorder
	dir := t.TempDir()

	_, err := New().Run(context.Background(), sh("pwd"), dir, "", &log)
	require.NoError(t, err)

	lines := log.Texts(buildlog.EventLine)
	require.Len(t, lines, 1)
	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunTailIsBounded(t *testing.T) {
	var log buildlog.Recorder
	script := "i=1; while [ $i -le 100 ]; do echo line$i; i=$((i+1)); done; exit 1"

	_, err := New(WithTailLines(5)).Run(context.Background(), sh(script), t.TempDir(), "", &log)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"line96", "line97", "line98", "line99", "line100"}, perr.Tail)
	assert.Len(t, log.Texts(buildlog.EventLine), 100)
}

func TestRunLongAndUnterminatedLines(t *testing.T) {
	var log buildlog.Recorder
	script := "head -c 200000 /dev/zero | tr '\\0' x; echo; printf 'no newline'"

	_, err := New().Run(context.Background(), sh(script), t.TempDir(), "", &log)
	require.NoError(t, err)

	lines := log.Texts(buildlog.EventLine)
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Repeat("x", 200000), lines[0])
	assert.Equal(t, "no newline", lines[1])
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New().Run(ctx, Command{Name: "sleep", Args: []string{"5"}}, t.TempDir(), "", buildlog.Discard)
	require.Less(t, time.Since(start), 4*time.Second)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, -1, perr.ExitCode)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunContextCanceledLeavesDescendants(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The shell forks sleep, which inherits the output pipe and outlives it.
	cmd := sh("sleep 3; echo late")

	start := time.Now()
	_, err := New(WithWaitDelay(200*time.Millisecond)).Run(ctx, cmd, t.TempDir(), "", buildlog.Discard)
	require.Less(t, time.Since(start), 2*time.Second)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, -1, perr.ExitCode)
	assert.NotContains(t, perr.Tail, "late")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunBackgroundDescendantDoesNotBlock(t *testing.T) {
	var log buildlog.Recorder

	start := time.Now()
	result, err := New(WithWaitDelay(200*time.Millisecond)).Run(context.Background(), sh("sleep 3 & echo started"), t.TempDir(), "", &log)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, []string{"started"}, result.Tail)
	assert.Equal(t, buildlog.EventStop, log.Events()[len(log.Events())-1].Kind)
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "plain",
			cmd:  Command{Name: "bundle", Args: []string{"install"}},
			want: "bundle install",
		},
		{
			name: "pinned env sorted",
			cmd: Command{
				Name: "bundle",
				Args: []string{"install"},
				Env:  map[string]string{"BUNDLE_PATH": "/cache/gems", "BUNDLE_BIN": "/cache/gems/bin"},
			},
			want: `BUNDLE_BIN="/cache/gems/bin" BUNDLE_PATH="/cache/gems" bundle install`,
		},
		{
			name: "quoted args",
			cmd:  Command{Name: "sh", Args: []string{"-c", "curl -sSf $URL | tar -xz", ""}},
			want: `sh -c "curl -sSf $URL | tar -xz" ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

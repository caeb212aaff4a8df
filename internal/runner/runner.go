package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cruciblehq/rubypack/internal/buildlog"
)

const (

	// Interval between progress ticks while a command runs.
	DefaultTickInterval = time.Second

	// Number of output lines kept for error reports.
	DefaultTailLines = 40

	// Time output may stay open after the command exits, as when a
	// background descendant inherited it.
	DefaultWaitDelay = 5 * time.Second

	// Variable holding the step's cache directory in the command environment.
	LayerDirEnv = "LAYER_DIR"
)

// Successful command execution.
type Result struct {
	Command  string        // Display form of the command.
	Tail     []string      // Last lines of combined output.
	Duration time.Duration // Wall-clock run time.
}

// Executes external commands, streaming their output to a build log.
type Runner struct {
	tick      time.Duration
	tail      int
	waitDelay time.Duration
	environ   func() []string
}

// Configures a [Runner].
type Option func(*Runner)

// Sets the interval between progress ticks.
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.tick = d
		}
	}
}

// Sets how many trailing output lines are kept.
func WithTailLines(n int) Option {
	return func(r *Runner) {
		r.tail = n
	}
}

// Sets how long output is read after the command exits before it is closed.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.waitDelay = d
		}
	}
}

// Sets the function providing the inherited environment. Defaults to
// [os.Environ].
func WithEnviron(environ func() []string) Option {
	return func(r *Runner) {
		r.environ = environ
	}
}

// Creates a runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		tick:      DefaultTickInterval,
		tail:      DefaultTailLines,
		waitDelay: DefaultWaitDelay,
		environ:   os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Runs cmd in workdir and waits for it to exit.
//
// The child inherits the runner's environment with the command's pinned
// variables on top, and [LayerDirEnv] set to cacheDir when it is not empty.
// Combined output is streamed line by line to log between a StartTimed and a
// StopTimed call, with a Tick at every interval. A non-zero exit, a start
// failure or termination by ctx yields a [*ProcessError].
//
// Cancelling ctx kills the command but not its descendants. Output left open
// by a descendant is read for at most the wait delay after the command exits.
func (r *Runner) Run(ctx context.Context, cmd Command, workdir, cacheDir string, log buildlog.Logger) (*Result, error) {
	if cmd.IsZero() {
		return nil, fmt.Errorf("%w: no program", ErrInvalidCommand)
	}
	display := cmd.String()

	env := mergeEnv(r.environ(), cmd.Environ())
	if cacheDir != "" {
		env = mergeEnv(env, []string{LayerDirEnv + "=" + cacheDir})
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = workdir
	c.Env = env
	c.WaitDelay = r.waitDelay

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &ProcessError{Command: display, ExitCode: -1, Err: err}
	}
	c.Stdout = pw
	c.Stderr = pw

	log.StartTimed("Running " + buildlog.Command(display))
	start := time.Now()

	if err := c.Start(); err != nil {
		pr.Close()
		pw.Close()
		elapsed := time.Since(start)
		log.StopTimed(elapsed)
		return nil, &ProcessError{Command: display, ExitCode: -1, Duration: elapsed, Err: err}
	}

	// The child holds its own copy of the write end; ours must be closed for
	// the reader to see EOF.
	pw.Close()

	slog.Debug("command started", "command", display, "pid", c.Process.Pid, "dir", workdir)

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = c.Wait()
		close(exited)
	}()

	tail := newTail(r.tail)
	r.stream(pr, tail, start, log, exited)
	<-exited

	elapsed := time.Since(start)
	log.StopTimed(elapsed)

	if waitErr != nil {
		perr := &ProcessError{Command: display, ExitCode: -1, Tail: tail.lines(), Duration: elapsed}

		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			perr.Err = fmt.Errorf("%w: %w", ctx.Err(), waitErr)
		case errors.As(waitErr, &exitErr) && exitErr.ExitCode() >= 0:
			perr.ExitCode = exitErr.ExitCode()
		default:
			perr.Err = waitErr
		}

		slog.Debug("command failed", "command", display, "exit", perr.ExitCode, "duration", elapsed)
		return nil, perr
	}

	slog.Debug("command finished", "command", display, "duration", elapsed)
	return &Result{Command: display, Tail: tail.lines(), Duration: elapsed}, nil
}

// Forwards output lines to log and ticks until the reader finishes. Once
// exited is closed, pr is closed if it has not reached EOF within the wait
// delay.
func (r *Runner) stream(pr io.ReadCloser, tail *tail, start time.Time, log buildlog.Logger, exited <-chan struct{}) {
	lines := make(chan string)
	go scan(pr, lines)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	var drain <-chan time.Time
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			tail.add(line)
			log.Line(line)
		case <-ticker.C:
			log.Tick(time.Since(start))
		case <-exited:
			exited = nil
			timer := time.NewTimer(r.waitDelay)
			defer timer.Stop()
			drain = timer.C
		case <-drain:
			drain = nil
			slog.Debug("output still open after exit", "wait_delay", r.waitDelay)
			pr.Close()
		}
	}
}

// Sends every line read from rd to lines, then closes both.
//
// A final line without a trailing newline is still sent.
func scan(rd io.ReadCloser, lines chan<- string) {
	defer close(lines)
	defer rd.Close()

	br := bufio.NewReader(rd)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines <- strings.TrimRight(line, "\r\n")
		}
		if err != nil {
			return
		}
	}
}

// Bounded buffer of the most recent output lines.
type tail struct {
	max int
	buf []string
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) add(line string) {
	if t.max <= 0 {
		return
	}
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *tail) lines() []string {
	return append([]string(nil), t.buf...)
}

package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cruciblehq/rubypack/internal/buildlog"
	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/failure"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/runner"
)

// Executes step commands. Implemented by [*runner.Runner].
type Runner interface {
	Run(ctx context.Context, cmd runner.Command, workdir, cacheDir string, log buildlog.Logger) (*runner.Result, error)
}

// Controls pipeline execution.
type Options struct {
	AppDir    string            // Application directory, working directory for commands.
	CacheRoot string            // Directory holding the cache stores.
	Runner    Runner            // Executes step commands.
	Log       buildlog.Logger   // Build log. Defaults to [buildlog.Discard].
	Env       map[string]string // User variables passed to every command.
	Verbose   bool              // Whether to log input diffs when a cache is invalidated.
}

// Runs declared steps in order against their cache stores.
type Pipeline struct {
	opts Options
	now  func() time.Time
}

// Creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.Log == nil {
		opts.Log = buildlog.Discard
	}
	if opts.Runner == nil {
		opts.Runner = runner.New()
	}
	if opts.AppDir == "" {
		opts.AppDir = "."
	}
	return &Pipeline{opts: opts, now: time.Now}
}

// Executes steps in order.
//
// Steps are validated before any of them runs; an invalid list returns an
// [ErrInvalidStep] error and an empty report. The first failing step is
// classified, announced on the build log and returned as a [*failure.Error];
// later steps stay [Pending]. The report is returned in every other case,
// including failure.
func (p *Pipeline) Run(ctx context.Context, steps []Step) (*Report, error) {
	if err := validateSteps(steps); err != nil {
		return &Report{}, err
	}

	appDir, err := filepath.Abs(p.opts.AppDir)
	if err != nil {
		return &Report{}, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	report := newReport(steps)
	state := newStepState(appDir, p.opts.Env)
	exec := &execution{pipeline: p, state: state}
	start := p.now()

	slog.Info("running build", "app", appDir, "cache", p.opts.CacheRoot, "steps", len(steps))

	for i, step := range steps {
		sr := &report.Steps[i]
		sr.State = Running

		stepStart := p.now()
		err := exec.step(ctx, step, sr)
		sr.Duration = p.now().Sub(stepStart)

		if err != nil {
			sr.State = Failed
			ferr := failure.Classify(step.Kind.origin(), fmt.Errorf("step %s: %w", step.Name, err))
			sr.Err = ferr
			report.Duration = p.now().Sub(start)

			slog.Info("step failed", "step", step.Name, "kind", ferr.Kind, "error", err)
			ferr.Report(p.opts.Log)
			return report, ferr
		}

		sr.State = Succeeded
		slog.Info("step finished", "step", step.Name, "decision", sr.Decision, "ran", sr.Ran, "duration", sr.Duration)
	}

	report.Duration = p.now().Sub(start)
	p.opts.Log.Done(report.Duration)
	return report, nil
}

// State of one pipeline run.
type execution struct {
	pipeline *Pipeline
	state    *stepState
	runtime  string // Identity of the installed runtime, once known.
}

// Executes a single step, recording its outcome in sr.
func (e *execution) step(ctx context.Context, step Step, sr *StepReport) error {
	log := e.pipeline.opts.Log
	log.Section(step.title())
	for _, note := range step.Notes {
		log.Step(note)
	}
	for _, n := range step.Notices {
		log.Important(n.Header, n.Body)
	}

	if err := e.checkRequired(step); err != nil {
		return err
	}

	if step.Uncached {
		if err := e.run(ctx, step, ""); err != nil {
			return err
		}
		sr.Ran = true
		e.state.apply(step.Exports, "")
		return nil
	}

	result, err := fingerprint.Compute(step.Inputs)
	if err != nil {
		return err
	}
	sr.Fingerprint = result.Fingerprint

	store, err := cache.Open(e.pipeline.opts.CacheRoot, step.Name)
	if err != nil {
		return err
	}
	if err := store.Ignored(); err != nil {
		log.Warning("Ignoring unreadable cache metadata", fmt.Sprintf("The %s cache will be rebuilt: %v", step.Name, err))
	}

	id := e.identity(step)
	explanation := cache.Explain(result, store.Metadata(), id)
	sr.Decision = explanation.Decision

	slog.Debug("cache resolved",
		"step", step.Name,
		"decision", explanation.Decision,
		"fingerprint", result.Fingerprint.Short(),
		"reason", explanation.Reason,
	)

	switch explanation.Decision {
	case cache.Keep:
		log.Step(reuseMessage(step, result))
		e.finish(step, store, id)
		return nil

	case cache.Update:
		log.Step("Updating cache " + buildlog.Details(explanation.Reason))

	case cache.Recreate:
		if store.Metadata() != nil {
			log.Step("Clearing cache " + buildlog.Details(explanation.Reason))
			if e.pipeline.opts.Verbose && explanation.Diff != "" {
				log.Step("Changed inputs:\n" + strings.TrimRight(explanation.Diff, "\n"))
			}
		}
		if err := store.Reset(); err != nil {
			return err
		}
	}

	if err := e.run(ctx, step, store.Dir()); err != nil {
		return err
	}
	sr.Ran = true

	if err := store.Commit(result, id.Value); err != nil {
		return err
	}
	e.finish(step, store, id)
	return nil
}

// Runs the step's command against cacheDir.
func (e *execution) run(ctx context.Context, step Step, cacheDir string) error {
	cmd := e.state.resolve(step)
	_, err := e.pipeline.opts.Runner.Run(ctx, cmd, e.state.workdir(step), cacheDir, e.pipeline.opts.Log)
	return err
}

// Records the outcome of a successful cached step for later steps.
func (e *execution) finish(step Step, store *cache.Store, id cache.Identity) {
	if step.Kind == RuntimeInstall && id.Value != "" {
		e.runtime = id.Value
	}
	e.state.apply(step.Exports, store.Dir())
}

// Returns the identity of step.
//
// Steps after the runtime install that declare an identity policy but no
// value take the installed runtime's identity.
func (e *execution) identity(step Step) cache.Identity {
	id := step.Identity
	if id.Value == "" && id.Policy != cache.IdentityIgnore && step.Kind > RuntimeInstall {
		id.Value = e.runtime
	}
	return id
}

// Checks that every required file of step exists.
func (e *execution) checkRequired(step Step) error {
	for _, rel := range step.Required {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.state.appDir, rel)
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", failure.ErrMissingInput, rel)
			}
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	return nil
}

// Returns the message logged when the cache of step is kept.
func reuseMessage(step Step, result fingerprint.Result) string {
	if step.Reuse != "" {
		return step.Reuse
	}

	msg := "Skipping " + buildlog.Command(step.Command.String())
	if len(result.Inputs) == 0 {
		return msg + " " + buildlog.Details("no changes found")
	}
	return msg + " " + buildlog.Details("no changes found in "+describeInputs(result.Names()))
}

// Lists input names for the build log, grouping environment variables.
func describeInputs(names []string) string {
	var items []string
	var env bool
	for _, name := range names {
		if strings.HasPrefix(name, "$") {
			env = true
			continue
		}
		items = append(items, name)
	}
	if env {
		items = append(items, "user configured environment variables")
	}

	switch len(items) {
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}

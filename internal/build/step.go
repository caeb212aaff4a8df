package build

import (
	"fmt"

	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/failure"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/runner"
)

// Kind of build step. Steps must be declared in non-decreasing kind order.
type StepKind int

const (
	RuntimeInstall          StepKind = iota + 1 // Installs the language runtime.
	DependencyCacheValidate                     // Validates the dependency cache and installs the package manager.
	PackageManagerInstall                       // Installs dependencies with the package manager.
	ProjectTasks                                // Runs project-defined build tasks.
)

var stepKindNames = map[StepKind]string{
	RuntimeInstall:          "runtime",
	DependencyCacheValidate: "dependency-cache",
	PackageManagerInstall:   "dependencies",
	ProjectTasks:            "tasks",
}

// Returns the kind's name as used in plan files.
func (k StepKind) String() string {
	if name, ok := stepKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Parses a kind name as returned by [StepKind.String].
func ParseStepKind(s string) (StepKind, error) {
	for k, name := range stepKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidStep, s)
}

// Returns true if k is one of the declared kinds.
func (k StepKind) valid() bool {
	_, ok := stepKindNames[k]
	return ok
}

// Returns the failure origin for errors observed while running a step of
// this kind.
func (k StepKind) origin() failure.Origin {
	switch k {
	case RuntimeInstall:
		return failure.OriginRuntimeInstall
	case DependencyCacheValidate:
		return failure.OriginDependencyCacheValidate
	case PackageManagerInstall:
		return failure.OriginPackageManagerInstall
	case ProjectTasks:
		return failure.OriginProjectTasks
	}
	return failure.OriginUnknown
}

// Declared build step.
//
// A cached step owns the cache store named Name. Its command runs with the
// store's directory as LAYER_DIR whenever the resolved decision is not
// [cache.Keep]. An uncached step runs its command on every build.
type Step struct {
	Kind     StepKind            // Pipeline stage.
	Name     string              // Cache name, unique within a build.
	Title    string              // Section title in the build log. Defaults to Name.
	Notes    []string            // Lines logged at the start of the section.
	Notices  []Notice            // Announcements logged after the notes.
	Inputs   []fingerprint.Input // Inputs controlling the cached artifact.
	Identity cache.Identity      // Non-content identity of the artifact.
	Command  runner.Command      // Command regenerating the artifact.
	Workdir  string              // Working directory relative to the app directory.
	Required []string            // Files that must exist, relative to the app directory.
	Env      map[string]string   // Variables for this step's command only.
	Exports  map[string]string   // Variables passed to later steps. $LAYER_DIR expands to the cache directory.
	Reuse    string              // Message logged when the cache is kept. Defaults to a skip notice.
	Uncached bool                // Whether the step runs on every build without a cache store.
}

// Something the user should act on, shown prominently in the build log.
type Notice struct {
	Header string // One-line summary.
	Body   string // Explanation and suggested action.
}

// Returns the section title of the step.
func (s Step) title() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// Per-step execution state.
type State int

const (
	Pending   State = iota // Not attempted.
	Running                // Executing.
	Succeeded              // Finished, either kept or regenerated.
	Failed                 // Failed; the pipeline stopped here.
)

// Returns the state's name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Checks the declared steps before anything runs.
//
// Kinds must be valid and non-decreasing, names non-empty and unique, cached
// steps must be named like a cache, and every step must have a command.
func validateSteps(steps []Step) error {
	seen := make(map[string]struct{}, len(steps))
	var last StepKind

	for i, step := range steps {
		if !step.Kind.valid() {
			return fmt.Errorf("%w: step %d has unknown kind %d", ErrInvalidStep, i+1, int(step.Kind))
		}
		if step.Kind < last {
			return fmt.Errorf("%w: %s step %q declared after a %s step", ErrInvalidStep, step.Kind, step.Name, last)
		}
		last = step.Kind

		if step.Name == "" {
			return fmt.Errorf("%w: step %d has no name", ErrInvalidStep, i+1)
		}
		if !step.Uncached && !cache.ValidName(step.Name) {
			return fmt.Errorf("%w: %q is not a valid cache name", ErrInvalidStep, step.Name)
		}
		if _, dup := seen[step.Name]; dup {
			return fmt.Errorf("%w: duplicate step name %q", ErrInvalidStep, step.Name)
		}
		seen[step.Name] = struct{}{}

		if step.Command.IsZero() {
			return fmt.Errorf("%w: step %q has no command", ErrInvalidStep, step.Name)
		}
	}
	return nil
}

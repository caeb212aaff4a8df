package build

import (
	"maps"
	"os"
	"path/filepath"

	"github.com/cruciblehq/rubypack/internal/runner"
)

// Tracks environment accumulated across steps.
//
// State flows linearly through the step list. Exports of a finished step
// update the state permanently via apply. A step's command reads the
// effective values via resolve without modifying the persistent state.
type stepState struct {
	appDir string                      // Application directory, base for relative workdirs.
	env    map[string]string           // Accumulated variables.
	lookup func(string) (string, bool) // Fallback for variables referenced by exports.
}

// Creates a new [stepState] seeded with the user environment.
func newStepState(appDir string, userEnv map[string]string) *stepState {
	env := make(map[string]string, len(userEnv))
	maps.Copy(env, userEnv)
	return &stepState{
		appDir: appDir,
		env:    env,
		lookup: os.LookupEnv,
	}
}

// Persists the exports of a finished step into the state.
//
// Values may reference $LAYER_DIR, which expands to layerDir, and any other
// variable, which expands to its accumulated value or, failing that, its
// value in the process environment. All exports of a step are expanded
// against the state before any of them is stored.
func (s *stepState) apply(exports map[string]string, layerDir string) {
	expanded := make(map[string]string, len(exports))
	for k, v := range exports {
		expanded[k] = os.Expand(v, func(name string) string {
			if name == runner.LayerDirEnv {
				return layerDir
			}
			return s.value(name)
		})
	}
	maps.Copy(s.env, expanded)
}

// Returns the value of name in the state, falling back to lookup.
func (s *stepState) value(name string) string {
	if v, ok := s.env[name]; ok {
		return v
	}
	if s.lookup != nil {
		if v, ok := s.lookup(name); ok {
			return v
		}
	}
	return ""
}

// Returns the command of step with the accumulated and step-scoped variables
// as ambient environment. The receiver is not modified.
func (s *stepState) resolve(step Step) runner.Command {
	cmd := step.Command
	ambient := make(map[string]string, len(s.env)+len(step.Env)+len(cmd.Ambient))
	maps.Copy(ambient, s.env)
	maps.Copy(ambient, cmd.Ambient)
	maps.Copy(ambient, step.Env)
	cmd.Ambient = ambient
	return cmd
}

// Returns the working directory for step.
func (s *stepState) workdir(step Step) string {
	switch {
	case step.Workdir == "":
		return s.appDir
	case filepath.IsAbs(step.Workdir):
		return step.Workdir
	}
	return filepath.Join(s.appDir, step.Workdir)
}

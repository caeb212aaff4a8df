package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cruciblehq/rubypack/internal/build"
	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/failure"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/runner"
	"github.com/pelletier/go-toml/v2"
)

// Default plan file name, looked up in the application directory.
const DefaultFile = "buildplan.toml"

// Decoded plan file.
type File struct {
	Steps []StepSpec `toml:"step"`
}

// Declaration of one step in a plan file.
type StepSpec struct {
	Kind          string            `toml:"kind"`           // Step kind, e.g. "runtime" or "dependencies".
	Name          string            `toml:"name"`           // Cache name.
	Title         string            `toml:"title"`          // Section title.
	Command       []string          `toml:"command"`        // Program and arguments.
	CommandEnv    map[string]string `toml:"command_env"`    // Variables pinned on the command and shown in the log.
	Inputs        []string          `toml:"inputs"`         // Files fingerprinted, relative to the plan directory.
	EnvInputs     []string          `toml:"env_inputs"`     // Environment variables fingerprinted.
	Identity      string            `toml:"identity"`       // Non-content identity, such as a tool version.
	IdentityLabel string            `toml:"identity_label"` // Name of the identity in log messages.
	Policy        string            `toml:"policy"`         // Reaction to identity changes: "ignore", "update" or "recreate".
	Required      []string          `toml:"required"`       // Files that must exist.
	Workdir       string            `toml:"workdir"`        // Working directory relative to the plan directory.
	Env           map[string]string `toml:"env"`            // Variables for this step only.
	Exports       map[string]string `toml:"exports"`        // Variables passed to later steps.
	Reuse         string            `toml:"reuse"`          // Message logged when the cache is kept.
	Uncached      bool              `toml:"uncached"`       // Whether the step runs on every build.
}

// Loads the plan at path and converts it into build steps.
//
// Environment inputs are looked up with lookup when the steps are
// fingerprinted. A missing plan file is reported as [failure.ErrMissingInput].
func Load(path string, lookup fingerprint.LookupFunc) ([]build.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", failure.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	return Parse(data, base, lookup)
}

// Decodes a plan and converts it into build steps rooted at baseDir.
//
// Unknown keys are rejected so that typos do not silently drop settings.
func Parse(data []byte, baseDir string, lookup fingerprint.LookupFunc) ([]build.Step, error) {
	var f File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPlan, strict.String())
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps declared", ErrInvalidPlan)
	}

	steps := make([]build.Step, 0, len(f.Steps))
	for i, spec := range f.Steps {
		step, err := spec.step(baseDir, lookup)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %w", ErrInvalidPlan, i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Converts the declaration into a build step.
func (s StepSpec) step(baseDir string, lookup fingerprint.LookupFunc) (build.Step, error) {
	kind, err := build.ParseStepKind(s.Kind)
	if err != nil {
		return build.Step{}, err
	}
	if len(s.Command) == 0 || s.Command[0] == "" {
		return build.Step{}, fmt.Errorf("step %q has no command", s.Name)
	}
	if !s.Uncached && !cache.ValidName(s.Name) {
		return build.Step{}, fmt.Errorf("step name %q is not a valid cache name", s.Name)
	}
	policy, err := parsePolicy(s.Policy)
	if err != nil {
		return build.Step{}, err
	}

	inputs := make([]fingerprint.Input, 0, len(s.Inputs)+len(s.EnvInputs))
	for _, rel := range s.Inputs {
		if filepath.IsAbs(rel) {
			return build.Step{}, fmt.Errorf("input %q must be relative", rel)
		}
		inputs = append(inputs, fingerprint.File(filepath.ToSlash(rel), filepath.Join(baseDir, rel)))
	}
	for _, key := range s.EnvInputs {
		inputs = append(inputs, fingerprint.Env(key, lookup))
	}

	workdir := baseDir
	if s.Workdir != "" {
		workdir = filepath.Join(baseDir, s.Workdir)
	}

	required := make([]string, len(s.Required))
	for i, rel := range s.Required {
		if filepath.IsAbs(rel) {
			return build.Step{}, fmt.Errorf("required %q must be relative", rel)
		}
		required[i] = filepath.Join(baseDir, rel)
	}

	return build.Step{
		Kind:   kind,
		Name:   s.Name,
		Title:  s.Title,
		Inputs: inputs,
		Identity: cache.Identity{
			Label:  s.IdentityLabel,
			Value:  s.Identity,
			Policy: policy,
		},
		Command: runner.Command{
			Name: s.Command[0],
			Args: s.Command[1:],
			Env:  s.CommandEnv,
		},
		Workdir:  workdir,
		Required: required,
		Env:      s.Env,
		Exports:  s.Exports,
		Reuse:    s.Reuse,
		Uncached: s.Uncached,
	}, nil
}

// Parses an identity policy name.
func parsePolicy(s string) (cache.IdentityPolicy, error) {
	switch s {
	case "", "ignore":
		return cache.IdentityIgnore, nil
	case "update":
		return cache.IdentityUpdate, nil
	case "recreate":
		return cache.IdentityRecreate, nil
	}
	return 0, fmt.Errorf("unknown policy %q", s)
}

package build

import (
	"time"

	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/failure"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
)

// Outcome of a pipeline run.
type Report struct {
	Steps    []StepReport  // One entry per declared step, in order.
	Duration time.Duration // Wall-clock time of the run.
}

// Outcome of one step.
type StepReport struct {
	Name        string                  // Step name.
	Kind        StepKind                // Step kind.
	State       State                   // Final state.
	Decision    cache.Decision          // Resolved decision. Meaningless for uncached steps.
	Fingerprint fingerprint.Fingerprint // Fingerprint of the inputs, if computed.
	Ran         bool                    // Whether the step's command was executed.
	Duration    time.Duration           // Time spent in the step.
	Err         *failure.Error          // Failure, for a failed step.
}

// Creates a report with every step pending.
func newReport(steps []Step) *Report {
	r := &Report{Steps: make([]StepReport, len(steps))}
	for i, step := range steps {
		r.Steps[i] = StepReport{Name: step.Name, Kind: step.Kind, State: Pending}
	}
	return r
}

// Returns true if every step succeeded.
func (r *Report) Succeeded() bool {
	for _, s := range r.Steps {
		if s.State != Succeeded {
			return false
		}
	}
	return true
}

// Returns the names of the steps whose command was executed, in order.
func (r *Report) Ran() []string {
	var names []string
	for _, s := range r.Steps {
		if s.Ran {
			names = append(names, s.Name)
		}
	}
	return names
}

// Returns the report of the step named name, or nil.
func (r *Report) Step(name string) *StepReport {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Package build orchestrates cached build steps.
//
// A build is an ordered list of steps, each of one [StepKind]: installing the
// runtime, validating the dependency cache, installing dependencies with the
// package manager, and running project tasks. Kinds must appear in that order,
// and steps run strictly one after another because later steps depend on the
// artifacts of earlier ones.
//
// For every cached step, the pipeline fingerprints the step's inputs, opens
// its cache store and resolves a [cache.Decision]. A kept cache skips the
// command; otherwise the command runs against the cache directory and, on
// success, the new fingerprint is committed. The first failure is classified,
// reported, and stops the pipeline; the remaining steps are never attempted.
//
// Environment exported by a step (for example a PATH entry pointing into its
// cache directory) is accumulated and passed to every later step.
//
// Example usage:
//
//	p := build.New(build.Options{
//	    AppDir:    ".",
//	    CacheRoot: paths.CacheRoot(),
//	    Runner:    runner.New(),
//	    Log:       buildlog.NewTerminal(os.Stdout),
//	})
//
//	report, err := p.Run(ctx, steps)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(report.Duration)
package build

// Package failure classifies build failures into a closed set of kinds, each
// with remediation text for the operator.
//
// [Classify] is applied once, where the pipeline observes a failure. It
// inspects the error chain and the stage that produced it, and returns an
// [*Error] that keeps the underlying detail verbatim. Failures that fit no
// kind are reported as [Internal], which distinguishes a problem in the tool
// from a problem in the project being built.
//
// Example usage:
//
//	if err := pipeline.Run(ctx, steps); err != nil {
//	    ferr := failure.Classify(failure.OriginPackageManagerInstall, err)
//	    ferr.Report(log)
//	    return ferr
//	}
package failure

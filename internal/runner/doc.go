// Package runner executes the external command that regenerates a cached
// artifact.
//
// Standard output and standard error share a single pipe, so lines reach the
// build log in the order the process wrote them. A reader goroutine scans the
// pipe while the calling goroutine forwards lines to the logger and emits
// progress ticks; closing the line channel is the only completion signal
// between the two. Commands stay in the caller's process group, and output
// held open by a background descendant is closed after a bounded wait delay
// once the command itself has exited. A non-zero exit status is reported as a [ProcessError]
// carrying the command, exit code and output tail, and the caller decides how
// to classify it.
//
// Example usage:
//
//	r := runner.New()
//	cmd := runner.Command{
//	    Name: "bundle",
//	    Args: []string{"install"},
//	    Env:  map[string]string{"BUNDLE_PATH": gemsDir},
//	}
//
//	result, err := r.Run(ctx, cmd, appDir, gemsDir, log)
//	if err != nil {
//	    var perr *runner.ProcessError
//	    if errors.As(err, &perr) {
//	        fmt.Println(perr.ExitCode, perr.Tail)
//	    }
//	    return err
//	}
//	fmt.Println(result.Duration)
package runner

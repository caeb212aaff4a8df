package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
)

// Failure of an external command.
//
// ExitCode is the process exit status, or -1 if the process could not be
// started or was terminated by a signal, in which case Err holds the cause.
type ProcessError struct {
	Command  string        // Display form of the command.
	ExitCode int           // Exit status, or -1.
	Tail     []string      // Last lines of combined output.
	Duration time.Duration // Wall-clock time until the failure.
	Err      error         // Start or wait failure, if any.
}

// Implements the error interface.
func (e *ProcessError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("command `%s` exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command `%s` failed: %v", e.Command, e.Err)
}

// Returns the underlying start or wait failure.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Returns the output tail as a single string.
func (e *ProcessError) Output() string {
	return strings.Join(e.Tail, "\n")
}

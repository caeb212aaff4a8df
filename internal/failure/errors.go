package failure

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInput = errors.New("required input missing")
)

// Failure to extract facts from a manifest or lock file.
type ParseError struct {
	Source string // File or value that was parsed, e.g. "Gemfile.lock".
	Reason string // What was wrong with it.
	Err    error  // Underlying cause, if any.
}

// Implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing %s: %s", e.Source, e.Reason)
}

// Returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

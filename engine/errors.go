package engine

import (
	"errors"
	"fmt"
)

// TransientError marks a step failure as retryable. The engine retries
// it per the step's RetryPolicy; it never crosses the submission
// boundary to the driver.
type TransientError struct {
	Err error
}

// Transient wraps err as a retryable step failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError is a step outcome that will not be retried further,
// either because the policy's attempts were exhausted, because the
// failure was explicitly non-retryable, or because an attempt timed out.
type TerminalError struct {
	// Contract is the step contract that failed.
	Contract string

	// Err is the underlying failure from the last attempt.
	Err error

	// Attempts is how many attempts were made.
	Attempts int

	// Exhausted is true when the retry policy ran out of attempts.
	Exhausted bool

	// Timeout is true when the final attempt exceeded the step timeout.
	// Distinguishable from policy exhaustion in the failure taxonomy.
	Timeout bool
}

// Terminal wraps err as a non-retryable step failure.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err, Attempts: 1}
}

func (e *TerminalError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("step %q timed out after %d attempt(s): %v", e.Contract, e.Attempts, e.Err)
	case e.Exhausted:
		return fmt.Sprintf("step %q exhausted %d attempt(s): %v", e.Contract, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("step %q failed terminally: %v", e.Contract, e.Err)
	}
}

func (e *TerminalError) Unwrap() error { return e.Err }

// DefinitionError reports a programming error in a pipeline definition:
// an unknown contract, an invalid policy, or a schema violation. Fatal
// to the run and never retried.
type DefinitionError struct {
	Pipeline string
	Stage    string
	Err      error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("pipeline %q stage %q: definition error: %v", e.Pipeline, e.Stage, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// IsTransient reports whether err is classified as retryable. An
// unclassified error defaults to transient, matching the engine's
// behavior for unannotated failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return false
	}
	var def *DefinitionError
	if errors.As(err, &def) {
		return false
	}
	return true
}

// IsTerminal reports whether err is a terminal step failure.
func IsTerminal(err error) bool {
	var terminal *TerminalError
	return errors.As(err, &terminal)
}

// IsDefinition reports whether err is a pipeline definition error.
func IsDefinition(err error) bool {
	var def *DefinitionError
	return errors.As(err, &def)
}

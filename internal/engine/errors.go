package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the block runner.
var (
	// ErrFixedArgs is returned when the fixed argument list is not exactly FixedArgCount long.
	ErrFixedArgs = errors.New("exactly 3 fixed arguments are required")

	// ErrEmptyProgram is returned when a Runner has no program to invoke.
	ErrEmptyProgram = errors.New("runner program cannot be empty")

	// ErrNilExecutor is returned when a Runner has no Executor.
	ErrNilExecutor = errors.New("runner executor cannot be nil")

	// ErrAttemptsExhausted is returned when a block fails MaxAttempts times in a row.
	ErrAttemptsExhausted = errors.New("block attempts exhausted")

	// ErrNotArray is wrapped by OutputError when valid JSON is not an array.
	ErrNotArray = errors.New("output is not a JSON array")
)

// OutputError reports aligner output that is not a JSON array.
// It is never retried: the run terminates.
type OutputError struct {
	// Block is the 0-based index of the block whose output was rejected.
	Block int

	// Err is the JSON decoding error or ErrNotArray.
	Err error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("invalid aligner output: %v", e.Err)
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

package engine

import (
	"context"
	"fmt"
	"strings"
)

// Result is what one invocation of the aligner produced.
type Result struct {
	// Stdout is the complete standard output of the process.
	Stdout []byte

	// Stderr holds the tail of the process's standard error, for failure notices.
	Stderr []byte

	// ExitCode is the process exit status. Non-zero means the invocation failed.
	ExitCode int
}

// Executor runs one process to completion.
//
// argv[0] is the program; the rest are its arguments. A non-nil error means the
// process could not be started, captured, or waited for; a process that ran and
// exited non-zero is reported through Result.ExitCode with a nil error.
type Executor interface {
	Execute(ctx context.Context, argv []string) (Result, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, argv []string) (Result, error)

// Execute calls f(ctx, argv).
func (f ExecutorFunc) Execute(ctx context.Context, argv []string) (Result, error) {
	return f(ctx, argv)
}

// FailureClassifier decides whether one attempt failed.
// A nil return means the attempt succeeded and its stdout should be parsed;
// a non-nil return is reported and the block is retried.
type FailureClassifier func(res Result, err error) error

// DefaultClassifier treats every launch error and every non-zero exit status as
// the same retryable InvocationError. Crashes, kills and environment failures are
// deliberately not told apart.
func DefaultClassifier(res Result, err error) error {
	if err != nil {
		return &InvocationError{ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return &InvocationError{
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(string(res.Stderr)),
		}
	}
	return nil
}

// InvocationError describes a failed attempt. It is always retryable.
type InvocationError struct {
	// ExitCode is the child's exit status, or -1 if it never ran to completion.
	ExitCode int

	// Stderr is the trimmed tail of the child's standard error, if any.
	Stderr string

	// Err is the underlying launch or capture error, if any.
	Err error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	if e.Err != nil {
		fmt.Fprintf(&b, "invocation failed: %v", e.Err)
	} else {
		fmt.Fprintf(&b, "process exited with status %d", e.ExitCode)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

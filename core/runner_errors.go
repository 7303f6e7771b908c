package core

import "fmt"

// RunnerErrorKind classifies runner failures for user-facing hints.
type RunnerErrorKind string

const (
	// RunnerErrorUnknown is an uncategorized runner failure.
	RunnerErrorUnknown RunnerErrorKind = "unknown"
	// RunnerErrorLaunch indicates the process could not be started.
	RunnerErrorLaunch RunnerErrorKind = "launch"
	// RunnerErrorShellUnavailable indicates no shell interpreter was found.
	RunnerErrorShellUnavailable RunnerErrorKind = "shell_unavailable"
	// RunnerErrorDirectoryNotFound indicates a cd target is missing.
	RunnerErrorDirectoryNotFound RunnerErrorKind = "directory_not_found"
	// RunnerErrorEmpty indicates a blank command line.
	RunnerErrorEmpty RunnerErrorKind = "empty"
	// RunnerErrorStream indicates output could not be read.
	RunnerErrorStream RunnerErrorKind = "stream"
)

// RunnerError wraps runner failures with a stable classification.
type RunnerError struct {
	Kind    RunnerErrorKind
	Op      string
	Message string
	Err     error
}

// NewRunnerError constructs a classified runner error.
func NewRunnerError(kind RunnerErrorKind, op string, err error) *RunnerError {
	return &RunnerError{Kind: kind, Op: op, Err: err}
}

func (e *RunnerError) Error() string {
	if e == nil {
		return "runner error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("runner %s failed", e.Op)
	}
	return "runner error"
}

func (e *RunnerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

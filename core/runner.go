package core

import (
	"context"
	"time"

	"pkt.systems/idemy/schema"
)

// Runner starts shell commands and exposes their line-oriented output.
type Runner interface {
	RunCommand(ctx context.Context, req RunCommandRequest) (CommandHandle, error)
}

// RunCommandRequest describes a command line executed through a shell.
type RunCommandRequest struct {
	WorkingDir string
	Command    string
	// Shell overrides the interpreter; empty selects the platform default.
	Shell     string
	ShellArgs []string
}

// CommandOutput captures a line of output from a command.
type CommandOutput struct {
	Stream schema.StreamKind
	Text   string
}

// CommandStream yields command output lines until io.EOF, which is returned
// only after both stdout and stderr reached end of input.
type CommandStream interface {
	Next(ctx context.Context) (CommandOutput, error)
	Close() error
}

// CommandHandle exposes output and lifecycle controls for a command.
type CommandHandle interface {
	Outputs() CommandStream
	Wait(ctx context.Context) (RunResult, error)
	Close() error
}

// RunResult describes the process outcome.
type RunResult struct {
	ExitCode int
	Signal   string
	Duration time.Duration
}

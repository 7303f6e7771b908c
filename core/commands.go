package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anmitsu/go-shlex"

	"pkt.systems/idemy/internal/logx"
	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

// SubmitRequest is one command line typed by the user.
type SubmitRequest struct {
	CommandLine string
	// WorkingDir overrides the tracked working directory for this invocation only.
	WorkingDir string
}

// CommandRunner executes command lines in a tracked working directory and
// streams their output to a listener.
//
// Submit and ChangeDirectory must be called from the owning goroutine. Output
// and exit notifications arrive on worker goroutines.
type CommandRunner struct {
	runner       Runner
	listener     CommandListener
	logger       pslog.Logger
	root         string
	cwd          string
	shell        string
	shellArgs    []string
	disableAudit bool
	workers      sync.WaitGroup
}

// NewCommandRunner constructs a command runner rooted at the project root.
func NewCommandRunner(cfg schema.WorkspaceConfig, deps CommandRunnerDeps) (*CommandRunner, error) {
	normalized, err := schema.NormalizeWorkspaceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Runner == nil {
		return nil, errors.New("command runner requires a runner")
	}
	if deps.Listener == nil {
		return nil, errors.New("command runner requires a listener")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &CommandRunner{
		runner:       deps.Runner,
		listener:     deps.Listener,
		logger:       logger,
		root:         normalized.ProjectRoot,
		cwd:          normalized.ProjectRoot,
		shell:        normalized.ShellPath,
		shellArgs:    append([]string(nil), normalized.ShellArgs...),
		disableAudit: normalized.DisableAuditLogging,
	}, nil
}

// WorkingDir returns the tracked working directory.
func (c *CommandRunner) WorkingDir() string {
	return c.cwd
}

// Submit runs a command line. A cd line is interpreted in-process; anything
// else is spawned through the shell and returns before the process exits.
// Launch failures are returned synchronously as *RunnerError.
func (c *CommandRunner) Submit(ctx context.Context, req SubmitRequest) (schema.CommandInvocation, error) {
	line := strings.TrimSpace(req.CommandLine)
	if line == "" {
		return schema.CommandInvocation{}, NewRunnerError(RunnerErrorEmpty, "submit", schema.ErrEmptyCommand)
	}
	inv := schema.CommandInvocation{
		ID:          newCommandID(),
		WorkingDir:  c.cwd,
		CommandLine: line,
	}
	if req.WorkingDir != "" {
		dir, err := ResolvePath(c.cwd, req.WorkingDir)
		if err != nil {
			return schema.CommandInvocation{}, NewRunnerError(RunnerErrorLaunch, "submit", err)
		}
		inv.WorkingDir = dir
	}
	if target, ok := parseChangeDirectory(line); ok {
		dir, err := c.changeDirectory(ctx, inv.WorkingDir, target)
		if err != nil {
			return schema.CommandInvocation{}, err
		}
		inv.WorkingDir = dir
		inv.Local = true
		return inv, nil
	}

	ctx = logx.ContextWithCommandLogger(ctx, logx.WithCommand(ctx, inv.ID), inv.ID)
	log := logx.Ctx(ctx)
	if !c.disableAudit {
		log.Debug("audit command", "command_type", "shell", "command", line, "workdir", inv.WorkingDir)
	}
	log.Info("command submit", "workdir", inv.WorkingDir, "command_len", len(line))

	started := time.Now()
	handle, err := c.runner.RunCommand(ctx, RunCommandRequest{
		WorkingDir: inv.WorkingDir,
		Command:    line,
		Shell:      c.shell,
		ShellArgs:  c.shellArgs,
	})
	if err != nil {
		log.Warn("command launch failed", "err", err)
		return schema.CommandInvocation{}, classifyLaunchError(err)
	}
	c.workers.Add(1)
	go c.consume(ctx, inv, handle, started)
	return inv, nil
}

// ChangeDirectory updates the tracked working directory. An empty path returns
// to the project root. The directory is left unchanged when the target does
// not exist or is not a directory.
func (c *CommandRunner) ChangeDirectory(ctx context.Context, path string) (string, error) {
	return c.changeDirectory(ctx, c.cwd, path)
}

// changeDirectory resolves relative targets against base.
func (c *CommandRunner) changeDirectory(ctx context.Context, base, path string) (string, error) {
	target := c.root
	if strings.TrimSpace(path) != "" {
		resolved, err := ResolvePath(base, path)
		if err != nil {
			return c.cwd, NewRunnerError(RunnerErrorDirectoryNotFound, "cd", err)
		}
		target = resolved
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		logx.Ctx(ctx).Debug("command cd rejected", "target", target, "err", err)
		return c.cwd, &RunnerError{
			Kind:    RunnerErrorDirectoryNotFound,
			Op:      "cd",
			Message: fmt.Sprintf("cd: %s: %v", path, schema.ErrDirectoryNotFound),
			Err:     schema.ErrDirectoryNotFound,
		}
	}
	c.cwd = target
	logx.Ctx(ctx).Debug("command cd", "workdir", target)
	return target, nil
}

// Wait blocks until every submitted command has delivered its exit notification.
func (c *CommandRunner) Wait() {
	c.workers.Wait()
}

func (c *CommandRunner) consume(ctx context.Context, inv schema.CommandInvocation, handle CommandHandle, started time.Time) {
	defer c.workers.Done()
	defer func() {
		_ = handle.Close()
	}()
	log := logx.Ctx(ctx)
	stream := handle.Outputs()
	var streamErr error
	lines := 0
	for {
		output, err := stream.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				streamErr = err
			}
			break
		}
		lines++
		c.listener.OnCommandOutput(schema.CommandOutputEvent{
			CommandID: inv.ID,
			Stream:    output.Stream,
			Text:      output.Text,
		})
	}
	result, err := handle.Wait(ctx)
	exit := schema.CommandExitEvent{
		CommandID: inv.ID,
		ExitCode:  result.ExitCode,
		Duration:  time.Since(started),
	}
	switch {
	case err != nil:
		exit.ExitCode = -1
		exit.Err = err
	case streamErr != nil:
		exit.Err = NewRunnerError(RunnerErrorStream, "read output", streamErr)
	}
	if exit.Err != nil {
		log.Warn("command finished with error", "exit_code", exit.ExitCode, "lines", lines, "err", exit.Err)
	} else {
		log.Info("command finished", "exit_code", exit.ExitCode, "lines", lines, "duration_ms", exit.Duration.Milliseconds())
	}
	c.listener.OnCommandExit(exit)
}

// parseChangeDirectory recognizes "cd" and "cd <dir>". Lines with shell
// operators or more than one argument are left to the shell.
func parseChangeDirectory(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "cd" {
		return "", false
	}
	if strings.ContainsAny(line, shellOperators) {
		return "", false
	}
	args, err := shlex.Split(line, true)
	if err != nil || len(args) > 2 {
		return "", false
	}
	if len(args) < 2 {
		return "", true
	}
	return args[1], true
}

const shellOperators = ";&|<>$`()"

func classifyLaunchError(err error) error {
	var runnerErr *RunnerError
	if errors.As(err, &runnerErr) {
		return runnerErr
	}
	if errors.Is(err, schema.ErrShellUnavailable) {
		return NewRunnerError(RunnerErrorShellUnavailable, "launch", err)
	}
	return NewRunnerError(RunnerErrorLaunch, "launch", err)
}

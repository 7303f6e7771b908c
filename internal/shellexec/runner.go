package shellexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"pkt.systems/idemy/core"
	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

// Config controls how commands are handed to the shell.
type Config struct {
	// Shell overrides shell discovery for every command.
	Shell     string
	ShellArgs []string
	Env       []string
}

// Runner implements core.Runner on top of a local shell.
type Runner struct {
	cfg Config
}

// NewRunner constructs a shell runner.
func NewRunner(cfg Config) (*Runner, error) {
	return &Runner{cfg: cfg}, nil
}

// RunCommand starts the command line through the shell. The returned handle
// streams stdout and stderr lines; start failures are returned directly.
func (r *Runner) RunCommand(ctx context.Context, req core.RunCommandRequest) (core.CommandHandle, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, schema.ErrEmptyCommand
	}
	shellPath := req.Shell
	shellArgs := req.ShellArgs
	if shellPath == "" {
		shellPath = r.cfg.Shell
		shellArgs = r.cfg.ShellArgs
	}
	shell, args, err := resolveShell(shellPath, shellArgs)
	if err != nil {
		return nil, err
	}
	log := pslog.Ctx(ctx)
	log.Debug("shell command start", "shell", shell, "workdir", req.WorkingDir, "command_len", len(req.Command))
	log.Trace("shell command", "command", req.Command)

	if req.WorkingDir != "" {
		info, err := os.Stat(req.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("working directory %s: %w", req.WorkingDir, schema.ErrDirectoryNotFound)
		}
	}

	argv := append(append([]string(nil), args...), req.Command)
	cmd := exec.CommandContext(ctx, shell, argv...)
	configureProcess(cmd)
	cmd.Dir = req.WorkingDir
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	if req.WorkingDir != "" {
		cmd.Env = append(cmd.Env, "PWD="+req.WorkingDir)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error("shell command stdout failed", "err", err)
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Error("shell command stderr failed", "err", err)
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		log.Warn("shell command start failed", "err", err)
		return nil, err
	}
	log.Debug("shell command started", "pid", cmd.Process.Pid)

	return &commandHandle{
		cmd:     cmd,
		stream:  newLineStream(ctx, stdout, stderr),
		log:     log,
		started: time.Now(),
	}, nil
}

type commandHandle struct {
	cmd     *exec.Cmd
	stream  *lineStream
	log     pslog.Logger
	started time.Time
}

func (h *commandHandle) Outputs() core.CommandStream {
	return h.stream
}

// Wait must be called after Outputs returned io.EOF; exec.Cmd closes the
// pipes once the process exited.
func (h *commandHandle) Wait(ctx context.Context) (core.RunResult, error) {
	_ = ctx
	if h.cmd == nil || h.cmd.Process == nil {
		return core.RunResult{}, errors.New("process not started")
	}
	err := h.cmd.Wait()
	result := core.RunResult{Duration: time.Since(h.started)}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			h.log.Error("shell command wait failed", "err", err)
			return core.RunResult{}, err
		}
		result.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			result.Signal = status.Signal().String()
		}
	}
	fields := []any{
		"exit_code", result.ExitCode,
		"duration_ms", result.Duration.Milliseconds(),
	}
	if result.Signal != "" {
		fields = append(fields, "signal", result.Signal)
	}
	h.log.Debug("shell command finished", fields...)
	return result, nil
}

func (h *commandHandle) Close() error {
	if h.stream != nil {
		_ = h.stream.Close()
	}
	return nil
}

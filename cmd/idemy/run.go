package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"pkt.systems/idemy/core"
	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

// exitCodeError carries a command exit status to the process exit code.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "run [--dir path] -- <command line>",
		Short: "Run one command line through the configured shell",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			workspace, err := workspaceConfig(cfg)
			if err != nil {
				return err
			}
			runner, err := newShellRunner(cfg)
			if err != nil {
				return err
			}
			listener := newStreamListener(cmd.OutOrStdout(), cmd.ErrOrStderr())
			commands, err := core.NewCommandRunner(workspace, core.CommandRunnerDeps{
				Runner:   runner,
				Listener: listener,
				Logger:   pslog.Ctx(cmd.Context()),
			})
			if err != nil {
				return err
			}
			return runOnce(cmd, commands, listener, core.SubmitRequest{
				CommandLine: strings.Join(args, " "),
				WorkingDir:  dir,
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", "", "working directory relative to the project root")
	return cmd
}

func runOnce(cmd *cobra.Command, commands *core.CommandRunner, listener *streamListener, req core.SubmitRequest) error {
	inv, err := commands.Submit(cmd.Context(), req)
	if err != nil {
		return err
	}
	if inv.Local {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), inv.WorkingDir)
		return err
	}
	commands.Wait()
	exit := listener.exit()
	if exit.Err != nil {
		return exit.Err
	}
	switch {
	case exit.ExitCode < 0:
		return &exitCodeError{code: 1}
	case exit.ExitCode > 0:
		return &exitCodeError{code: exit.ExitCode}
	}
	return nil
}

// streamListener copies command output to stdout and stderr.
type streamListener struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	last   schema.CommandExitEvent
}

func newStreamListener(stdout, stderr io.Writer) *streamListener {
	return &streamListener{stdout: stdout, stderr: stderr}
}

func (l *streamListener) OnCommandOutput(event schema.CommandOutputEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.stdout
	if event.Stream == schema.StreamStderr {
		w = l.stderr
	}
	_, _ = fmt.Fprintln(w, event.Text)
}

func (l *streamListener) OnCommandExit(event schema.CommandExitEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = event
}

func (l *streamListener) exit() schema.CommandExitEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func exitCode(err error) (int, bool) {
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code, true
	}
	return 0, false
}

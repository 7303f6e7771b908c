package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/idemy/internal/console"
	"pkt.systems/idemy/internal/filestore"
	"pkt.systems/pslog"
)

const localSessionID = "local"

type shellOptions struct {
	noWatch bool
}

func (o *shellOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.noWatch, "no-watch", false, "do not watch open files for external changes")
}

func newShellCmd(opts *globalOptions) *cobra.Command {
	shell := &shellOptions{}
	cmd := &cobra.Command{
		Use:   "shell [file...]",
		Short: "Start an interactive session, optionally opening files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts, shell, args)
		},
	}
	shell.bind(cmd)
	return cmd
}

func runShell(cmd *cobra.Command, opts *globalOptions, shell *shellOptions, files []string) error {
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

	ctx := cmd.Context()
	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	var lineIO console.LineIO
	if fd, ok := interactiveFD(in, out); ok {
		// Log lines would interleave with the line editor; keep them quiet
		// unless LOG_LEVEL asks otherwise.
		ctx = pslog.ContextWithLogger(ctx, newLogger(pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.ErrorLevel}))
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("terminal raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()
		tio := console.NewTerminalIO(struct {
			io.Reader
			io.Writer
		}{in, out}, cfg.Editor.Prompt)
		if width, height, err := term.GetSize(fd); err == nil {
			_ = tio.SetSize(width, height)
		}
		lineIO = tio
	} else {
		lineIO = console.NewStreamIO(in, out)
	}

	logger := pslog.Ctx(ctx)
	sess, err := console.New(localSessionID, lineIO, console.Config{
		Workspace: workspace,
		Watch:     cfg.Watch.Enabled && !shell.noWatch,
		TreeDepth: cfg.Editor.TreeDepth,
		Prompt:    cfg.Editor.Prompt,
	}, console.Deps{
		Files:  filestore.NewWithLogger(logger),
		Runner: runner,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	if len(files) > 0 {
		if err := sess.Open(ctx, files...); err != nil {
			lineIO.WriteLines(fmt.Sprintf("error: %v", err))
		}
	}
	return sess.Run(ctx)
}

// interactiveFD returns the terminal descriptor when both ends are a terminal.
func interactiveFD(in io.Reader, out io.Writer) (int, bool) {
	inFile, ok := in.(*os.File)
	if !ok {
		return 0, false
	}
	outFile, ok := out.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(inFile.Fd())
	if !term.IsTerminal(fd) || !term.IsTerminal(int(outFile.Fd())) {
		return 0, false
	}
	return fd, true
}

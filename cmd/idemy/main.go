package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := newLogger(pslog.Options{Mode: pslog.ModeConsole})
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		if code, ok := exitCode(err); ok {
			return code
		}
		pslog.Ctx(ctx).With("err", err).Error("idemy command failed")
		return 1
	}
	return 0
}

// newLogger reads LOG_* settings from the environment on top of defaults.
func newLogger(defaults pslog.Options) pslog.Logger {
	return pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(defaults),
	)
}

type globalOptions struct {
	configPath         string
	projectRoot        string
	disableAuditTrails bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	shell := &shellOptions{}
	root := &cobra.Command{
		Use:           "idemy [file...]",
		Short:         "Console editor with an integrated shell",
		Long:          "idemy edits files in tabs and runs shell commands next to them. Without a subcommand it starts an interactive session.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts, shell, args)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVarP(&opts.projectRoot, "root", "r", "", "project root (default: config project_root or the current directory)")
	root.PersistentFlags().BoolVar(&opts.disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	shell.bind(root)

	root.AddCommand(newShellCmd(opts))
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

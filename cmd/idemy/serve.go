package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/idemy/internal/console"
	"pkt.systems/idemy/internal/eventbus"
	"pkt.systems/idemy/internal/filestore"
	"pkt.systems/idemy/sshserver"
	"pkt.systems/pslog"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	var requirePTY bool
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve interactive sessions over SSH",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.SSH.Addr = addr
			}
			workspace, err := workspaceConfig(cfg)
			if err != nil {
				return err
			}
			runner, err := newShellRunner(cfg)
			if err != nil {
				return err
			}
			keys, err := sshserver.LoadAuthorizedKeys(cfg.SSH.AuthorizedKeysPath, logger)
			if err != nil {
				return err
			}
			if keys.Len() == 0 {
				logger.Warn("no authorized keys; every login will be rejected", "path", cfg.SSH.AuthorizedKeysPath)
			}
			server := &sshserver.Server{
				Config: sshserver.Config{
					Addr:               cfg.SSH.Addr,
					HostKeyPath:        cfg.SSH.HostKeyPath,
					AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
					RequirePTY:         requirePTY,
				},
				Keys: keys,
				Console: console.Config{
					Workspace: workspace,
					Watch:     cfg.Watch.Enabled && !noWatch,
					TreeDepth: cfg.Editor.TreeDepth,
					Prompt:    cfg.Editor.Prompt,
				},
				Files:    filestore.NewWithLogger(logger),
				Runner:   runner,
				EventBus: eventbus.New(logger),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger.Info("ssh server start", "addr", cfg.SSH.Addr, "root", workspace.ProjectRoot, "authorized_keys", keys.Len())
			if err := server.ListenAndServe(ctx); err != nil {
				return err
			}
			logger.Info("ssh server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: config ssh.addr)")
	cmd.Flags().BoolVar(&requirePTY, "require-pty", false, "reject sessions without a terminal")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch open files for external changes")
	return cmd
}

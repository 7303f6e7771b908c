package main

import (
	"pkt.systems/idemy/core"
	"pkt.systems/idemy/internal/appconfig"
	"pkt.systems/idemy/internal/shellexec"
	"pkt.systems/idemy/schema"
)

func loadConfig(opts *globalOptions) (appconfig.Config, error) {
	cfg, err := appconfig.Load(opts.configPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	if opts.projectRoot != "" {
		cfg.ProjectRoot = opts.projectRoot
	}
	if opts.disableAuditTrails {
		cfg.Logging.DisableAuditTrails = true
	}
	return cfg, nil
}

func workspaceConfig(cfg appconfig.Config) (schema.WorkspaceConfig, error) {
	return schema.NormalizeWorkspaceConfig(cfg.Workspace())
}

func newShellRunner(cfg appconfig.Config) (core.Runner, error) {
	return shellexec.NewRunner(shellexec.Config{
		Shell:     cfg.Shell.Path,
		ShellArgs: cfg.Shell.Args,
		Env:       cfg.Shell.Environ(),
	})
}

package appconfig

import (
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/idemy/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	ProjectRoot   string        `mapstructure:"project_root" yaml:"project_root"`
	Editor        EditorConfig  `mapstructure:"editor" yaml:"editor"`
	Shell         ShellConfig   `mapstructure:"shell" yaml:"shell"`
	Watch         WatchConfig   `mapstructure:"watch" yaml:"watch"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EditorConfig controls buffer naming and the console views.
type EditorConfig struct {
	DirtyMarker   string `mapstructure:"dirty_marker" yaml:"dirty_marker"`
	TabNameMax    int    `mapstructure:"tab_name_max" yaml:"tab_name_max"`
	TabNameSuffix string `mapstructure:"tab_name_suffix" yaml:"tab_name_suffix"`
	ScratchPrefix string `mapstructure:"scratch_prefix" yaml:"scratch_prefix"`
	TreeDepth     int    `mapstructure:"tree_depth" yaml:"tree_depth"`
	Prompt        string `mapstructure:"prompt" yaml:"prompt"`
}

// ShellConfig selects the shell commands run through. An empty path uses
// platform discovery. Env entries are KEY=VALUE pairs added to the inherited
// environment.
type ShellConfig struct {
	Path string   `mapstructure:"path" yaml:"path"`
	Args []string `mapstructure:"args" yaml:"args"`
	Env  []string `mapstructure:"env" yaml:"env"`
}

// WatchConfig controls external change detection for open files.
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SSHConfig configures the SSH server.
type SSHConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		ProjectRoot:   "",
		Editor: EditorConfig{
			DirtyMarker:   schema.DefaultDirtyMarker,
			TabNameMax:    schema.DefaultTabNameMax,
			TabNameSuffix: "~",
			ScratchPrefix: schema.DefaultScratchPrefix,
			TreeDepth:     2,
			Prompt:        "> ",
		},
		Shell: ShellConfig{
			Path: "",
			Args: []string{},
			Env:  []string{},
		},
		Watch: WatchConfig{
			Enabled: true,
		},
		SSH: SSHConfig{
			Addr:               ":27522",
			HostKeyPath:        filepath.Join(home, ".idemy", "ssh_host_key"),
			AuthorizedKeysPath: filepath.Join(home, ".ssh", "authorized_keys"),
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".idemy", "config.yaml"), nil
}

// Workspace maps the config onto the editing core settings.
func (c Config) Workspace() schema.WorkspaceConfig {
	return schema.WorkspaceConfig{
		ProjectRoot:         c.ProjectRoot,
		DirtyMarker:         c.Editor.DirtyMarker,
		TabNameMax:          c.Editor.TabNameMax,
		TabNameSuffix:       c.Editor.TabNameSuffix,
		ScratchPrefix:       c.Editor.ScratchPrefix,
		ShellPath:           c.Shell.Path,
		ShellArgs:           append([]string(nil), c.Shell.Args...),
		DisableAuditLogging: c.Logging.DisableAuditTrails,
	}
}

// Environ returns the extra shell environment with $VAR references expanded.
func (s ShellConfig) Environ() []string {
	if len(s.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.Env))
	for _, entry := range s.Env {
		if !strings.Contains(entry, "=") {
			continue
		}
		out = append(out, expandEnv(entry))
	}
	return out
}

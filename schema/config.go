package schema

import (
	"errors"
	"os"
	"path/filepath"
)

// WorkspaceConfig defines defaults and limits for the editing core.
type WorkspaceConfig struct {
	// ProjectRoot anchors relative paths and is the initial command working directory.
	ProjectRoot   string
	DirtyMarker   string
	TabNameMax    int
	TabNameSuffix string
	ScratchPrefix string
	// ShellPath overrides shell discovery when set.
	ShellPath string
	ShellArgs []string
	// DisableAuditLogging disables debug logs carrying full command lines.
	DisableAuditLogging bool
}

const (
	// DefaultDirtyMarker is appended to tab titles of dirty buffers.
	DefaultDirtyMarker = "*"
	// DefaultTabNameMax bounds tab title length before truncation.
	DefaultTabNameMax = 24
	// DefaultScratchPrefix names scratch buffers.
	DefaultScratchPrefix = "Untitled-"
)

// NormalizeWorkspaceConfig applies defaults and validates the config.
func NormalizeWorkspaceConfig(cfg WorkspaceConfig) (WorkspaceConfig, error) {
	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return WorkspaceConfig{}, err
		}
		cfg.ProjectRoot = wd
	}
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return WorkspaceConfig{}, err
	}
	cfg.ProjectRoot = filepath.Clean(root)
	if cfg.DirtyMarker == "" {
		cfg.DirtyMarker = DefaultDirtyMarker
	}
	if cfg.TabNameMax <= 0 {
		cfg.TabNameMax = DefaultTabNameMax
	}
	if cfg.TabNameSuffix == "" {
		cfg.TabNameSuffix = "~"
	}
	if cfg.ScratchPrefix == "" {
		cfg.ScratchPrefix = DefaultScratchPrefix
	}
	if cfg.TabNameMax <= len(cfg.TabNameSuffix) {
		return WorkspaceConfig{}, errors.New("tab name max must exceed suffix length")
	}
	return cfg, nil
}

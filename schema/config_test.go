package schema

import (
	"path/filepath"
	"testing"
)

func TestNormalizeWorkspaceConfigDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := NormalizeWorkspaceConfig(WorkspaceConfig{ProjectRoot: root})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected root %q, got %q", root, cfg.ProjectRoot)
	}
	if cfg.DirtyMarker != DefaultDirtyMarker {
		t.Fatalf("expected default marker, got %q", cfg.DirtyMarker)
	}
	if cfg.TabNameMax != DefaultTabNameMax {
		t.Fatalf("expected tab name max %d, got %d", DefaultTabNameMax, cfg.TabNameMax)
	}
	if cfg.ScratchPrefix != DefaultScratchPrefix {
		t.Fatalf("expected scratch prefix %q, got %q", DefaultScratchPrefix, cfg.ScratchPrefix)
	}
}

func TestNormalizeWorkspaceConfigRejectsShortTabNames(t *testing.T) {
	_, err := NormalizeWorkspaceConfig(WorkspaceConfig{
		ProjectRoot:   t.TempDir(),
		TabNameMax:    2,
		TabNameSuffix: "...",
	})
	if err == nil {
		t.Fatalf("expected error for tab name max below suffix length")
	}
}

func TestIOErrorUnwrap(t *testing.T) {
	err := &IOError{Op: "read", Path: "/tmp/x", Err: ErrInvalidPath}
	if err.Error() != "read /tmp/x: invalid path" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err.Unwrap() != ErrInvalidPath {
		t.Fatalf("expected unwrap to return the cause")
	}
}

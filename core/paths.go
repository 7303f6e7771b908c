package core

import (
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/idemy/schema"
)

// ResolvePath maps a user-supplied path to a clean absolute path.
// Relative paths are anchored at base; a leading ~ expands to the home directory.
func ResolvePath(base, path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", schema.ErrInvalidPath
	}
	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	if strings.TrimSpace(base) == "" {
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	return filepath.Join(base, expanded), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// RelativeName returns path relative to root when it lies inside it, else path.
func RelativeName(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// canonicalPath resolves symlinks in abs so that one file opened through
// different links maps to one key. A file that does not exist yet resolves
// through its parent directory; otherwise abs is returned unchanged.
func canonicalPath(abs string) string {
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return abs
}

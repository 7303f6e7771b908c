//go:build !windows

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommandStreams(t *testing.T) {
	root := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "missing.yaml")
	out, errOut, err := execute(t, "", "run", "-c", cfg, "-r", root, "--", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "out" {
		t.Fatalf("unexpected stdout %q", out)
	}
	if strings.TrimSpace(errOut) != "err" {
		t.Fatalf("unexpected stderr %q", errOut)
	}
}

func TestRunCommandExitCode(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err := execute(t, "", "run", "-c", cfg, "-r", t.TempDir(), "--", "exit 7")
	if code, ok := exitCode(err); !ok || code != 7 {
		t.Fatalf("expected exit code 7, got %v", err)
	}
}

func TestRunCommandWorkingDir(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "pkg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := filepath.Join(t.TempDir(), "missing.yaml")
	out, _, err := execute(t, "", "run", "-c", cfg, "-r", root, "-C", "pkg", "--", "basename \"$(pwd -P)\"")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "pkg" {
		t.Fatalf("expected pkg, got %q", out)
	}
}

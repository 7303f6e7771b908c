//go:build windows

package shellexec

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"pkt.systems/idemy/schema"
)

// resolveShell picks the configured shell, else a POSIX compatibility shell
// (Git for Windows, MSYS2, Cygwin). cmd.exe is never used.
func resolveShell(configured string, args []string) (string, []string, error) {
	if len(args) == 0 {
		args = []string{"-c"}
	}
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", nil, fmt.Errorf("shell %s: %w", configured, schema.ErrShellUnavailable)
		}
		return path, args, nil
	}
	for _, name := range []string{"sh.exe", "bash.exe"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, args, nil
		}
	}
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LOCALAPPDATA"} {
		base := os.Getenv(env)
		if base == "" {
			continue
		}
		for _, rel := range []string{`Git\bin\sh.exe`, `Programs\Git\bin\sh.exe`, `Git\usr\bin\sh.exe`} {
			candidate := filepath.Join(base, rel)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, args, nil
			}
		}
	}
	return "", nil, schema.ErrShellUnavailable
}

func configureProcess(cmd *exec.Cmd) {
	_ = cmd
}

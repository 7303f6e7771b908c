//go:build !windows

package shellexec

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"pkt.systems/idemy/schema"
)

var defaultShells = []string{"/bin/sh", "/usr/bin/sh"}

// resolveShell picks the configured shell, else the first executable POSIX sh.
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
	for _, candidate := range defaultShells {
		if unix.Access(candidate, unix.X_OK) == nil {
			return candidate, args, nil
		}
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, args, nil
	}
	return "", nil, schema.ErrShellUnavailable
}

// configureProcess puts the shell in its own process group and kills the
// whole group on cancellation so pipelines do not keep the pipes open.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}

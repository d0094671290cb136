//go:build unix

package livedoc

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the shell and everything it spawns in a new process
// group so a single kill reaches grandchildren holding the output pipe.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

package harness

import (
	"os/exec"
	"syscall"
)

func setpgidAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// killProcessGroup sends SIGKILL to the entire process group of cmd, so a
// harness CLI that forked helper processes (shells, tool subprocesses)
// doesn't leave orphans behind on cancellation.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

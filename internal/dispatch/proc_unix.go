//go:build !windows

package dispatch

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureWorkerProcess runs the worker in its own process group.
func configureWorkerProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func checkExecutable(path string) error {
	return unix.Access(path, unix.X_OK)
}

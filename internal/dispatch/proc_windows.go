//go:build windows

package dispatch

import "os/exec"

func configureWorkerProcess(*exec.Cmd) {}

func checkExecutable(string) error { return nil }

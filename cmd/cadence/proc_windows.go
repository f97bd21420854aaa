//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProc detaches the daemon from the launching console.
func configureDaemonProc(cmd *exec.Cmd) {
	const createNewProcessGroup = 0x00000200
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

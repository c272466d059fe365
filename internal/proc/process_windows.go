//go:build windows

package proc

import (
	"os/exec"
	"syscall"
)

// setNewProcessGroup is grounded on the teacher's internal/utils/
// process_windows.go SetNewPG: CREATE_NEW_PROCESS_GROUP lets the child be
// signalled independently of the supervisor's own console group.
func setNewProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

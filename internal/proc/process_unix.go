//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
)

// setNewProcessGroup is grounded on the teacher's internal/utils/
// process_darwin.go / process_other.go SetNewPG: detach the child into its
// own process group so it survives the supervisor's own restart.
func setNewProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

//go:build !windows

package lifecycle

import "syscall"

// detachAttrs puts the child in its own session so it is not torn down with
// the supervisor's process group.
func detachAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

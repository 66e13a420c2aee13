//go:build !windows

package supervisor

import "syscall"

// detachedProcAttr places the child in its own session so it is not killed
// when the CLI's terminal or process group goes away.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

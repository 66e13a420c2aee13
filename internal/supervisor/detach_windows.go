//go:build windows

package supervisor

import "syscall"

// detachedProcAttr starts the child in a new process group so it survives
// the CLI exiting and console ctrl events do not propagate to it.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
)

// execLauncher starts the server binary detached from the CLI process so it
// survives our exit.
type execLauncher struct{}

// NewExecLauncher returns the Launcher backed by os/exec.
func NewExecLauncher() Launcher {
	return execLauncher{}
}

func (execLauncher) Launch(_ context.Context, path string) error {
	// No CommandContext: the server must outlive this process.
	cmd := exec.Command(path)
	// Stdout/Stderr left nil so exec connects them to the null device.
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: launch %s: %w", path, err)
	}

	// Reap the child if it exits while we are still alive; otherwise the
	// handle would leak a zombie until our own exit.
	go func() { _ = cmd.Wait() }()
	return nil
}

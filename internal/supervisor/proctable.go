package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// osProcessTable scans the real OS process table.
type osProcessTable struct{}

// NewOSProcessTable returns the ProcessTable backed by the host's process
// list.
func NewOSProcessTable() ProcessTable {
	return osProcessTable{}
}

func (osProcessTable) FindByName(ctx context.Context, name string) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("supervisor: list processes: %w", err)
	}
	var matches []Process
	for _, p := range procs {
		// Processes can vanish mid-scan; skip the ones we can no
		// longer stat.
		n, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if n == name {
			matches = append(matches, &osProcess{proc: p})
		}
	}
	return matches, nil
}

// osProcess wraps a gopsutil process handle. The managed server is not our
// child, so Wait polls liveness instead of reaping.
type osProcess struct {
	proc *process.Process
}

func (o *osProcess) Pid() int32 { return o.proc.Pid }

func (o *osProcess) Terminate() error {
	if err := o.proc.Terminate(); err != nil {
		return fmt.Errorf("supervisor: terminate pid %d: %w", o.proc.Pid, err)
	}
	return nil
}

func (o *osProcess) Wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		running, err := o.proc.IsRunningWithContext(ctx)
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

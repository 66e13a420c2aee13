package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// State describes the last observed condition of the managed server process.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

const defaultPollInterval = 250 * time.Millisecond

// ProcessTable lists OS processes by executable name. Injectable so tests
// can supply canned process lists.
type ProcessTable interface {
	FindByName(ctx context.Context, name string) ([]Process, error)
}

// Process is a running OS process found in the table.
type Process interface {
	Pid() int32
	// Terminate sends a graceful termination signal.
	Terminate() error
	// Wait blocks until the process has exited or ctx is done.
	Wait(ctx context.Context) error
}

// Launcher starts the server executable as a detached background process
// with its output discarded.
type Launcher interface {
	Launch(ctx context.Context, path string) error
}

// Probe checks whether the REST endpoint answers. A connection failure means
// "not ready", never an error.
type Probe interface {
	Ready(ctx context.Context, baseURL string) bool
}

// Params configures a Handle.
type Params struct {
	ExecutablePath string
	ProcessName    string
	BaseURL        string

	Table    ProcessTable
	Launcher Launcher
	Probe    Probe

	PollInterval   time.Duration
	ProbeTimeout   time.Duration
	StartupTimeout time.Duration
	ShutdownSettle time.Duration

	Logger *slog.Logger
	Out    io.Writer // operator-facing messages

	// Exit is invoked when the launch itself reports the executable as
	// missing. Defaults to os.Exit; injectable for tests.
	Exit func(code int)
}

// Handle owns the lifecycle of the management server process. It is used
// from a single control goroutine; state is re-derived from the process
// table on every operation rather than trusted.
type Handle struct {
	exePath     string
	processName string
	baseURL     string

	table    ProcessTable
	launcher Launcher
	probe    Probe

	pollInterval   time.Duration
	probeTimeout   time.Duration
	startupTimeout time.Duration
	shutdownSettle time.Duration

	logger *slog.Logger
	out    io.Writer
	exit   func(code int)

	state State
}

// New builds a Handle and derives its initial state from the process table.
func New(ctx context.Context, p Params) (*Handle, error) {
	if p.ProcessName == "" {
		return nil, fmt.Errorf("supervisor: process name required")
	}
	if p.Table == nil {
		return nil, fmt.Errorf("supervisor: process table required")
	}
	if p.Launcher == nil {
		return nil, fmt.Errorf("supervisor: launcher required")
	}
	if p.Probe == nil {
		return nil, fmt.Errorf("supervisor: probe required")
	}
	if p.PollInterval <= 0 {
		p.PollInterval = defaultPollInterval
	}
	if p.ProbeTimeout <= 0 {
		p.ProbeTimeout = 5 * time.Second
	}
	if p.StartupTimeout <= 0 {
		p.StartupTimeout = 5 * time.Second
	}
	if p.ShutdownSettle <= 0 {
		p.ShutdownSettle = 3 * time.Second
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Out == nil {
		p.Out = os.Stdout
	}
	if p.Exit == nil {
		p.Exit = os.Exit
	}

	h := &Handle{
		exePath:        p.ExecutablePath,
		processName:    p.ProcessName,
		baseURL:        p.BaseURL,
		table:          p.Table,
		launcher:       p.Launcher,
		probe:          p.Probe,
		pollInterval:   p.PollInterval,
		probeTimeout:   p.ProbeTimeout,
		startupTimeout: p.StartupTimeout,
		shutdownSettle: p.ShutdownSettle,
		logger:         p.Logger,
		out:            p.Out,
		exit:           p.Exit,
		state:          StateStopped,
	}
	h.IsRunning(ctx, false)
	return h, nil
}

// State reports the last derived state.
func (h *Handle) State() State { return h.state }

// IsRunning re-derives the server state. The process table is checked first;
// when checkRest is set and no process matches, a short HTTP probe against
// the base URL counts as running too. Unreachable endpoints are "not
// running", not errors.
func (h *Handle) IsRunning(ctx context.Context, checkRest bool) bool {
	procs, err := h.table.FindByName(ctx, h.processName)
	if err != nil {
		h.logger.Warn("process table scan failed", "process", h.processName, "error", err)
	}
	if len(procs) > 0 {
		h.state = StateRunning
		return true
	}

	if checkRest {
		probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
		defer cancel()
		if h.probe.Ready(probeCtx, h.baseURL) {
			h.state = StateRunning
			return true
		}
	}

	h.state = StateStopped
	return false
}

// Start launches the server and blocks until it answers or the startup
// timeout elapses. Calling Start while the server is already running is a
// no-op returning true.
//
// A missing executable is handled at two severities: the pre-check fails
// soft (message, false), while an ENOENT reported by the launch itself goes
// through the exit func with status 1.
func (h *Handle) Start(ctx context.Context) bool {
	if h.state == StateRunning {
		fmt.Fprintln(h.out, "Management server is already running.")
		return true
	}

	if _, err := os.Stat(h.exePath); err != nil {
		fmt.Fprintf(h.out, "Error: server executable not found: %s\n", h.exePath)
		return false
	}

	h.logger.Info("starting management server", "executable", h.exePath)
	if err := h.launcher.Launch(ctx, h.exePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(h.out, "Error: server executable not found: %s\n", h.exePath)
			h.exit(1)
			return false
		}
		fmt.Fprintf(h.out, "Error starting server: %v\n", err)
		return false
	}

	if h.waitFor(ctx, h.startupTimeout, func(c context.Context) bool {
		return h.IsRunning(c, true)
	}) {
		fmt.Fprintln(h.out, "Management server started successfully.")
		return true
	}

	fmt.Fprintln(h.out, "Failed to start management server.")
	return false
}

// Stop terminates the server process and blocks until it has left the
// process table or the settle timeout elapses. Calling Stop while the server
// is already stopped is a no-op returning true.
func (h *Handle) Stop(ctx context.Context) bool {
	if h.state == StateStopped {
		fmt.Fprintln(h.out, "Management server is not running.")
		return true
	}

	procs, err := h.table.FindByName(ctx, h.processName)
	if err != nil {
		fmt.Fprintf(h.out, "Error scanning for %s: %v\n", h.processName, err)
		return false
	}
	if len(procs) == 0 {
		// The handle thought the server was up but the table disagrees:
		// report the stale view instead of claiming a clean stop.
		fmt.Fprintf(h.out, "No running process found for %s.\n", h.processName)
		return false
	}

	for _, proc := range procs {
		fmt.Fprintf(h.out, "Terminating process %s (PID %d)...\n", h.processName, proc.Pid())
		if err := proc.Terminate(); err != nil {
			fmt.Fprintf(h.out, "Error stopping server: %v\n", err)
			return false
		}
		waitCtx, cancel := context.WithTimeout(ctx, h.shutdownSettle)
		err := proc.Wait(waitCtx)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(h.out, "Error stopping server: %v\n", err)
			return false
		}
	}

	if h.waitFor(ctx, h.shutdownSettle, func(c context.Context) bool {
		return !h.IsRunning(c, false)
	}) {
		fmt.Fprintln(h.out, "Management server stopped successfully.")
		return true
	}

	fmt.Fprintln(h.out, "Failed to stop management server.")
	return false
}

// waitFor polls cond every poll interval until it holds, the timeout
// elapses, or ctx is cancelled. The first check happens immediately so fakes
// with instant readiness do not pay a poll cycle.
func (h *Handle) waitFor(ctx context.Context, timeout time.Duration, cond func(context.Context) bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond(ctx) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.pollInterval):
		}
	}
}

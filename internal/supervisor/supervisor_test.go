package supervisor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeProcess is a canned process table entry.
type fakeProcess struct {
	pid        int32
	terminated bool
	termErr    error
}

func (f *fakeProcess) Pid() int32 { return f.pid }

func (f *fakeProcess) Terminate() error {
	if f.termErr != nil {
		return f.termErr
	}
	f.terminated = true
	return nil
}

func (f *fakeProcess) Wait(ctx context.Context) error { return nil }

// fakeTable returns a scripted sequence of scans; the last entry repeats.
type fakeTable struct {
	scans [][]Process
	calls int
}

func (f *fakeTable) FindByName(ctx context.Context, name string) ([]Process, error) {
	idx := f.calls
	f.calls++
	if len(f.scans) == 0 {
		return nil, nil
	}
	if idx >= len(f.scans) {
		idx = len(f.scans) - 1
	}
	return f.scans[idx], nil
}

type fakeLauncher struct {
	calls int
	err   error
}

func (f *fakeLauncher) Launch(ctx context.Context, path string) error {
	f.calls++
	return f.err
}

type fakeProbe struct {
	ready bool
	calls int
}

func (f *fakeProbe) Ready(ctx context.Context, baseURL string) bool {
	f.calls++
	return f.ready
}

func testParams(t *testing.T, table ProcessTable, launcher Launcher, probe Probe) Params {
	t.Helper()
	return Params{
		ExecutablePath: existingExecutable(t),
		ProcessName:    "vmrest.exe",
		BaseURL:        "http://127.0.0.1:8697",
		Table:          table,
		Launcher:       launcher,
		Probe:          probe,
		PollInterval:   time.Millisecond,
		ProbeTimeout:   50 * time.Millisecond,
		StartupTimeout: 100 * time.Millisecond,
		ShutdownSettle: 100 * time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:            new(bytes.Buffer),
		Exit:           func(int) { t.Fatalf("unexpected exit") },
	}
}

func existingExecutable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmrest")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake executable: %v", err)
	}
	return path
}

func TestIsRunningFindsProcess(t *testing.T) {
	table := &fakeTable{scans: [][]Process{{&fakeProcess{pid: 1234}}}}
	h, err := New(context.Background(), testParams(t, table, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if !h.IsRunning(context.Background(), false) {
		t.Fatalf("expected running with matching process in table")
	}
	if h.State() != StateRunning {
		t.Fatalf("expected state running, got %s", h.State())
	}
}

func TestIsRunningEmptyTable(t *testing.T) {
	probe := &fakeProbe{}
	h, err := New(context.Background(), testParams(t, &fakeTable{}, &fakeLauncher{}, probe))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if h.IsRunning(context.Background(), false) {
		t.Fatalf("expected not running with empty table")
	}
	if h.State() != StateStopped {
		t.Fatalf("expected state stopped, got %s", h.State())
	}
	if probe.calls != 0 {
		t.Fatalf("probe must not run when checkRest is false")
	}
}

func TestIsRunningRESTFallback(t *testing.T) {
	probe := &fakeProbe{ready: true}
	h, err := New(context.Background(), testParams(t, &fakeTable{}, &fakeLauncher{}, probe))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if !h.IsRunning(context.Background(), true) {
		t.Fatalf("expected running via REST probe with empty table")
	}
	if h.State() != StateRunning {
		t.Fatalf("expected state running, got %s", h.State())
	}
	if probe.calls == 0 {
		t.Fatalf("probe not invoked")
	}
}

func TestStartIdempotentWhenRunning(t *testing.T) {
	table := &fakeTable{scans: [][]Process{{&fakeProcess{pid: 1234}}}}
	launcher := &fakeLauncher{}
	h, err := New(context.Background(), testParams(t, table, launcher, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if !h.Start(context.Background()) {
		t.Fatalf("start on a running server must return true")
	}
	if launcher.calls != 0 {
		t.Fatalf("no launch expected, got %d", launcher.calls)
	}
}

func TestStartMissingExecutablePreCheck(t *testing.T) {
	launcher := &fakeLauncher{}
	params := testParams(t, &fakeTable{}, launcher, &fakeProbe{})
	params.ExecutablePath = filepath.Join(t.TempDir(), "missing")
	h, err := New(context.Background(), params)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if h.Start(context.Background()) {
		t.Fatalf("start must fail when executable is absent")
	}
	if launcher.calls != 0 {
		t.Fatalf("launch must not happen on a failed pre-check")
	}
}

func TestStartLaunchesOnceAndPolls(t *testing.T) {
	// Empty table at first, then the probe answers after launch.
	table := &fakeTable{}
	launcher := &fakeLauncher{}
	probe := &fakeProbe{ready: true}
	h, err := New(context.Background(), testParams(t, table, launcher, probe))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if !h.Start(context.Background()) {
		t.Fatalf("expected start to succeed")
	}
	if launcher.calls != 1 {
		t.Fatalf("expected exactly one launch, got %d", launcher.calls)
	}
	if probe.calls != 1 {
		t.Fatalf("expected one readiness probe, got %d", probe.calls)
	}
	if h.State() != StateRunning {
		t.Fatalf("expected state running after start")
	}
}

func TestStartFailsWhenNeverReady(t *testing.T) {
	h, err := New(context.Background(), testParams(t, &fakeTable{}, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if h.Start(context.Background()) {
		t.Fatalf("expected start to time out")
	}
	if h.State() != StateStopped {
		t.Fatalf("expected state stopped after failed start")
	}
}

func TestStartLaunchENOENTCallsExit(t *testing.T) {
	launcher := &fakeLauncher{err: os.ErrNotExist}
	params := testParams(t, &fakeTable{}, launcher, &fakeProbe{})
	var exitCode int
	exited := false
	params.Exit = func(code int) {
		exited = true
		exitCode = code
	}
	h, err := New(context.Background(), params)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if h.Start(context.Background()) {
		t.Fatalf("expected start to fail")
	}
	if !exited {
		t.Fatalf("expected the exit func to run for a launch-time ENOENT")
	}
	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
}

func TestStartOtherLaunchErrorIsSoft(t *testing.T) {
	launcher := &fakeLauncher{err: os.ErrPermission}
	params := testParams(t, &fakeTable{}, launcher, &fakeProbe{})
	exited := false
	params.Exit = func(int) { exited = true }
	h, err := New(context.Background(), params)
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if h.Start(context.Background()) {
		t.Fatalf("expected start to fail")
	}
	if exited {
		t.Fatalf("non-ENOENT launch errors must not exit the program")
	}
}

func TestStopIdempotentWhenStopped(t *testing.T) {
	table := &fakeTable{}
	h, err := New(context.Background(), testParams(t, table, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	scansBefore := table.calls
	if !h.Stop(context.Background()) {
		t.Fatalf("stop on a stopped server must return true")
	}
	if table.calls != scansBefore {
		t.Fatalf("no table scan expected on the idempotent stop path")
	}
}

func TestStopTerminatesProcess(t *testing.T) {
	proc := &fakeProcess{pid: 4321}
	// Running at construction and at the stop scan, gone afterwards.
	table := &fakeTable{scans: [][]Process{{proc}, {proc}, nil}}
	h, err := New(context.Background(), testParams(t, table, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if !h.Stop(context.Background()) {
		t.Fatalf("expected stop to succeed")
	}
	if !proc.terminated {
		t.Fatalf("expected the process to be terminated")
	}
	if h.State() != StateStopped {
		t.Fatalf("expected state stopped after stop")
	}
}

func TestStopProcessVanished(t *testing.T) {
	// Running at construction, but gone by the time stop scans the table.
	table := &fakeTable{scans: [][]Process{{&fakeProcess{pid: 99}}, nil}}
	h, err := New(context.Background(), testParams(t, table, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if h.Stop(context.Background()) {
		t.Fatalf("stop must report false when the tracked process cannot be found")
	}
}

func TestStopTerminateError(t *testing.T) {
	proc := &fakeProcess{pid: 7, termErr: os.ErrPermission}
	table := &fakeTable{scans: [][]Process{{proc}}}
	h, err := New(context.Background(), testParams(t, table, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}

	if h.Stop(context.Background()) {
		t.Fatalf("expected stop to fail when terminate errors")
	}
}

func TestNewDerivesInitialState(t *testing.T) {
	table := &fakeTable{scans: [][]Process{{&fakeProcess{pid: 1}}}}
	h, err := New(context.Background(), testParams(t, table, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	if h.State() != StateRunning {
		t.Fatalf("expected initial state running, got %s", h.State())
	}

	h2, err := New(context.Background(), testParams(t, &fakeTable{}, &fakeLauncher{}, &fakeProbe{}))
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	if h2.State() != StateStopped {
		t.Fatalf("expected initial state stopped, got %s", h2.State())
	}
}

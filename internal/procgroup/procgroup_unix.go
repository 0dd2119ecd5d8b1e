//go:build !windows

// Package procgroup is the narrow OS-facing layer for skill processes. Every
// skill runs in its own process group so teardown can signal the whole tree,
// not just the direct child.
package procgroup

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// Spawn starts cmd in a new process group and returns its pgid (== pid).
func Spawn(cmd *exec.Cmd) (int, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}

// Alive reports whether the process group leader still exists. Signal 0
// probes without delivering anything. Non-positive pids address our own
// process group or all processes; those are never a skill.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// SignalGroup sends sig to every process in the group.
func SignalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("procgroup: invalid pid %d", pid)
	}
	return syscall.Kill(-pid, sig)
}

// TerminateGroup asks the group to exit with SIGTERM, waits out the grace
// period, then SIGKILLs whatever is left.
func TerminateGroup(pid int, grace time.Duration) {
	if pid <= 0 || !Alive(pid) {
		return
	}
	_ = SignalGroup(pid, syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = SignalGroup(pid, syscall.SIGKILL)
}

// Package spec describes one process run and its resource limits.
package spec

import (
	"fmt"
	"time"
)

const (
	arbiterTimeFactor  = 2
	arbiterTimeSlack   = 5 * time.Second
	arbiterMemorySlack = 256
	deadlockTimeFactor = 3
	deadlockTimeSlack  = time.Second
	noLimitPlaceholder = "None"
	limitPattern       = "%0.1f"
)

// Role identifies which side of a run a process plays.
type Role string

const (
	RoleSolution Role = "solution"
	RoleArbiter  Role = "arbiter"
)

// ResourceLimit describes the limits enforced by the monitor.
// A zero value means "no limit".
type ResourceLimit struct {
	// CPUTime limits user CPU time.
	CPUTime time.Duration `yaml:"cpuTime" json:"cpuTime"`
	// MemoryMB limits resident memory in megabytes.
	MemoryMB float64 `yaml:"memoryMB" json:"memoryMB"`
	// PIDs is only applied when cgroup placement is enabled.
	PIDs int64 `yaml:"pids" json:"pids,omitempty"`
}

// HasTime reports whether a CPU time limit is set.
func (l ResourceLimit) HasTime() bool { return l.CPUTime > 0 }

// HasMemory reports whether a memory limit is set.
func (l ResourceLimit) HasMemory() bool { return l.MemoryMB > 0 }

// WallLimit is the wall-clock budget after which a process is declared deadlocked.
func (l ResourceLimit) WallLimit() time.Duration {
	if !l.HasTime() {
		return 0
	}
	return deadlockTimeFactor*l.CPUTime + deadlockTimeSlack
}

// ForArbiter derives the arbiter's headroom from the solution limits.
func (l ResourceLimit) ForArbiter() ResourceLimit {
	out := ResourceLimit{PIDs: l.PIDs}
	if l.HasTime() {
		out.CPUTime = arbiterTimeFactor*l.CPUTime + arbiterTimeSlack
	}
	if l.HasMemory() {
		out.MemoryMB = l.MemoryMB + arbiterMemorySlack
	}
	return out
}

// Validate rejects negative limits.
func (l ResourceLimit) Validate() error {
	if l.CPUTime < 0 {
		return fmt.Errorf("time limit must not be negative")
	}
	if l.MemoryMB < 0 {
		return fmt.Errorf("memory limit must not be negative")
	}
	return nil
}

// String renders the limits the way start lines show them.
func (l ResourceLimit) String() string {
	tl, ml := noLimitPlaceholder, noLimitPlaceholder
	if l.HasTime() {
		tl = fmt.Sprintf(limitPattern, l.CPUTime.Seconds())
	}
	if l.HasMemory() {
		ml = fmt.Sprintf(limitPattern, l.MemoryMB)
	}
	return fmt.Sprintf("TL = %s, ML = %s", tl, ml)
}

// RunSpec describes one test run.
// Arbiter is set for interactive runs only.
type RunSpec struct {
	// TestID labels logs and cgroup directories.
	TestID  string
	WorkDir string
	Cmd     []string
	Env     []string
	Limits  ResourceLimit

	// Batch-mode streams. Empty paths mean the null device.
	StdinPath  string
	StdoutPath string
	StderrPath string
	// InheritStdio connects a batch run to the caller's standard streams
	// instead of the paths above.
	InheritStdio bool

	Arbiter *ArbiterSpec
}

// ArbiterSpec describes the companion process of an interactive run.
type ArbiterSpec struct {
	Cmd []string
	Env []string
	// BaseLimits replaces the solution limits as the base of the arbiter's
	// headroom. Used when the solution's own limits were adjusted for its runtime.
	BaseLimits *ResourceLimit
	// StderrPath captures the arbiter's diagnostics. Empty means discard.
	StderrPath string
}

// Interactive reports whether the run has an arbiter.
func (s RunSpec) Interactive() bool {
	return s.Arbiter != nil
}

package engine

import (
	"time"

	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/sandbox/spec"
)

const bytesPerMB = 1024 * 1024

// exitStatus is what the waiter learns when a process is reaped.
type exitStatus struct {
	Code     int
	UserTime time.Duration
	// PeakRSS is the kernel's high-water mark in bytes, zero when unknown.
	PeakRSS uint64
}

// process is the handle the monitor drives. Kill must be safe to call
// repeatedly and after the process has exited.
type process interface {
	Pid() int
	Wait() exitStatus
	Kill() error
}

// slot is the monitor-owned record of one launched process.
type slot struct {
	index  int
	role   spec.Role
	cmd    []string
	limits spec.ResourceLimit
	proc   process

	exited   bool
	userTime time.Duration
	peakRSS  uint64
	verdict  result.Verdict
	exitCode int
}

func newSlot(index int, role spec.Role, cmd []string, limits spec.ResourceLimit, proc process) *slot {
	return &slot{index: index, role: role, cmd: cmd, limits: limits, proc: proc}
}

// running reports whether the slot still needs watching.
func (s *slot) running() bool {
	return !s.exited && s.verdict == result.VerdictNone
}

func (s *slot) observe(userTime time.Duration, rss uint64) {
	if userTime > s.userTime {
		s.userTime = userTime
	}
	if rss > s.peakRSS {
		s.peakRSS = rss
	}
}

func (s *slot) peakMB() float64 {
	return float64(s.peakRSS) / bytesPerMB
}

func (s *slot) exceedsTime() bool {
	return s.limits.HasTime() && s.userTime > s.limits.CPUTime
}

func (s *slot) exceedsMemory() bool {
	return s.limits.HasMemory() && s.peakMB() > s.limits.MemoryMB
}

func (s *slot) result() result.RunResult {
	return result.RunResult{
		Verdict:      s.verdict,
		ExitCode:     s.exitCode,
		Exited:       s.exited,
		CPUTime:      s.userTime.Seconds(),
		PeakMemoryMB: s.peakMB(),
	}
}

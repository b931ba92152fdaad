package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/sandbox/spec"
)

type fakeProcess struct {
	pid   int
	exit  chan exitStatus
	once  sync.Once
	mu    sync.Mutex
	kills int
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, exit: make(chan exitStatus, 1)}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() exitStatus { return <-p.exit }

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.exitWith(exitStatus{Code: -9})
	return nil
}

func (p *fakeProcess) exitWith(st exitStatus) {
	p.once.Do(func() { p.exit <- st })
}

func (p *fakeProcess) killCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

type fakeSampler struct {
	mu    sync.Mutex
	fn    map[int]func() (Sample, error)
	calls map[int]int
}

func newFakeSampler() *fakeSampler {
	return &fakeSampler{fn: make(map[int]func() (Sample, error)), calls: make(map[int]int)}
}

func (s *fakeSampler) set(pid int, fn func() (Sample, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn[pid] = fn
}

func (s *fakeSampler) Sample(ctx context.Context, pid int) (Sample, error) {
	s.mu.Lock()
	fn := s.fn[pid]
	s.calls[pid]++
	s.mu.Unlock()
	if fn == nil {
		return Sample{}, nil
	}
	return fn()
}

func (s *fakeSampler) Forget(pid int) {}

// steppingClock advances by step on every reading.
func steppingClock(step time.Duration) func() time.Time {
	base := time.Unix(1700000000, 0)
	n := 0
	return func() time.Time {
		t := base.Add(time.Duration(n) * step)
		n++
		return t
	}
}

func testMonitor(sampler Sampler, guard time.Duration, clock func() time.Time) *monitor {
	return &monitor{
		poll:    time.Millisecond,
		guard:   guard,
		sampler: sampler,
		now:     clock,
		quiet:   true,
	}
}

func TestMonitorResourceVerdicts(t *testing.T) {
	cases := []struct {
		name   string
		limits spec.ResourceLimit
		sample Sample
		step   time.Duration
		want   result.Verdict
	}{
		{
			name:   "time_limit",
			limits: spec.ResourceLimit{CPUTime: time.Second, MemoryMB: 256},
			sample: Sample{UserTime: 1500 * time.Millisecond},
			want:   result.VerdictTLE,
		},
		{
			name:   "memory_limit",
			limits: spec.ResourceLimit{CPUTime: time.Second, MemoryMB: 64},
			sample: Sample{RSSBytes: 65 * bytesPerMB},
			want:   result.VerdictMLE,
		},
		{
			name:   "time_checked_before_memory",
			limits: spec.ResourceLimit{CPUTime: time.Second, MemoryMB: 64},
			sample: Sample{UserTime: 2 * time.Second, RSSBytes: 128 * bytesPerMB},
			want:   result.VerdictTLE,
		},
		{
			name:   "wall_clock",
			limits: spec.ResourceLimit{CPUTime: time.Second},
			step:   time.Second,
			want:   result.VerdictDeadlock,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := newFakeProcess(10)
			sampler := newFakeSampler()
			smp := tc.sample
			sampler.set(10, func() (Sample, error) { return smp, nil })
			m := testMonitor(sampler, 0, steppingClock(tc.step))

			res, err := m.watch(context.Background(), []*slot{newSlot(0, spec.RoleSolution, []string{"sol"}, tc.limits, proc)})
			if err != nil {
				t.Fatalf("watch failed: %v", err)
			}
			if res[0].Verdict != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, res[0].Verdict)
			}
			if !res[0].Exited || res[0].ExitCode != -9 {
				t.Fatalf("expected killed process to be reaped, got %+v", res[0])
			}
			if proc.killCount() != 1 {
				t.Fatalf("expected one kill, got %d", proc.killCount())
			}
		})
	}
}

func TestMonitorSelfExit(t *testing.T) {
	cases := []struct {
		name   string
		status exitStatus
		limits spec.ResourceLimit
		want   result.Verdict
	}{
		{name: "clean", status: exitStatus{Code: 0}, want: result.VerdictAC},
		{name: "nonzero", status: exitStatus{Code: 3}, want: result.VerdictRE},
		{name: "signal", status: exitStatus{Code: -11}, want: result.VerdictRE},
		{
			name:   "final_accounting_over_time",
			status: exitStatus{Code: 0, UserTime: 1200 * time.Millisecond},
			limits: spec.ResourceLimit{CPUTime: time.Second},
			want:   result.VerdictTLE,
		},
		{
			name:   "final_accounting_over_memory",
			status: exitStatus{Code: 0, PeakRSS: 300 * bytesPerMB},
			limits: spec.ResourceLimit{MemoryMB: 256},
			want:   result.VerdictMLE,
		},
		{
			name:   "no_limits",
			status: exitStatus{Code: 0, UserTime: time.Hour, PeakRSS: 1 << 40},
			want:   result.VerdictAC,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := newFakeProcess(11)
			proc.exitWith(tc.status)
			m := testMonitor(newFakeSampler(), 0, steppingClock(0))

			res, err := m.watch(context.Background(), []*slot{newSlot(0, spec.RoleSolution, nil, tc.limits, proc)})
			if err != nil {
				t.Fatalf("watch failed: %v", err)
			}
			if res[0].Verdict != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, res[0].Verdict)
			}
			if res[0].ExitCode != tc.status.Code {
				t.Fatalf("expected exit code %d, got %d", tc.status.Code, res[0].ExitCode)
			}
			if proc.killCount() != 0 {
				t.Fatal("self-exited process must not be killed")
			}
		})
	}
}

func TestMonitorNeverFiresWithinLimits(t *testing.T) {
	proc := newFakeProcess(12)
	sampler := newFakeSampler()
	var mu sync.Mutex
	calls := 0
	sampler.set(12, func() (Sample, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 20 {
			proc.exitWith(exitStatus{Code: 0, UserTime: 900 * time.Millisecond})
		}
		return Sample{UserTime: 900 * time.Millisecond, RSSBytes: 200 * bytesPerMB}, nil
	})
	m := testMonitor(sampler, 0, steppingClock(10*time.Millisecond))
	limits := spec.ResourceLimit{CPUTime: time.Second, MemoryMB: 256}

	res, err := m.watch(context.Background(), []*slot{newSlot(0, spec.RoleSolution, nil, limits, proc)})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if res[0].Verdict != result.VerdictAC {
		t.Fatalf("expected A, got %s", res[0].Verdict)
	}
	if res[0].PeakMemoryMB != 200 || res[0].CPUTime != 0.9 {
		t.Fatalf("unexpected usage %+v", res[0])
	}
}

func TestMonitorIgnoresUnreadableStats(t *testing.T) {
	proc := newFakeProcess(13)
	sampler := newFakeSampler()
	n := 0
	sampler.set(13, func() (Sample, error) {
		n++
		if n == 5 {
			proc.exitWith(exitStatus{Code: 0})
		}
		if n%2 == 0 {
			return Sample{}, errAccessDenied
		}
		return Sample{}, errProcessGone
	})
	m := testMonitor(sampler, 0, steppingClock(0))
	res, err := m.watch(context.Background(), []*slot{newSlot(0, spec.RoleSolution, nil, spec.ResourceLimit{CPUTime: time.Second}, proc)})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if res[0].Verdict != result.VerdictAC {
		t.Fatalf("expected A, got %s", res[0].Verdict)
	}
}

func TestMonitorKillsStuckPeer(t *testing.T) {
	arbiter := newFakeProcess(20)
	solution := newFakeProcess(21)
	arbiter.exitWith(exitStatus{Code: 0})
	sampler := newFakeSampler()
	m := testMonitor(sampler, 100*time.Millisecond, steppingClock(50*time.Millisecond))

	res, err := m.watch(context.Background(), []*slot{
		newSlot(0, spec.RoleArbiter, nil, spec.ResourceLimit{}, arbiter),
		newSlot(1, spec.RoleSolution, nil, spec.ResourceLimit{}, solution),
	})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if res[0].Verdict != result.VerdictAC {
		t.Fatalf("expected arbiter A, got %s", res[0].Verdict)
	}
	if res[1].Verdict != result.VerdictKilled {
		t.Fatalf("expected solution K, got %s", res[1].Verdict)
	}
}

func TestMonitorSparesWorkingPeer(t *testing.T) {
	arbiter := newFakeProcess(30)
	solution := newFakeProcess(31)
	arbiter.exitWith(exitStatus{Code: 0})
	sampler := newFakeSampler()
	busy := time.Duration(0)
	n := 0
	sampler.set(31, func() (Sample, error) {
		n++
		busy += 50 * time.Millisecond
		if n == 30 {
			solution.exitWith(exitStatus{Code: 0})
		}
		return Sample{UserTime: busy}, nil
	})
	m := testMonitor(sampler, 100*time.Millisecond, steppingClock(50*time.Millisecond))

	res, err := m.watch(context.Background(), []*slot{
		newSlot(0, spec.RoleArbiter, nil, spec.ResourceLimit{}, arbiter),
		newSlot(1, spec.RoleSolution, nil, spec.ResourceLimit{}, solution),
	})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if res[1].Verdict != result.VerdictAC {
		t.Fatalf("expected busy solution to finish with A, got %s", res[1].Verdict)
	}
	if solution.killCount() != 0 {
		t.Fatal("busy solution must not be killed")
	}
}

func TestMonitorDeadpipeDisabledForBatch(t *testing.T) {
	proc := newFakeProcess(40)
	sampler := newFakeSampler()
	n := 0
	sampler.set(40, func() (Sample, error) {
		n++
		if n == 10 {
			proc.exitWith(exitStatus{Code: 0})
		}
		return Sample{}, nil
	})
	m := testMonitor(sampler, 100*time.Millisecond, steppingClock(time.Second))
	res, err := m.watch(context.Background(), []*slot{newSlot(0, spec.RoleSolution, nil, spec.ResourceLimit{}, proc)})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if res[0].Verdict != result.VerdictAC {
		t.Fatalf("expected A, got %s", res[0].Verdict)
	}
}

func TestMonitorCancel(t *testing.T) {
	proc := newFakeProcess(50)
	ctx, cancel := context.WithCancel(context.Background())
	sampler := newFakeSampler()
	n := 0
	sampler.set(50, func() (Sample, error) {
		n++
		if n == 3 {
			cancel()
		}
		return Sample{}, nil
	})
	m := testMonitor(sampler, 0, steppingClock(0))
	_, err := m.watch(ctx, []*slot{newSlot(0, spec.RoleSolution, nil, spec.ResourceLimit{}, proc)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if proc.killCount() == 0 {
		t.Fatal("expected process to be killed on cancel")
	}
}

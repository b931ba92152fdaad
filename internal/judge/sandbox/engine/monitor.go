package engine

import (
	"context"
	"errors"
	"time"

	"olymp/internal/judge/sandbox/result"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

// monitor polls a set of running processes until all of them are gone.
// A single goroutine owns the slots; waiters only report exits.
type monitor struct {
	poll    time.Duration
	guard   time.Duration
	sampler Sampler
	now     func() time.Time
	quiet   bool

	deniedLogged bool
}

type exitEvent struct {
	index  int
	status exitStatus
}

// deadpipeState remembers idle times at the moment the alive count last dropped.
type deadpipeState struct {
	alive    int
	baseline []time.Duration
}

func newMonitor(cfg Config, guard time.Duration) *monitor {
	return &monitor{
		poll:    cfg.PollInterval,
		guard:   guard,
		sampler: cfg.Sampler,
		now:     time.Now,
		quiet:   cfg.Quiet,
	}
}

// watch blocks until every slot has exited and returns results in slot order.
// When ctx is cancelled the survivors are killed, reaped and ctx.Err is returned.
func (m *monitor) watch(ctx context.Context, slots []*slot) ([]result.RunResult, error) {
	start := m.now()
	exits := make(chan exitEvent, len(slots))
	for i, s := range slots {
		s.index = i
		go func(i int, p process) {
			exits <- exitEvent{index: i, status: p.Wait()}
		}(i, s.proc)
	}

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	dp := deadpipeState{alive: len(slots)}
	for countAlive(slots) > 0 {
		select {
		case ev := <-exits:
			m.finish(ctx, slots[ev.index], ev.status)
		case <-ticker.C:
			m.tick(ctx, slots, m.now().Sub(start), &dp)
		case <-ctx.Done():
			m.abort(ctx, slots, exits)
			return nil, ctx.Err()
		}
	}

	out := make([]result.RunResult, len(slots))
	for i, s := range slots {
		out[i] = s.result()
	}
	return out, nil
}

func (m *monitor) tick(ctx context.Context, slots []*slot, elapsed time.Duration, dp *deadpipeState) {
	for _, s := range slots {
		if !s.running() {
			continue
		}
		m.sample(ctx, s)
		switch {
		case s.exceedsTime():
			m.terminate(ctx, s, result.VerdictTLE)
		case s.exceedsMemory():
			m.terminate(ctx, s, result.VerdictMLE)
		case s.limits.HasTime() && elapsed > s.limits.WallLimit():
			m.terminate(ctx, s, result.VerdictDeadlock)
		}
	}
	m.checkDeadpipe(ctx, slots, elapsed, dp)
}

// checkDeadpipe kills the survivors of an interactive run once none of them
// has burned CPU for a whole guard interval since their peer went away.
func (m *monitor) checkDeadpipe(ctx context.Context, slots []*slot, elapsed time.Duration, dp *deadpipeState) {
	if m.guard <= 0 || len(slots) < 2 {
		return
	}
	alive := countAlive(slots)
	if alive == 0 || alive == len(slots) {
		return
	}
	idle := make([]time.Duration, len(slots))
	for i, s := range slots {
		idle[i] = elapsed - s.userTime
	}
	if dp.baseline == nil || alive < dp.alive {
		dp.alive = alive
		dp.baseline = idle
	}
	for i, s := range slots {
		if s.running() && idle[i]-dp.baseline[i] < m.guard {
			return
		}
	}
	for _, s := range slots {
		if s.running() {
			m.terminate(ctx, s, result.VerdictKilled)
		}
	}
}

func (m *monitor) sample(ctx context.Context, s *slot) {
	smp, err := m.sampler.Sample(ctx, s.proc.Pid())
	switch {
	case err == nil:
		s.observe(smp.UserTime, smp.RSSBytes)
	case errors.Is(err, errProcessGone):
		// the exit event is on its way
	case errors.Is(err, errAccessDenied):
		if !m.deniedLogged {
			m.deniedLogged = true
			logger.Warn(ctx, "process statistics are not readable", zap.Int("pid", s.proc.Pid()))
		}
	default:
		logger.Debug(ctx, "sample process failed", zap.Int("pid", s.proc.Pid()), zap.Error(err))
	}
}

// terminate freezes the verdict and kills the process. Later verdicts never overwrite it.
func (m *monitor) terminate(ctx context.Context, s *slot, v result.Verdict) {
	if s.verdict != result.VerdictNone {
		return
	}
	s.verdict = v
	if err := s.proc.Kill(); err != nil {
		logger.Warn(ctx, "kill process failed", zap.Int("pid", s.proc.Pid()), zap.Error(err))
	}
	if !m.quiet {
		logger.Info(ctx, "process terminated",
			zap.Int("slot", s.index),
			zap.String("role", string(s.role)),
			zap.String("verdict", v.FullName()),
		)
	}
}

// finish records the exit. A process that left on its own is checked once
// more against the kernel's final accounting before it gets A or R.
func (m *monitor) finish(ctx context.Context, s *slot, st exitStatus) {
	if s.exited {
		return
	}
	s.exited = true
	s.exitCode = st.Code
	s.observe(st.UserTime, st.PeakRSS)
	m.sampler.Forget(s.proc.Pid())

	if s.verdict == result.VerdictNone {
		switch {
		case s.exceedsTime():
			s.verdict = result.VerdictTLE
		case s.exceedsMemory():
			s.verdict = result.VerdictMLE
		case st.Code == 0:
			s.verdict = result.VerdictAC
		default:
			s.verdict = result.VerdictRE
		}
	}
	if !m.quiet {
		logger.Info(ctx, "process finished",
			zap.Int("slot", s.index),
			zap.String("role", string(s.role)),
			zap.Int("exitCode", s.exitCode),
			zap.Float64("memoryMB", s.peakMB()),
			zap.Float64("time", s.userTime.Seconds()),
		)
	}
}

func (m *monitor) abort(ctx context.Context, slots []*slot, exits <-chan exitEvent) {
	for _, s := range slots {
		if !s.exited {
			_ = s.proc.Kill()
		}
	}
	for countAlive(slots) > 0 {
		ev := <-exits
		s := slots[ev.index]
		s.exited = true
		s.exitCode = ev.status.Code
		m.sampler.Forget(s.proc.Pid())
	}
	logger.Warn(ctx, "run cancelled, processes killed", zap.Error(ctx.Err()))
}

func countAlive(slots []*slot) int {
	n := 0
	for _, s := range slots {
		if !s.exited {
			n++
		}
	}
	return n
}

package engine

import "time"

const (
	defaultPollInterval  = 10 * time.Millisecond
	defaultDeadpipeGuard = 100 * time.Millisecond
)

// Config controls how runs are launched and watched.
type Config struct {
	// PollInterval is the period between resource samples.
	PollInterval time.Duration
	// DeadpipeGuard is the idle-time growth after which a lone interactive
	// process is considered stuck. Negative disables the heuristic.
	DeadpipeGuard time.Duration
	// Quiet suppresses the per-process start and finish lines.
	Quiet bool

	EnableCgroup bool
	CgroupRoot   string

	// Sampler overrides the process statistics source.
	Sampler Sampler
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.DeadpipeGuard == 0 {
		c.DeadpipeGuard = defaultDeadpipeGuard
	}
	if c.Sampler == nil {
		c.Sampler = NewProcessSampler()
	}
	return c
}

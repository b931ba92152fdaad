package engine

import (
	"context"

	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
)

// Engine launches a run and watches it to completion.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (Outcome, error)
}

// Outcome holds the raw monitor verdicts of one run.
type Outcome struct {
	Solution result.RunResult
	// Arbiter is set for interactive runs.
	Arbiter *result.RunResult
}

type processEngine struct {
	cfg      Config
	launcher *launcher
}

// NewEngine creates an engine that runs commands as local child processes.
func NewEngine(cfg Config) (Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.EnableCgroup && cfg.CgroupRoot == "" {
		return nil, appErr.ValidationError("cgroupRoot", "required when cgroup is enabled")
	}
	return &processEngine{cfg: cfg, launcher: &launcher{cfg: cfg}}, nil
}

func (e *processEngine) Run(ctx context.Context, runSpec spec.RunSpec) (Outcome, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return Outcome{}, err
	}
	slots, release, err := e.launcher.launch(ctx, runSpec)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	guard := e.cfg.DeadpipeGuard
	if !runSpec.Interactive() {
		guard = 0
	}
	results, err := newMonitor(e.cfg, guard).watch(ctx, slots)
	if err != nil {
		return Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "watch run failed")
	}

	if !runSpec.Interactive() {
		return Outcome{Solution: results[0]}, nil
	}
	arbiter := results[0]
	return Outcome{Solution: results[1], Arbiter: &arbiter}, nil
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return appErr.ValidationError("cmd", "required")
	}
	if runSpec.Arbiter != nil && (len(runSpec.Arbiter.Cmd) == 0 || runSpec.Arbiter.Cmd[0] == "") {
		return appErr.ValidationError("arbiter.cmd", "required")
	}
	if err := runSpec.Limits.Validate(); err != nil {
		return appErr.ValidationError("limits", err.Error())
	}
	return nil
}

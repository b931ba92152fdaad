package sandbox

import (
	"olymp/internal/judge/config"
	"olymp/internal/judge/sandbox/checker"
	"olymp/internal/judge/sandbox/engine"
	"olymp/internal/judge/sandbox/pipeline"
	"olymp/internal/judge/sandbox/profile"
)

// NewFromConfig assembles the engine, checker, pipeline and helper programs behind a Worker.
func NewFromConfig(cfg config.Config) (*Worker, error) {
	eng, err := engine.NewEngine(cfg.EngineConfig())
	if err != nil {
		return nil, err
	}
	chk := checker.NewInvoker(eng, cfg.Judge.Checker)
	runner := pipeline.New(eng, chk, cfg.PipelineConfig())
	w := NewWorker(runner, profile.NewResolver(cfg.Judge.Java), WorkerConfig{
		TestsDir:      cfg.Judge.TestsDir,
		StopOnError:   cfg.Judge.StopOnError,
		MemoryLimitMB: cfg.Judge.MemoryLimitMB,
		Quiet:         cfg.Judge.Quiet,
	})
	w.SetHelper(NewEngineHelper(eng, cfg.Judge.Validator))
	return w, nil
}

package sandbox

import (
	"context"
	"path/filepath"
	"time"

	"olymp/internal/judge/sandbox/pipeline"
	"olymp/internal/judge/sandbox/profile"
	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/testset"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/contextkey"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

// TestRunner judges a single test.
type TestRunner interface {
	Run(ctx context.Context, req pipeline.Request) (result.TestcaseResult, error)
}

// WorkerConfig controls the test-set loop.
type WorkerConfig struct {
	TestsDir      string
	StopOnError   bool
	MemoryLimitMB float64
	Quiet         bool
}

// Worker runs a solution over the tests of a problem, one test at a time.
type Worker struct {
	runner         TestRunner
	resolver       *profile.Resolver
	cfg            WorkerConfig
	statusReporter StatusReporter
	helper         Helper
	now            func() time.Time
	seed           func() int64
}

// NewWorker creates a new worker with required dependencies.
func NewWorker(runner TestRunner, resolver *profile.Resolver, cfg WorkerConfig) *Worker {
	if cfg.TestsDir == "" {
		cfg.TestsDir = "tests"
	}
	return &Worker{runner: runner, resolver: resolver, cfg: cfg, now: time.Now, seed: randomSeed}
}

// SetStatusReporter injects a status reporter for intermediate updates.
func (w *Worker) SetStatusReporter(reporter StatusReporter) {
	w.statusReporter = reporter
}

// CheckSolution runs one solution over every discovered test. Tests rejected
// by the filter are reported as skipped. Only configuration errors and
// cancellation abort the loop; the partial result is returned with them.
func (w *Worker) CheckSolution(ctx context.Context, req CheckRequest) (result.SolutionResult, error) {
	if err := validateCheckRequest(req); err != nil {
		return result.SolutionResult{}, err
	}
	if w.runner == nil || w.resolver == nil {
		return result.SolutionResult{}, appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}
	if req.RunID != "" {
		ctx = context.WithValue(ctx, contextkey.RunID, req.RunID)
	}

	out := result.SolutionResult{Solution: req.Solution}
	cmd, err := w.resolver.Resolve(req.ProblemDir, req.Solution, w.cfg.MemoryLimitMB)
	if err != nil {
		return out, err
	}
	tests, err := testset.Discover(filepath.Join(req.ProblemDir, w.cfg.TestsDir))
	if err != nil {
		return out, err
	}

	receivedAt := w.now().Unix()
	total := len(tests)
	w.reportStatus(ctx, req, StatusUpdate{Status: result.StatusRunning, TotalTests: total, ReceivedAt: receivedAt})

	out.Tests = make([]result.TestcaseResult, 0, total)
	for _, test := range tests {
		if !req.Filter.Match(test) {
			out.Tests = append(out.Tests, result.SkippedTest(test.Name, test.Input))
			continue
		}
		tc, err := w.runner.Run(ctx, pipeline.Request{
			WorkDir:  req.ProblemDir,
			Command:  cmd,
			Test:     test,
			Generate: req.Generate,
		})
		if err != nil {
			out.Summary = result.Summarize(out.Tests)
			w.reportStatus(ctx, req, StatusUpdate{
				Status:     result.StatusFailed,
				TotalTests: total,
				DoneTests:  len(out.Tests),
				ReceivedAt: receivedAt,
				FinishedAt: w.now().Unix(),
			})
			return out, err
		}
		out.Tests = append(out.Tests, tc)
		last := tc
		w.reportStatus(ctx, req, StatusUpdate{
			Status:     result.StatusRunning,
			TotalTests: total,
			DoneTests:  len(out.Tests),
			Last:       &last,
			ReceivedAt: receivedAt,
		})

		if tc.Verdict != result.VerdictAC && w.cfg.StopOnError {
			out.Stopped = true
			if !w.cfg.Quiet {
				logger.Info(ctx, "stopped after first failure",
					zap.String("solution", req.Solution),
					zap.String("test", test.Input),
					zap.String("verdict", tc.Verdict.FullName()),
				)
			}
			break
		}
	}

	out.Summary = result.Summarize(out.Tests)
	w.reportStatus(ctx, req, StatusUpdate{
		Status:     result.StatusFinished,
		TotalTests: total,
		DoneTests:  len(out.Tests),
		ReceivedAt: receivedAt,
		FinishedAt: w.now().Unix(),
	})
	return out, nil
}

// CheckMany checks the solutions in order with the same filter. It stops at
// the first error and returns the results gathered so far.
func (w *Worker) CheckMany(ctx context.Context, req CheckRequest, solutions []string) ([]result.SolutionResult, error) {
	out := make([]result.SolutionResult, 0, len(solutions))
	for _, sol := range solutions {
		one := req
		one.Solution = sol
		res, err := w.CheckSolution(ctx, one)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (w *Worker) reportStatus(ctx context.Context, req CheckRequest, update StatusUpdate) {
	if w.statusReporter == nil {
		return
	}
	update.RunID = req.RunID
	update.Solution = req.Solution
	if err := w.statusReporter.ReportStatus(ctx, update); err != nil {
		logger.Warn(ctx, "report status failed", zap.Error(err))
	}
}

func validateCheckRequest(req CheckRequest) error {
	if req.ProblemDir == "" {
		return appErr.ValidationError("problem_dir", "required")
	}
	if req.Solution == "" {
		return appErr.ValidationError("solution", "required")
	}
	return nil
}

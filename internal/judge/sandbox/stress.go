package sandbox

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"olymp/internal/judge/sandbox/pipeline"
	"olymp/internal/judge/sandbox/profile"
	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/testset"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/contextkey"
	"olymp/pkg/utils/logger"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

const (
	stressTestName = "stress_test"
	maxStressSeed  = 1_000_000_000
)

// StressRequest describes a stress-testing session.
type StressRequest struct {
	RunID      string
	ProblemDir string
	// Generator is the generator command line. A seed is appended for every test.
	Generator string
	// Solutions are compared on each generated test. The first one writes the answer.
	Solutions []string
	// Iterations bounds the number of generated tests. Zero runs until a
	// mismatch is found or ctx ends.
	Iterations int
}

// StressResult describes where a stress session stopped.
type StressResult struct {
	Iterations int
	// Validated is set when the problem has a validator.
	Validated bool
	// Found is set when Seed produced a problematic test.
	Found bool
	Seed  int64
	// Invalid marks a test rejected by the validator; Tests is empty then.
	Invalid bool
	Tests   []result.TestcaseResult
}

// Verdicts returns the verdict of every solution on the problematic test.
func (r StressResult) Verdicts() string {
	out := make([]byte, 0, len(r.Tests))
	for _, tc := range r.Tests {
		out = append(out, tc.Verdict.String()...)
	}
	return string(out)
}

// SetHelper injects the generator and validator runner used by Stress.
func (w *Worker) SetHelper(helper Helper) {
	w.helper = helper
}

// Stress generates tests from random seeds and runs the solutions on each.
// It stops on the first seed whose test is rejected by the validator or on
// which some solution does not get A against the first solution's answer.
func (w *Worker) Stress(ctx context.Context, req StressRequest) (StressResult, error) {
	var out StressResult
	gen, err := validateStressRequest(req)
	if err != nil {
		return out, err
	}
	if w.runner == nil || w.resolver == nil || w.helper == nil {
		return out, appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}
	if req.RunID != "" {
		ctx = context.WithValue(ctx, contextkey.RunID, req.RunID)
	}

	cmds := make([]profile.Command, 0, len(req.Solutions))
	for _, sol := range req.Solutions {
		cmd, err := w.resolver.Resolve(req.ProblemDir, sol, w.cfg.MemoryLimitMB)
		if err != nil {
			return out, err
		}
		cmds = append(cmds, cmd)
	}

	input := stressTestName + ".in"
	test := testset.Test{Name: stressTestName, Input: filepath.Join(req.ProblemDir, input)}
	for req.Iterations == 0 || out.Iterations < req.Iterations {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		seed := w.seed()
		args := append(append([]string(nil), gen...), strconv.FormatInt(seed, 10))
		if !w.cfg.Quiet {
			logger.Info(ctx, "generating test", zap.Strings("args", args))
		}
		if err := w.helper.Generate(ctx, req.ProblemDir, args, input); err != nil {
			return out, err
		}
		out.Iterations++

		ok, found, err := w.helper.Validate(ctx, req.ProblemDir, input)
		if err != nil {
			return out, err
		}
		out.Validated = found
		if found && !ok {
			out.Found, out.Seed, out.Invalid = true, seed, true
			logger.Warn(ctx, "invalid input generated", zap.Int64("seed", seed))
			return out, nil
		}

		if err := os.Remove(test.Output()); err != nil && !os.IsNotExist(err) {
			return out, appErr.Wrapf(err, appErr.ArtifactStagingFailed, "remove stale answer failed")
		}
		tests := make([]result.TestcaseResult, 0, len(cmds))
		agree := true
		for i, cmd := range cmds {
			tc, err := w.runner.Run(ctx, pipeline.Request{
				WorkDir:  req.ProblemDir,
				Command:  cmd,
				Test:     test,
				Generate: i == 0,
			})
			if err != nil {
				return out, err
			}
			tests = append(tests, tc)
			agree = agree && tc.Verdict == result.VerdictAC
		}
		if !agree {
			out.Found, out.Seed, out.Tests = true, seed, tests
			logger.Warn(ctx, "incompatible outputs",
				zap.String("verdicts", out.Verdicts()),
				zap.Int64("seed", seed),
			)
			return out, nil
		}
	}
	return out, nil
}

func validateStressRequest(req StressRequest) ([]string, error) {
	if req.ProblemDir == "" {
		return nil, appErr.ValidationError("problem_dir", "required")
	}
	if len(req.Solutions) == 0 {
		return nil, appErr.ValidationError("solutions", "required")
	}
	if req.Iterations < 0 {
		return nil, appErr.ValidationError("iterations", "must not be negative")
	}
	gen, err := shlex.Split(req.Generator)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse generator %q failed", req.Generator)
	}
	if len(gen) == 0 {
		return nil, appErr.ValidationError("generator", "required")
	}
	return gen, nil
}

func randomSeed() int64 {
	return rand.Int64N(maxStressSeed)
}

// Package pipeline judges one solution on one test.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"olymp/internal/judge/sandbox/checker"
	"olymp/internal/judge/sandbox/engine"
	"olymp/internal/judge/sandbox/profile"
	"olymp/internal/judge/sandbox/resolver"
	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/sandbox/spec"
	"olymp/internal/judge/testset"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/contextkey"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

// Files are the fixed staging names inside the problem directory.
type Files struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Answer string `yaml:"answer"`
}

// DefaultFiles returns the conventional staging names.
func DefaultFiles() Files {
	return Files{Input: "input.txt", Output: "output.txt", Answer: "answer.txt"}
}

// Config is the per-run judging configuration.
type Config struct {
	Limits spec.ResourceLimit
	Files  Files
	// Arbiter is the interactor executable name. Its presence selects interactive mode.
	Arbiter string
	// Stdio additionally wires the input file to stdin and stdout to the output file.
	Stdio bool
	Quiet bool
}

// Request describes one test run.
type Request struct {
	WorkDir  string
	Command  profile.Command
	Test     testset.Test
	Generate bool
}

// Pipeline stages files, runs the solution and resolves the verdict.
type Pipeline struct {
	engine  engine.Engine
	checker checker.Checker
	cfg     Config
}

// New creates a pipeline.
func New(eng engine.Engine, chk checker.Checker, cfg Config) *Pipeline {
	def := DefaultFiles()
	if cfg.Files.Input == "" {
		cfg.Files.Input = def.Input
	}
	if cfg.Files.Output == "" {
		cfg.Files.Output = def.Output
	}
	if cfg.Files.Answer == "" {
		cfg.Files.Answer = def.Answer
	}
	if cfg.Arbiter == "" {
		cfg.Arbiter = "interactor"
	}
	return &Pipeline{engine: eng, checker: chk, cfg: cfg}
}

// Run judges req. Failures confined to this test become verdict J; only
// configuration errors and cancellation are returned as errors.
func (p *Pipeline) Run(ctx context.Context, req Request) (result.TestcaseResult, error) {
	ctx = context.WithValue(ctx, contextkey.TestID, req.Test.Name)
	tc := result.TestcaseResult{TestID: req.Test.Name, InputPath: req.Test.Input}

	if err := p.stageInput(req); err != nil {
		logger.Warn(ctx, "stage input failed", zap.Error(err))
		return p.done(ctx, req, judgeError(tc)), nil
	}

	arbiter, interactive := checker.Executable(req.WorkDir, p.cfg.Arbiter)
	out, err := p.engine.Run(ctx, p.runSpec(req, arbiter, interactive))
	if err != nil {
		if ctx.Err() != nil || appErr.IsFatal(err) {
			return tc, err
		}
		logger.Warn(ctx, "run solution failed", zap.Error(err))
		return p.done(ctx, req, judgeError(tc)), nil
	}
	tc.RunResult = out.Solution

	generated := false
	if req.Generate {
		if err := copyFile(p.path(req, p.cfg.Files.Output), p.path(req, p.cfg.Files.Answer)); err != nil {
			logger.Warn(ctx, "capture output failed", zap.Error(err))
		} else {
			generated = true
		}
	}

	if interactive {
		tc, err = p.resolveInteractive(ctx, tc, out)
	} else {
		tc, err = p.resolveBatch(ctx, req, tc, generated)
	}
	if err != nil {
		return tc, err
	}

	if req.Generate && generated && keepsAnswer(tc.Verdict) {
		if err := copyFile(p.path(req, p.cfg.Files.Answer), req.Test.Output()); err != nil {
			logger.Warn(ctx, "store answer failed", zap.String("answer", req.Test.Output()), zap.Error(err))
		}
	}
	return p.done(ctx, req, tc), nil
}

func (p *Pipeline) resolveInteractive(ctx context.Context, tc result.TestcaseResult, out engine.Outcome) (result.TestcaseResult, error) {
	if out.Arbiter == nil {
		logger.Warn(ctx, "interactive run without arbiter result")
		return judgeError(tc), nil
	}
	v, err := resolver.ResolveInteractive(*out.Arbiter, out.Solution)
	if err != nil {
		logger.Warn(ctx, "arbitration failed", zap.Error(err))
		return judgeError(tc), nil
	}
	tc.Verdict = v
	if out.Arbiter.Exited {
		code := out.Arbiter.ExitCode
		tc.CheckerCode = &code
	}
	return tc, nil
}

func (p *Pipeline) resolveBatch(ctx context.Context, req Request, tc result.TestcaseResult, generated bool) (result.TestcaseResult, error) {
	in := resolver.BatchInput{Run: tc.RunResult, Generating: generated}
	if !req.Generate {
		present, err := p.stageAnswer(req)
		if err != nil {
			logger.Warn(ctx, "stage answer failed", zap.Error(err))
			return judgeError(tc), nil
		}
		in.AnswerPresent = present
	}

	var code *int
	if resolver.NeedsChecker(in) {
		rep, err := p.checker.Check(ctx, checker.Request{
			WorkDir: req.WorkDir,
			Input:   p.cfg.Files.Input,
			Output:  p.cfg.Files.Output,
			Answer:  p.cfg.Files.Answer,
		})
		if err != nil {
			if ctx.Err() != nil {
				return tc, err
			}
			logger.Warn(ctx, "checker failed", zap.Error(err))
			return judgeError(tc), nil
		}
		code = &rep.Code
	}
	v, err := resolver.ResolveBatch(in, code)
	if err != nil {
		logger.Warn(ctx, "resolve verdict failed", zap.Error(err))
		return judgeError(tc), nil
	}
	tc.Verdict = v
	tc.CheckerCode = code
	return tc, nil
}

func (p *Pipeline) runSpec(req Request, arbiter string, interactive bool) spec.RunSpec {
	limits := p.cfg.Limits
	limits.MemoryMB = req.Command.MemoryLimitMB
	rs := spec.RunSpec{
		TestID:  req.Test.Name,
		WorkDir: req.WorkDir,
		Cmd:     req.Command.Args,
		Limits:  limits,
	}
	if interactive {
		base := p.cfg.Limits
		rs.Arbiter = &spec.ArbiterSpec{
			Cmd:        []string{arbiter, p.cfg.Files.Input, p.cfg.Files.Output},
			BaseLimits: &base,
		}
		return rs
	}
	if p.cfg.Stdio {
		rs.StdinPath = p.cfg.Files.Input
		rs.StdoutPath = p.cfg.Files.Output
	}
	return rs
}

// stageInput copies the test input in place and clears artifacts of the previous test.
func (p *Pipeline) stageInput(req Request) error {
	if err := copyFile(req.Test.Input, p.path(req, p.cfg.Files.Input)); err != nil {
		return err
	}
	for _, name := range []string{p.cfg.Files.Output, p.cfg.Files.Answer} {
		if err := os.Remove(p.path(req, name)); err != nil && !os.IsNotExist(err) {
			return appErr.Wrapf(err, appErr.ArtifactStagingFailed, "remove stale %s failed", name)
		}
	}
	return nil
}

// stageAnswer copies the expected output in place. It reports false when the test has none.
func (p *Pipeline) stageAnswer(req Request) (bool, error) {
	expected := req.Test.Output()
	info, err := os.Stat(expected)
	if err != nil || !info.Mode().IsRegular() {
		return false, nil
	}
	if err := copyFile(expected, p.path(req, p.cfg.Files.Answer)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) done(ctx context.Context, req Request, tc result.TestcaseResult) result.TestcaseResult {
	if !p.cfg.Quiet {
		logger.Info(ctx, "test judged",
			zap.String("test", req.Test.Input),
			zap.String("verdict", tc.Verdict.String()),
			zap.Float64("time", tc.CPUTime),
			zap.Float64("memoryMB", tc.PeakMemoryMB),
		)
	}
	return tc
}

func (p *Pipeline) path(req Request, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(req.WorkDir, name)
}

func judgeError(tc result.TestcaseResult) result.TestcaseResult {
	tc.Verdict = result.VerdictJE
	return tc
}

// keepsAnswer lists the verdicts after which a generated answer is stored.
func keepsAnswer(v result.Verdict) bool {
	switch v {
	case result.VerdictAC, result.VerdictWA, result.VerdictPE, result.VerdictJE:
		return true
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return appErr.Wrapf(err, appErr.ArtifactStagingFailed, "open %s failed", src)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return appErr.Wrapf(err, appErr.ArtifactStagingFailed, "create %s failed", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return appErr.Wrapf(err, appErr.ArtifactStagingFailed, "copy %s failed", src)
	}
	if err := out.Close(); err != nil {
		return appErr.Wrapf(err, appErr.ArtifactStagingFailed, "close %s failed", dst)
	}
	return nil
}

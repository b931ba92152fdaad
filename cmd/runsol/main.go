// Command runsol runs one solution in the current directory under the
// configured limits and prints its verdict.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"olymp/internal/cli"
	"olymp/internal/judge/config"
	"olymp/internal/judge/report"
	"olymp/internal/judge/sandbox/checker"
	"olymp/internal/judge/sandbox/engine"
	"olymp/internal/judge/sandbox/profile"
	"olymp/internal/judge/sandbox/resolver"
	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/sandbox/spec"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("runsol", flag.ContinueOnError)
	var opts cli.Options
	opts.Register(fs)
	interactive := fs.Bool("i", false, "Run together with the interactor")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: runsol [flags] solution [args...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return cli.ExitUsage
	}

	cfg, flush, err := opts.Setup(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runsol: %v\n", err)
		return cli.ExitUsage
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	solution := strings.Join(fs.Args(), " ")
	res, err := runSolution(ctx, cfg, solution, *interactive)
	if err != nil {
		logger.Error(ctx, "run solution failed", zap.String("solution", solution), zap.Error(err))
		fmt.Fprintf(os.Stderr, "runsol: %v\n", err)
		return cli.ExitFailed
	}
	if err := report.WriteTable(os.Stdout, []result.SolutionResult{res}); err != nil {
		fmt.Fprintf(os.Stderr, "runsol: %v\n", err)
		return cli.ExitFailed
	}
	if res.Summary.Verdict != result.VerdictAC {
		return cli.ExitFailed
	}
	return cli.ExitOK
}

// runSolution executes solution once in the working directory.
func runSolution(ctx context.Context, cfg config.Config, solution string, interactive bool) (result.SolutionResult, error) {
	cmd, err := profile.NewResolver(cfg.Judge.Java).Resolve(".", solution, cfg.Judge.MemoryLimitMB)
	if err != nil {
		return result.SolutionResult{}, err
	}
	arbiter := ""
	if interactive {
		var ok bool
		arbiter, ok = checker.Executable(".", cfg.Judge.Arbiter)
		if !ok {
			return result.SolutionResult{}, appErr.Newf(appErr.SolutionNotFound, "interactor %s not found", cfg.Judge.Arbiter)
		}
	}

	eng, err := engine.NewEngine(cfg.EngineConfig())
	if err != nil {
		return result.SolutionResult{}, err
	}
	out, err := eng.Run(ctx, buildRunSpec(cfg, cmd, arbiter))
	if err != nil {
		return result.SolutionResult{}, err
	}
	return solutionResult(solution, out)
}

// buildRunSpec connects a batch run to the terminal. A non-empty arbiter makes
// the run interactive over the configured input and output files.
func buildRunSpec(cfg config.Config, cmd profile.Command, arbiter string) spec.RunSpec {
	base := cfg.PipelineConfig().Limits
	limits := base
	limits.MemoryMB = cmd.MemoryLimitMB
	rs := spec.RunSpec{
		TestID:  "runsol",
		WorkDir: ".",
		Cmd:     cmd.Args,
		Limits:  limits,
	}
	if arbiter == "" {
		rs.InheritStdio = true
		return rs
	}
	rs.Arbiter = &spec.ArbiterSpec{
		Cmd:        []string{arbiter, cfg.Judge.Files.Input, cfg.Judge.Files.Output},
		BaseLimits: &base,
	}
	return rs
}

// solutionResult turns the outcome into a one-test result for the table.
func solutionResult(name string, out engine.Outcome) (result.SolutionResult, error) {
	run := out.Solution
	if out.Arbiter != nil {
		v, err := resolver.ResolveInteractive(*out.Arbiter, out.Solution)
		if err != nil {
			return result.SolutionResult{}, err
		}
		run = run.WithVerdict(v)
	}
	tests := []result.TestcaseResult{{TestID: "1", RunResult: run}}
	return result.SolutionResult{
		Solution: name,
		Tests:    tests,
		Summary:  result.Summarize(tests),
	}, nil
}

// Command testsol runs solutions of the problem in the current directory on
// its tests and prints a results table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"olymp/internal/cli"
	"olymp/internal/judge/config"
	"olymp/internal/judge/report"
	"olymp/internal/judge/sandbox"
	"olymp/internal/judge/sandbox/profile"
	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/testset"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

type options struct {
	cli.Options
	stopOnError bool
	generate    bool
	tests       string
	reportPath  string
	stress      string
	iterations  int
}

// newFlagSet binds the testsol flags to opts.
func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("testsol", flag.ContinueOnError)
	opts.Register(fs)
	fs.BoolVar(&opts.stopOnError, "e", false, "Stop after the first error")
	fs.BoolVar(&opts.generate, "g", false, "Overwrite test answers with the solution's output")
	fs.StringVar(&opts.tests, "tests", "", "Comma separated test names, globs or ranges")
	fs.StringVar(&opts.tests, "i", "", "Shorthand for -tests")
	fs.StringVar(&opts.reportPath, "report", "", "Write a JSON report (.zst compresses it)")
	fs.StringVar(&opts.stress, "s", "", "Stress test the solutions on tests of this generator command (quoted, a seed is appended)")
	fs.IntVar(&opts.iterations, "n", 0, "Number of stress tests to generate (0 runs until a mismatch)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: testsol [flags] solution... (* or @ means all solutions)")
		fs.PrintDefaults()
	}
	return fs
}

func run(args []string, stdout io.Writer) int {
	var opts options
	fs := newFlagSet(&opts)
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
	all := selectsAll(fs.Args())
	if opts.generate && (all || fs.NArg() != 1) {
		fmt.Fprintln(stdout, "Exactly one solution must be specified with -g")
		return cli.ExitGenArgs
	}
	if opts.generate && opts.stress != "" {
		fmt.Fprintln(stdout, "Option -s is incompatible with -g")
		return cli.ExitUsage
	}

	cfg, flush, err := opts.Setup(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testsol: %v\n", err)
		return cli.ExitUsage
	}
	defer flush()
	applyFlags(fs, &cfg, opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker, err := sandbox.NewFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testsol: %v\n", err)
		return cli.ExitFailed
	}
	t := &tester{cfg: cfg, dir: ".", out: stdout, stop: cfg.Judge.StopOnError, now: time.Now}
	if opts.stress != "" {
		return t.stress(ctx, worker, fs.Args(), all, opts)
	}
	return t.run(ctx, worker, fs.Args(), all, opts)
}

// applyFlags overrides the config with the tool's own flags that were set.
func applyFlags(fs *flag.FlagSet, cfg *config.Config, opts options) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "e" {
			cfg.Judge.StopOnError = opts.stopOnError
		}
	})
}

// Stresser generates tests and compares solutions on them.
type Stresser interface {
	Stress(ctx context.Context, req sandbox.StressRequest) (sandbox.StressResult, error)
}

// tester carries one invocation's state.
type tester struct {
	cfg  config.Config
	dir  string
	out  io.Writer
	stop bool
	now  func() time.Time
	code int
}

func (t *tester) run(ctx context.Context, judge sandbox.Judge, args []string, all bool, opts options) int {
	solutions, ok := t.solutions(args, all)
	if !ok {
		return t.code
	}
	if len(solutions) == 0 {
		t.printq("No solutions found")
		return t.code
	}
	filter := testset.ParseFilter(opts.tests)
	results, err := t.check(ctx, judge, solutions, filter, opts.generate)
	if err != nil {
		logger.Error(ctx, "judging stopped", zap.Error(err))
		fmt.Fprintf(os.Stderr, "testsol: %v\n", err)
		t.code = cli.ExitFailed
	}
	if len(results) == 0 {
		return t.code
	}

	if !t.cfg.Judge.Quiet {
		fmt.Fprintln(t.out, report.NewEnvironment().Banner())
	}
	if err := report.WriteTable(t.out, results); err != nil {
		fmt.Fprintf(os.Stderr, "testsol: %v\n", err)
		return cli.ExitFailed
	}
	if opts.reportPath != "" {
		rep := report.Report{
			GeneratedAt: t.now(),
			Environment: report.NewEnvironment(),
			Limits:      t.cfg.Judge.Limits().String(),
			Filter:      filter.String(),
			Results:     results,
		}
		if err := report.WriteFile(opts.reportPath, rep); err != nil {
			fmt.Fprintf(os.Stderr, "testsol: %v\n", err)
			return cli.ExitFailed
		}
	}
	return t.code
}

// solutions lists what to judge. Missing solutions are reported and skipped,
// or end the invocation when stopping on errors.
func (t *tester) solutions(args []string, all bool) ([]string, bool) {
	if all {
		list, err := profile.List(t.dir, t.cfg.Judge.SolutionPrefix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "testsol: %v\n", err)
			t.code = cli.ExitFailed
			return nil, false
		}
		return list, true
	}
	var list []string
	for _, sol := range args {
		name := sol
		if fields := strings.Fields(sol); len(fields) > 0 {
			name = fields[0]
		}
		if !profile.IsSolution(t.dir, name) {
			t.printq(report.ColoredVerdict(result.VerdictWA, fmt.Sprintf("Solution %s does not exist", sol)))
			t.code = cli.ExitMissing
			if t.stop {
				return nil, false
			}
			continue
		}
		list = append(list, sol)
	}
	return list, true
}

// check judges the solutions in order, printing a progress line after each.
func (t *tester) check(ctx context.Context, judge sandbox.Judge, solutions []string, filter testset.Filter, generate bool) ([]result.SolutionResult, error) {
	results := make([]result.SolutionResult, 0, len(solutions))
	for _, sol := range solutions {
		res, err := judge.CheckSolution(ctx, sandbox.CheckRequest{
			ProblemDir: t.dir,
			Solution:   sol,
			Filter:     filter,
			Generate:   generate,
		})
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if !t.cfg.Judge.Quiet {
			fmt.Fprintf(t.out, "%s\n\n", report.ProgressLine(res))
		}
	}
	return results, nil
}

// stress runs the stress session and reports the seed it stopped on.
func (t *tester) stress(ctx context.Context, stresser Stresser, args []string, all bool, opts options) int {
	solutions, ok := t.solutions(args, all)
	if !ok {
		return t.code
	}
	if len(solutions) == 0 {
		t.printq("No solutions found")
		return t.code
	}
	res, err := stresser.Stress(ctx, sandbox.StressRequest{
		ProblemDir: t.dir,
		Generator:  opts.stress,
		Solutions:  solutions,
		Iterations: opts.iterations,
	})
	if res.Validated {
		t.printq("Validator enabled")
	} else if res.Iterations > 0 {
		t.printq("No validator found")
	}
	if err != nil {
		logger.Error(ctx, "stress testing stopped", zap.Error(err))
		fmt.Fprintf(os.Stderr, "testsol: %v\n", err)
		return cli.ExitFailed
	}
	if !res.Found {
		fmt.Fprintln(t.out, report.ColoredVerdict(result.VerdictAC, fmt.Sprintf("No problems found in %d tests", res.Iterations)))
		return t.code
	}
	if res.Invalid {
		fmt.Fprintln(t.out, report.ColoredVerdict(result.VerdictRE, "Invalid input on seed ")+strconv.FormatInt(res.Seed, 10))
	} else {
		fmt.Fprintln(t.out, report.ColoredVerdict(result.VerdictWA, "Incompatible outputs: ")+report.ColoredVerdicts(res.Verdicts())+" on seed "+strconv.FormatInt(res.Seed, 10))
	}
	fmt.Fprintln(t.out, report.ColoredVerdict(result.VerdictWA, "Stopped on a problematic test generated with seed = ")+strconv.FormatInt(res.Seed, 10))
	return cli.ExitStress
}

func (t *tester) printq(msg string) {
	if !t.cfg.Judge.Quiet {
		fmt.Fprintln(t.out, msg)
	}
}

func selectsAll(args []string) bool {
	for _, a := range args {
		if a == "*" || a == "@" {
			return true
		}
	}
	return false
}

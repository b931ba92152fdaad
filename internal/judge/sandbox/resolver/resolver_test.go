package resolver

import (
	"testing"

	"olymp/internal/judge/sandbox/result"
	appErr "olymp/pkg/errors"
)

func run(v result.Verdict, code int) result.RunResult {
	return result.RunResult{Verdict: v, ExitCode: code, Exited: true}
}

func intPtr(v int) *int { return &v }

func TestResolveBatch(t *testing.T) {
	cases := []struct {
		name string
		in   BatchInput
		code *int
		want result.Verdict
	}{
		{name: "resource_verdict_stands", in: BatchInput{Run: run(result.VerdictTLE, -9), AnswerPresent: true}, code: intPtr(0), want: result.VerdictTLE},
		{name: "runtime_error_stands", in: BatchInput{Run: run(result.VerdictRE, 1), AnswerPresent: true}, want: result.VerdictRE},
		{name: "missing_answer", in: BatchInput{Run: run(result.VerdictAC, 0)}, want: result.VerdictNoOutput},
		{name: "accepted", in: BatchInput{Run: run(result.VerdictAC, 0), AnswerPresent: true}, code: intPtr(0), want: result.VerdictAC},
		{name: "presentation", in: BatchInput{Run: run(result.VerdictAC, 0), AnswerPresent: true}, code: intPtr(2), want: result.VerdictPE},
		{name: "reserved_band", in: BatchInput{Run: run(result.VerdictAC, 0), AnswerPresent: true}, code: intPtr(8), want: result.VerdictWA},
		{name: "checker_crash", in: BatchInput{Run: run(result.VerdictAC, 0), AnswerPresent: true}, code: intPtr(-11), want: result.VerdictJE},
		{name: "generating_without_answer", in: BatchInput{Run: run(result.VerdictAC, 0), Generating: true}, code: intPtr(0), want: result.VerdictAC},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveBatch(tc.in, tc.code)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestResolveBatchRequiresChecker(t *testing.T) {
	in := BatchInput{Run: run(result.VerdictAC, 0), AnswerPresent: true}
	if !NeedsChecker(in) {
		t.Fatal("expected checker to be needed")
	}
	if _, err := ResolveBatch(in, nil); !appErr.Is(err, appErr.CheckerFailed) {
		t.Fatalf("expected checker failure, got %v", err)
	}
	if NeedsChecker(BatchInput{Run: run(result.VerdictAC, 0)}) {
		t.Fatal("checker must not run without an answer")
	}
	if NeedsChecker(BatchInput{Run: run(result.VerdictMLE, -9), AnswerPresent: true}) {
		t.Fatal("checker must not run after a failed run")
	}
	if _, err := ResolveBatch(BatchInput{Run: run(result.VerdictSkipped, 0)}, nil); err == nil {
		t.Fatal("expected error for non-run verdict")
	}
}

func TestResolveInteractive(t *testing.T) {
	cases := []struct {
		name     string
		arbiter  result.RunResult
		solution result.RunResult
		want     result.Verdict
	}{
		{name: "arbiter_tle", arbiter: run(result.VerdictTLE, -9), solution: run(result.VerdictAC, 0), want: result.VerdictJE},
		{name: "arbiter_mle_solution_tle", arbiter: run(result.VerdictMLE, -9), solution: run(result.VerdictTLE, -9), want: result.VerdictJE},
		{name: "arbiter_deadlock", arbiter: run(result.VerdictDeadlock, -9), solution: run(result.VerdictKilled, -9), want: result.VerdictJE},
		{name: "solution_tle", arbiter: run(result.VerdictAC, 0), solution: run(result.VerdictTLE, -9), want: result.VerdictTLE},
		{name: "solution_mle_arbiter_killed", arbiter: run(result.VerdictKilled, -9), solution: run(result.VerdictMLE, -9), want: result.VerdictMLE},
		{name: "solution_deadlock_arbiter_re", arbiter: run(result.VerdictRE, 1), solution: run(result.VerdictDeadlock, -9), want: result.VerdictDeadlock},
		{name: "solution_re_arbiter_accepts", arbiter: run(result.VerdictAC, 0), solution: run(result.VerdictRE, 1), want: result.VerdictAC},
		{name: "solution_re_arbiter_rejects", arbiter: run(result.VerdictRE, 1), solution: run(result.VerdictRE, 1), want: result.VerdictWA},
		{name: "solution_re_arbiter_killed", arbiter: run(result.VerdictKilled, -9), solution: run(result.VerdictRE, 1), want: result.VerdictRE},
		{name: "arbiter_killed", arbiter: run(result.VerdictKilled, -9), solution: run(result.VerdictAC, 0), want: result.VerdictWA},
		{name: "both_accept", arbiter: run(result.VerdictAC, 0), solution: run(result.VerdictAC, 0), want: result.VerdictAC},
		{name: "arbiter_presentation", arbiter: run(result.VerdictRE, 2), solution: run(result.VerdictAC, 0), want: result.VerdictPE},
		{name: "arbiter_jury_error", arbiter: run(result.VerdictRE, 3), solution: run(result.VerdictAC, 0), want: result.VerdictJE},
		{name: "arbiter_crash", arbiter: run(result.VerdictRE, -6), solution: run(result.VerdictAC, 0), want: result.VerdictJE},
		{name: "solution_killed", arbiter: run(result.VerdictRE, 1), solution: run(result.VerdictKilled, -9), want: result.VerdictWA},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveInteractive(tc.arbiter, tc.solution)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			again, err := ResolveInteractive(tc.arbiter, tc.solution)
			if err != nil || again != got {
				t.Fatalf("resolution is not idempotent: %s then %s (%v)", got, again, err)
			}
		})
	}
}

func TestResolveInteractiveRejectsImpossiblePairs(t *testing.T) {
	if _, err := ResolveInteractive(run(result.VerdictKilled, -9), run(result.VerdictKilled, -9)); !appErr.Is(err, appErr.ArbitrationFailed) {
		t.Fatalf("expected arbitration failure, got %v", err)
	}
	if _, err := ResolveInteractive(run(result.VerdictWA, 1), run(result.VerdictAC, 0)); !appErr.Is(err, appErr.ArbitrationFailed) {
		t.Fatalf("expected arbitration failure, got %v", err)
	}
}

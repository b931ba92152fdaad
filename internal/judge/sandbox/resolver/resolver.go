// Package resolver turns raw run outcomes into final test verdicts.
// Every function here is pure.
package resolver

import (
	"olymp/internal/judge/sandbox/result"
	appErr "olymp/pkg/errors"
)

// BatchInput is everything a batch decision depends on.
type BatchInput struct {
	Run result.RunResult
	// AnswerPresent reports whether a reference answer was staged.
	AnswerPresent bool
	// Generating is set when the run captures a fresh reference answer.
	Generating bool
}

// NeedsChecker reports whether the checker has to be consulted.
func NeedsChecker(in BatchInput) bool {
	return in.Run.Verdict == result.VerdictAC && (in.AnswerPresent || in.Generating)
}

// ResolveBatch decides a batch test. checkerCode must be set whenever
// NeedsChecker is true and is ignored otherwise.
func ResolveBatch(in BatchInput, checkerCode *int) (result.Verdict, error) {
	if !in.Run.Verdict.IsRunOutcome() {
		return result.VerdictNone, appErr.Newf(appErr.ArbitrationFailed, "unexpected run verdict %q", in.Run.Verdict)
	}
	if in.Run.Verdict != result.VerdictAC {
		return in.Run.Verdict, nil
	}
	if !in.AnswerPresent && !in.Generating {
		return result.VerdictNoOutput, nil
	}
	if checkerCode == nil {
		return result.VerdictNone, appErr.Newf(appErr.CheckerFailed, "checker code is required")
	}
	return result.VerdictForCheckerCode(*checkerCode), nil
}

// ResolveInteractive arbitrates between the arbiter and the solution.
// A misbehaving arbiter is never blamed on the solution.
func ResolveInteractive(arbiter, solution result.RunResult) (result.Verdict, error) {
	if !arbiter.Verdict.IsRunOutcome() || !solution.Verdict.IsRunOutcome() {
		return result.VerdictNone, appErr.Newf(appErr.ArbitrationFailed,
			"unexpected run verdicts: arbiter %q, solution %q", arbiter.Verdict, solution.Verdict)
	}
	if arbiter.Verdict == result.VerdictKilled && solution.Verdict == result.VerdictKilled {
		return result.VerdictNone, appErr.Newf(appErr.ArbitrationFailed, "both processes were killed")
	}

	switch {
	case arbiter.Verdict.IsResourceViolation():
		return result.VerdictJE, nil
	case solution.Verdict.IsResourceViolation():
		return solution.Verdict, nil
	case solution.Verdict == result.VerdictRE && arbiter.Verdict == result.VerdictKilled:
		return result.VerdictRE, nil
	case arbiter.Verdict == result.VerdictKilled:
		// the solution left early and starved the arbiter
		return result.VerdictWA, nil
	default:
		return result.VerdictForCheckerCode(arbiter.ExitCode), nil
	}
}

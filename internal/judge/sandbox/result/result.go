// Package result defines sandbox execution results and verdict mapping.
package result

import "strings"

// JudgeStatus represents the lifecycle state of a judging run.
type JudgeStatus string

const (
	StatusPending  JudgeStatus = "Pending"
	StatusRunning  JudgeStatus = "Running"
	StatusFinished JudgeStatus = "Finished"
	StatusFailed   JudgeStatus = "Failed"
)

// RunResult is the outcome of one monitored process.
type RunResult struct {
	Verdict Verdict `json:"verdict"`
	// ExitCode is meaningful only when Exited is set. Signal deaths are reported as -signal.
	ExitCode int  `json:"exitCode"`
	Exited   bool `json:"exited"`
	// CPUTime is user CPU time in seconds.
	CPUTime float64 `json:"time"`
	// PeakMemoryMB is the maximal resident set size seen, in megabytes.
	PeakMemoryMB float64 `json:"memory"`
}

// WithVerdict returns a copy of r carrying v.
func (r RunResult) WithVerdict(v Verdict) RunResult {
	r.Verdict = v
	return r
}

// TestcaseResult contains per-testcase execution outcomes.
type TestcaseResult struct {
	TestID    string `json:"testId"`
	InputPath string `json:"inputPath,omitempty"`
	RunResult
	// CheckerCode is set when a checker or arbiter code decided the verdict.
	CheckerCode *int `json:"checkerCode,omitempty"`
}

// SkippedTest is the placeholder for a test not selected by the filter.
func SkippedTest(testID, inputPath string) TestcaseResult {
	return TestcaseResult{
		TestID:    testID,
		InputPath: inputPath,
		RunResult: RunResult{Verdict: VerdictSkipped},
	}
}

// SummaryStat captures aggregate statistics across testcases.
type SummaryStat struct {
	Verdict Verdict `json:"verdict"`
	// FailedTest is the 1-based index of the first failing test, or the number of tests.
	FailedTest  int     `json:"failedTest"`
	Verdicts    string  `json:"verdicts"`
	MaxTime     float64 `json:"maxTime"`
	MaxMemoryMB float64 `json:"maxMemory"`
}

// SolutionResult is the outcome of one solution over a test set.
type SolutionResult struct {
	Solution string           `json:"solution"`
	Tests    []TestcaseResult `json:"tests"`
	Summary  SummaryStat      `json:"summary"`
	// Stopped is set when the driver stopped after the first failure.
	Stopped bool `json:"stopped,omitempty"`
}

const verdictGroupSize = 10

// Summarize aggregates testcase results the way the results table shows them.
func Summarize(tests []TestcaseResult) SummaryStat {
	summary := SummaryStat{Verdict: VerdictAC, FailedTest: len(tests)}
	found := false
	var letters strings.Builder
	for i, tc := range tests {
		letters.WriteString(tc.Verdict.String())
		if !found && tc.Verdict != VerdictAC && tc.Verdict != VerdictSkipped {
			summary.Verdict = tc.Verdict
			summary.FailedTest = i + 1
			found = true
		}
		if tc.CPUTime > summary.MaxTime {
			summary.MaxTime = tc.CPUTime
		}
		if tc.PeakMemoryMB > summary.MaxMemoryMB {
			summary.MaxMemoryMB = tc.PeakMemoryMB
		}
	}
	summary.Verdicts = groupVerdicts(letters.String(), verdictGroupSize)
	return summary
}

func groupVerdicts(s string, size int) string {
	if len(s) <= size {
		return s
	}
	parts := make([]string, 0, len(s)/size+1)
	for i := 0; i < len(s); i += size {
		end := i + size
		if end > len(s) {
			end = len(s)
		}
		parts = append(parts, s[i:end])
	}
	return strings.Join(parts, "_")
}

// Package model holds the payloads exchanged by the judge service.
package model

import (
	"olymp/internal/judge/sandbox/result"
)

// RunRequest asks the service to judge solutions of one problem.
// It arrives as the HTTP body or as a queue message.
type RunRequest struct {
	// Problem is the problem directory relative to the service's problems root.
	Problem string `json:"problem"`
	// Solutions lists artifact names. Empty means every solution found in the problem.
	Solutions []string `json:"solutions"`
	// Tests is a test filter expression such as "1-5,bad*".
	Tests    string `json:"tests"`
	Generate bool   `json:"generate"`
}

// Progress counts finished tests of the solution being judged.
type Progress struct {
	Solution   string `json:"solution,omitempty"`
	TotalTests int    `json:"total_tests"`
	DoneTests  int    `json:"done_tests"`
}

// RunStatus is the stored state of a run.
type RunStatus struct {
	RunID     string             `json:"run_id"`
	Status    result.JudgeStatus `json:"status"`
	Problem   string             `json:"problem"`
	Solutions []string           `json:"solutions,omitempty"`
	Tests     string             `json:"tests,omitempty"`
	Progress  Progress           `json:"progress"`
	// Results holds one entry per finished solution.
	Results      []result.SolutionResult `json:"results,omitempty"`
	ErrorCode    int                     `json:"error_code,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	ReceivedAt   int64                   `json:"received_at"`
	FinishedAt   int64                   `json:"finished_at,omitempty"`
}

// Final reports whether the run will not change anymore.
func (s RunStatus) Final() bool {
	return s.Status == result.StatusFinished || s.Status == result.StatusFailed
}

// StatusEventType identifies the kind of status event.
type StatusEventType string

const (
	StatusEventFinal StatusEventType = "final"
)

// StatusEvent is published when a run reaches a final state.
type StatusEvent struct {
	Type      StatusEventType `json:"type"`
	Status    RunStatus       `json:"status"`
	CreatedAt int64           `json:"created_at"`
}

package sandbox

import (
	"context"

	"olymp/internal/judge/sandbox/result"
)

// StatusUpdate carries intermediate judging progress.
type StatusUpdate struct {
	RunID      string
	Solution   string
	Status     result.JudgeStatus
	TotalTests int
	DoneTests  int
	// Last is the most recently finished test, if any.
	Last       *result.TestcaseResult
	ReceivedAt int64
	FinishedAt int64
}

// StatusReporter persists intermediate status updates.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate) error
}

// Package sandbox defines the entrypoint used by the judge tools and service.
package sandbox

import (
	"context"

	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/testset"
)

// Judge checks solutions of one problem directory.
type Judge interface {
	CheckSolution(ctx context.Context, req CheckRequest) (result.SolutionResult, error)
	CheckMany(ctx context.Context, req CheckRequest, solutions []string) ([]result.SolutionResult, error)
}

// CheckRequest selects what to judge.
type CheckRequest struct {
	// RunID labels status updates and logs. Optional.
	RunID      string
	ProblemDir string
	// Solution is the artifact name inside ProblemDir, optionally followed by arguments.
	Solution string
	Filter   testset.Filter
	// Generate captures the solution's output as the reference answer.
	Generate bool
}

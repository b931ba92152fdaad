package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"olymp/internal/judge/model"
	"olymp/internal/judge/sandbox"
	"olymp/internal/judge/sandbox/profile"
	"olymp/internal/judge/sandbox/result"
	"olymp/internal/judge/testset"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/contextkey"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

type prepared struct {
	dir       string
	solutions []string
	filter    testset.Filter
	generate  bool
}

func (s *Service) prepare(req model.RunRequest) (prepared, error) {
	dir, err := safeJoin(s.problemsRoot, req.Problem)
	if err != nil {
		return prepared{}, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return prepared{}, appErr.New(appErr.NotFound).WithMessage("problem not found")
	}

	solutions := req.Solutions
	if len(solutions) == 0 {
		solutions, err = profile.List(dir, s.solutionPrefix)
		if err != nil {
			return prepared{}, err
		}
		if len(solutions) == 0 {
			return prepared{}, appErr.ValidationError("solutions", "no solutions found")
		}
	}
	for _, sol := range solutions {
		fields := strings.Fields(sol)
		if len(fields) == 0 || filepath.Base(fields[0]) != fields[0] || fields[0] == ".." {
			return prepared{}, appErr.ValidationError("solutions", "invalid solution name "+sol)
		}
	}
	if req.Generate && len(solutions) != 1 {
		return prepared{}, appErr.ValidationError("generate", "requires exactly one solution")
	}
	return prepared{
		dir:       dir,
		solutions: solutions,
		filter:    testset.ParseFilter(req.Tests),
		generate:  req.Generate,
	}, nil
}

// execute judges every solution of the run in order and records the outcome.
func (s *Service) execute(ctx context.Context, status model.RunStatus, prep prepared) error {
	ctx = context.WithValue(ctx, contextkey.RunID, status.RunID)
	s.track(&status)
	defer s.untrack(status.RunID)

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, prep.dir)
		if err != nil {
			return s.finish(ctx, status, err)
		}
		defer release()
	}

	status.Status = result.StatusRunning
	if err := s.persistStatus(ctx, status); err != nil {
		logger.Warn(ctx, "update running status failed", zap.Error(err))
	}

	ctxRun := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctxRun, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	for _, sol := range prep.solutions {
		res, err := s.judge.CheckSolution(ctxRun, sandbox.CheckRequest{
			RunID:      status.RunID,
			ProblemDir: prep.dir,
			Solution:   sol,
			Filter:     prep.filter,
			Generate:   prep.generate,
		})
		status = s.appendResult(status.RunID, res)
		if err != nil {
			return s.finish(ctx, status, err)
		}
		if err := s.persistStatus(ctx, status); err != nil {
			logger.Warn(ctx, "update run results failed", zap.Error(err))
		}
	}
	return s.finish(ctx, status, nil)
}

// track registers the in-flight status so progress updates can amend it.
func (s *Service) track(status *model.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *status
	s.active[status.RunID] = &copied
}

func (s *Service) untrack(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, runID)
}

func (s *Service) appendResult(runID string, res result.SolutionResult) model.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.active[runID]
	if res.Solution != "" {
		st.Results = append(st.Results, res)
	}
	st.Status = result.StatusRunning
	return *st
}

// safeJoin resolves a problem name below root, rejecting absolute paths and traversal.
func safeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", appErr.ValidationError("problem", "required")
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", appErr.New(appErr.InvalidParams).WithMessage("invalid problem path")
	}
	base := filepath.Clean(root)
	full := filepath.Join(base, clean)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", appErr.New(appErr.InvalidParams).WithMessage("path traversal detected")
	}
	return full, nil
}

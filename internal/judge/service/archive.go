package service

import (
	"context"
	"time"

	"olymp/internal/judge/model"
	"olymp/internal/judge/report"
	"olymp/internal/judge/sandbox/result"
	appErr "olymp/pkg/errors"
	pkgrepo "olymp/pkg/repository"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

// RunArchiver keeps final run states.
type RunArchiver interface {
	Save(ctx context.Context, status model.RunStatus) error
	Get(ctx context.Context, runID string) (model.RunStatus, error)
	List(ctx context.Context, problem string, opts pkgrepo.ListOptions) ([]model.RunStatus, int64, error)
}

// ReportKeeper stores one report per run.
type ReportKeeper interface {
	Put(ctx context.Context, runID string, rep report.Report) error
	Get(ctx context.Context, runID string) (report.Report, error)
}

// List pages through archived runs, newest first.
func (s *Service) List(ctx context.Context, problem string, page, pageSize int) (*pkgrepo.PaginationResult[model.RunStatus], error) {
	if s.archive == nil {
		return nil, appErr.New(appErr.ServiceUnavailable).WithMessage("run archive is not configured")
	}
	opts := pkgrepo.ListOptions{OrderDesc: true}
	opts.SetPagination(page, pageSize)
	items, total, err := s.archive.List(ctx, problem, opts)
	if err != nil {
		return nil, err
	}
	return pkgrepo.NewPaginationResult(items, total, opts), nil
}

// Report returns the stored report of a finished run.
func (s *Service) Report(ctx context.Context, runID string) (report.Report, error) {
	if s.reports == nil {
		return report.Report{}, appErr.New(appErr.ServiceUnavailable).WithMessage("report storage is not configured")
	}
	return s.reports.Get(ctx, runID)
}

// keep archives a final status and, for finished runs, uploads a report.
// Failures only log.
func (s *Service) keep(ctx context.Context, status model.RunStatus) {
	if s.archive != nil {
		if err := s.archive.Save(ctx, status); err != nil {
			logger.Warn(ctx, "archive run failed", zap.String("run_id", status.RunID), zap.Error(err))
		}
	}
	if s.reports == nil || status.Status != result.StatusFinished {
		return
	}
	rep := report.Report{
		GeneratedAt: time.Unix(status.FinishedAt, 0).UTC(),
		Environment: s.environment,
		Limits:      s.limits,
		Filter:      status.Tests,
		Results:     status.Results,
	}
	if err := s.reports.Put(ctx, status.RunID, rep); err != nil {
		logger.Warn(ctx, "store run report failed", zap.String("run_id", status.RunID), zap.Error(err))
	}
}

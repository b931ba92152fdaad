package service

import (
	"context"
	"errors"

	"olymp/internal/judge/model"
	"olymp/internal/judge/sandbox"
	"olymp/internal/judge/sandbox/result"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/logger"

	"go.uber.org/zap"
)

var _ sandbox.StatusReporter = (*Service)(nil)

// ReportStatus records per-test progress of an active run.
func (s *Service) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	s.mu.Lock()
	st, ok := s.active[update.RunID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	st.Progress = model.Progress{
		Solution:   update.Solution,
		TotalTests: update.TotalTests,
		DoneTests:  update.DoneTests,
	}
	snapshot := *st
	s.mu.Unlock()

	if err := s.persistStatus(ctx, snapshot); err != nil {
		logger.Warn(ctx, "update intermediate status failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) persistStatus(ctx context.Context, status model.RunStatus) error {
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	return s.statusRepo.Save(ctxStatus, status)
}

// finish stores the final state and publishes it. Only cancellation is
// returned, so queue deliveries of failed runs are still acknowledged.
func (s *Service) finish(ctx context.Context, status model.RunStatus, runErr error) error {
	status.FinishedAt = s.now().Unix()
	if runErr == nil {
		status.Status = result.StatusFinished
	} else {
		status.Status = result.StatusFailed
		status.ErrorCode = int(appErr.GetCode(runErr))
		status.ErrorMessage = runErr.Error()
	}

	// The run context may be cancelled; the final state is stored regardless.
	ctxFinal := context.WithoutCancel(ctx)
	if err := s.persistStatus(ctxFinal, status); err != nil {
		logger.Error(ctxFinal, "store final status failed", zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishFinalStatus(ctxFinal, status); err != nil {
			logger.Warn(ctxFinal, "publish final status failed", zap.Error(err))
		}
	}
	s.keep(ctxFinal, status)

	fields := []zap.Field{
		zap.String("status", string(status.Status)),
		zap.Int("solutions", len(status.Results)),
	}
	if runErr != nil {
		logger.Warn(ctx, "run failed", append(fields, zap.Error(runErr))...)
	} else {
		logger.Info(ctx, "run finished", fields...)
	}

	if errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

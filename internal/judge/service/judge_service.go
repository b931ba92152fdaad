package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"olymp/internal/common/mq"
	"olymp/internal/judge/model"
	"olymp/internal/judge/report"
	"olymp/internal/judge/repository"
	"olymp/internal/judge/sandbox"
	"olymp/internal/judge/sandbox/result"
	appErr "olymp/pkg/errors"
	"olymp/pkg/utils/contextkey"
	"olymp/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusStore persists run status documents.
type StatusStore interface {
	Get(ctx context.Context, runID string) (model.RunStatus, error)
	Save(ctx context.Context, status model.RunStatus) error
}

// DirLocker serializes runs on one problem directory.
type DirLocker interface {
	Acquire(ctx context.Context, dir string) (func(), error)
}

// Service accepts judging runs and executes them on a bounded pool.
type Service struct {
	judge          sandbox.Judge
	statusRepo     StatusStore
	publisher      repository.StatusEventPublisher
	locker         DirLocker
	archive        RunArchiver
	reports        ReportKeeper
	environment    report.Environment
	limits         string
	problemsRoot   string
	solutionPrefix string
	runTimeout     time.Duration
	statusTimeout  time.Duration
	queueWait      time.Duration
	sem            chan struct{}
	newID          func() string
	now            func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	active  map[string]*model.RunStatus
	closing bool
}

// Config holds service dependencies and settings.
type Config struct {
	Judge      sandbox.Judge
	StatusRepo StatusStore
	// Publisher and Locker are optional.
	Publisher repository.StatusEventPublisher
	Locker    DirLocker
	// Archive and Reports keep finished runs beyond the status TTL; both are optional.
	Archive RunArchiver
	Reports ReportKeeper
	// Limits describes the judging limits in stored reports.
	Limits         string
	ProblemsRoot   string
	SolutionPrefix string
	RunTimeout     time.Duration
	StatusTimeout  time.Duration
	// QueueWait bounds how long a queued message waits for a free worker.
	QueueWait      time.Duration
	WorkerPoolSize int
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Judge == nil {
		return nil, appErr.ConfigError("judge is required")
	}
	if cfg.StatusRepo == nil {
		return nil, appErr.ConfigError("status repository is required")
	}
	if cfg.ProblemsRoot == "" {
		return nil, appErr.ConfigError("problems root is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = 2 * time.Second
	}
	if cfg.SolutionPrefix == "" {
		cfg.SolutionPrefix = "sol_"
	}
	var env report.Environment
	if cfg.Reports != nil {
		env = report.NewEnvironment()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		judge:          cfg.Judge,
		statusRepo:     cfg.StatusRepo,
		publisher:      cfg.Publisher,
		locker:         cfg.Locker,
		archive:        cfg.Archive,
		reports:        cfg.Reports,
		environment:    env,
		limits:         cfg.Limits,
		problemsRoot:   cfg.ProblemsRoot,
		solutionPrefix: cfg.SolutionPrefix,
		runTimeout:     cfg.RunTimeout,
		statusTimeout:  cfg.StatusTimeout,
		queueWait:      cfg.QueueWait,
		sem:            make(chan struct{}, poolSize),
		newID:          uuid.NewString,
		now:            time.Now,
		baseCtx:        baseCtx,
		cancel:         cancel,
		active:         make(map[string]*model.RunStatus),
	}, nil
}

// Submit validates req, records it as pending and judges it in the background.
// It fails with JudgeQueueFull when every worker is busy.
func (s *Service) Submit(ctx context.Context, req model.RunRequest) (model.RunStatus, error) {
	prep, err := s.prepare(req)
	if err != nil {
		return model.RunStatus{}, err
	}
	if !s.begin() {
		return model.RunStatus{}, errShuttingDown()
	}
	if !s.tryAcquireSlot() {
		s.wg.Done()
		return model.RunStatus{}, appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
	status := s.pendingStatus(s.newID(), req, prep)
	if err := s.persistStatus(ctx, status); err != nil {
		s.releaseSlot()
		s.wg.Done()
		return model.RunStatus{}, err
	}

	runCtx := s.runContext(ctx)
	go func() {
		defer s.wg.Done()
		defer s.releaseSlot()
		s.execute(runCtx, status, prep)
	}()
	return status, nil
}

// Get returns the stored status of a run, falling back to the archive once
// the cached status has expired.
func (s *Service) Get(ctx context.Context, runID string) (model.RunStatus, error) {
	st, err := s.statusRepo.Get(ctx, runID)
	if err == nil || s.archive == nil || !appErr.Is(err, appErr.RunNotFound) {
		return st, err
	}
	return s.archive.Get(ctx, runID)
}

// HandleMessage judges a run request delivered by the queue. Runs that
// already reached a final state are acknowledged without judging again.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	runID := msg.ID
	if runID == "" {
		runID = s.newID()
	}
	if existing, err := s.statusRepo.Get(ctx, runID); err == nil && existing.Final() {
		logger.Info(ctx, "run already judged, skipping redelivery", zap.String("run_id", runID))
		return nil
	}

	var req model.RunRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		s.rejectMessage(ctx, runID, req, appErr.Wrapf(err, appErr.InvalidFormat, "decode run request failed"))
		return nil
	}
	prep, err := s.prepare(req)
	if err != nil {
		s.rejectMessage(ctx, runID, req, err)
		return nil
	}

	if !s.begin() {
		return errShuttingDown()
	}
	defer s.wg.Done()
	if err := s.acquireSlot(ctx); err != nil {
		return err
	}
	defer s.releaseSlot()

	status := s.pendingStatus(runID, req, prep)
	if err := s.persistStatus(ctx, status); err != nil {
		return err
	}
	return s.execute(s.runContext(ctx), status, prep)
}

// Shutdown waits for running judgements. When ctx ends first, the runs are
// cancelled and recorded as failed.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// begin registers a run with the shutdown group unless shutdown has started.
func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// runContext detaches a run from its caller so that only Shutdown cancels it.
// The trace id is kept.
func (s *Service) runContext(ctx context.Context) context.Context {
	runCtx := s.baseCtx
	if traceID := ctx.Value(contextkey.TraceID); traceID != nil {
		runCtx = context.WithValue(runCtx, contextkey.TraceID, traceID)
	}
	return runCtx
}

func errShuttingDown() error {
	return appErr.New(appErr.ServiceUnavailable).WithMessage("judge service is shutting down")
}

func (s *Service) pendingStatus(runID string, req model.RunRequest, prep prepared) model.RunStatus {
	return model.RunStatus{
		RunID:      runID,
		Status:     result.StatusPending,
		Problem:    req.Problem,
		Solutions:  prep.solutions,
		Tests:      prep.filter.String(),
		ReceivedAt: s.now().Unix(),
	}
}

func (s *Service) rejectMessage(ctx context.Context, runID string, req model.RunRequest, err error) {
	logger.Warn(ctx, "reject run request", zap.String("run_id", runID), zap.Error(err))
	status := model.RunStatus{
		RunID:      runID,
		Problem:    req.Problem,
		ReceivedAt: s.now().Unix(),
	}
	s.finish(ctx, status, err)
}

func (s *Service) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.queueWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

func (s *Service) tryAcquireSlot() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

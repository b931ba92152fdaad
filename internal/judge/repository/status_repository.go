package repository

import (
	"context"
	"encoding/json"
	"time"

	"olymp/internal/common/cache"
	"olymp/internal/judge/model"
	appErr "olymp/pkg/errors"
)

const statusKeyPrefix = "judge:run:"

// StatusRepository handles run status persistence.
type StatusRepository struct {
	cache cache.BasicOps
	TTL   time.Duration
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.BasicOps, ttl time.Duration) *StatusRepository {
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns status by run id.
func (r *StatusRepository) Get(ctx context.Context, runID string) (model.RunStatus, error) {
	if runID == "" {
		return model.RunStatus{}, appErr.ValidationError("run_id", "required")
	}
	if r.cache == nil {
		return model.RunStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+runID)
	if err != nil {
		return model.RunStatus{}, appErr.Wrapf(err, appErr.CacheError, "load status failed")
	}
	if val == "" {
		return model.RunStatus{}, appErr.New(appErr.RunNotFound).WithMessage("run status not found")
	}
	var status model.RunStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.RunStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return status, nil
}

// Save persists status.
func (r *StatusRepository) Save(ctx context.Context, status model.RunStatus) error {
	if status.RunID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "encode status failed")
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+status.RunID, string(data), cache.JitterTTL(r.TTL)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}

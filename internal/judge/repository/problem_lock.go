package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"olymp/internal/common/cache"
	appErr "olymp/pkg/errors"

	"github.com/google/uuid"
)

const lockKeyPrefix = "judge:lock:"

// ProblemLock serializes runs that share a problem directory. Runs stage
// files under fixed names, so two of them in one directory would clobber each other.
type ProblemLock struct {
	cache cache.LockOps
	TTL   time.Duration
	Retry time.Duration
}

// NewProblemLock creates a lock store. ttl bounds how long a crashed holder blocks others.
func NewProblemLock(cacheClient cache.LockOps, ttl, retry time.Duration) *ProblemLock {
	if retry <= 0 {
		retry = 200 * time.Millisecond
	}
	return &ProblemLock{cache: cacheClient, TTL: ttl, Retry: retry}
}

// Acquire blocks until the directory is free or ctx ends. The returned
// function releases the lock.
func (l *ProblemLock) Acquire(ctx context.Context, dir string) (func(), error) {
	if l == nil || l.cache == nil {
		return nil, appErr.New(appErr.CacheError).WithMessage("lock store is not initialized")
	}
	key := lockKey(dir)
	token := uuid.NewString()
	for {
		ok, err := l.cache.TryLock(ctx, key, token, l.TTL)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.CacheError, "acquire problem lock failed")
		}
		if ok {
			return func() {
				// The run context may already be done here.
				ctxUnlock, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = l.cache.Unlock(ctxUnlock, key, token)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Retry):
		}
	}
}

func lockKey(dir string) string {
	sum := sha256.Sum256([]byte(dir))
	return lockKeyPrefix + hex.EncodeToString(sum[:8])
}

package scheduler

import (
	"context"
	"time"

	"github.com/glitchidea/glichflow/internal/ratelimit"
	"go.uber.org/zap"
)

// acquireJobLock always succeeds without a locker. The lock outlives the job
// timeout so a slow run cannot overlap with the next tick.
func (s *Scheduler) acquireJobLock(ctx context.Context, job string, timeout time.Duration) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}

	ttl := s.cfg.LockTTL
	if ttl < timeout {
		ttl = timeout
	}
	key := ratelimit.JobLockKey(job)
	token, ok, err := s.locker.TryLock(ctx, key, ttl)
	if err != nil || !ok {
		return nil, false, err
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("scheduler.lock.release_failed", zap.String("job", job), zap.Error(err))
		}
	}
	return release, true, nil
}

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// unlockScript deletes KEYS[1] only while it still holds ARGV[1].
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	errLockDisabled = errors.New("job lock disabled")
	// ErrLockLost means the lease expired, and maybe passed to another
	// worker, before the holder released it.
	ErrLockLost = errors.New("job lock lost before release")
)

// JobLockKey namespaces a scheduler job name.
func JobLockKey(job string) string {
	return "glichflow:lock:job:" + strings.ToLower(strings.TrimSpace(job))
}

// Locker hands out expiring leases on a single redis node. Each lease is
// tagged with a random token so a late Release cannot drop someone else's.
type Locker struct {
	client *redis.Client
	unlock *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, unlock: redis.NewScript(unlockScript)}
}

// TryLock returns ok=false without error when another holder has key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	if l == nil || l.client == nil {
		return "", false, errLockDisabled
	}
	if key == "" || ttl <= 0 {
		return "", false, fmt.Errorf("job lock: invalid key %q or ttl %s", key, ttl)
	}

	token = uuid.NewString()
	err = l.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("job lock %s: %w", key, err)
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	deleted, err := l.unlock.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("job unlock %s: %w", key, err)
	}
	if deleted == 0 {
		return ErrLockLost
	}
	return nil
}

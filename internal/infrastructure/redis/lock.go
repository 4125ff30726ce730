package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// Only the owner may release the lock.
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// LockClient is the subset of *redis.Client the lock needs.
type LockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// DistributedLock is a single-owner lease on a Redis key. The worker uses it
// so that only one instance runs the retention job at a time.
type DistributedLock struct {
	client   LockClient
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a new distributed lock
func NewDistributedLock(client LockClient, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to take the lock once. It reports false when another
// owner holds it.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %w", errors.ErrLockAcquisitionFailed, err)
	}
	l.acquired = ok
	return ok, nil
}

// Extend resets the lock TTL while it is still owned.
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.acquired {
		return errors.ErrLockNotHeld
	}
	return l.runOwned(ctx, extendLockScript, ttl.Milliseconds())
}

// Release releases the lock
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}
	if err := l.runOwned(ctx, releaseLockScript); err != nil {
		return err
	}
	l.acquired = false
	return nil
}

func (l *DistributedLock) runOwned(ctx context.Context, script *redis.Script, args ...any) error {
	result, err := script.Run(ctx, l.client, []string{l.key}, append([]any{l.value}, args...)...).Result()
	if err != nil {
		return fmt.Errorf("run lock script: %w", err)
	}
	if val, ok := result.(int64); !ok || val == 0 {
		l.acquired = false
		return errors.ErrLockNotHeld
	}
	return nil
}

// IsAcquired returns whether the lock is acquired
func (l *DistributedLock) IsAcquired() bool {
	return l.acquired
}

package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// redisStore is the subset of the Redis client the lock needs.
type redisStore interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	LockHolder(ctx context.Context, key string) (string, error)
}

// RedisLock holds the instance lock as a Redis key with a TTL. The value is
// "processing:<instance id>" so only the owner can refresh or release it.
type RedisLock struct {
	store redisStore
	key   string
	token string
	ttl   time.Duration
}

// NewRedisLock creates a lock stored under key.
func NewRedisLock(store redisStore, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		store: store,
		key:   key,
		token: MarkerProcessing + ":" + uuid.NewString(),
		ttl:   ttl,
	}
}

// Token identifies this instance as lock holder.
func (l *RedisLock) Token() string {
	return l.token
}

// Acquire implements Locker.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.store.AcquireLock(ctx, l.key, l.token, l.ttl)
}

// Release implements Locker.
func (l *RedisLock) Release(ctx context.Context) error {
	return l.store.ReleaseLock(ctx, l.key, l.token)
}

// Held implements Inspector. It reports true only while the key holds this
// instance's token.
func (l *RedisLock) Held(ctx context.Context) (bool, error) {
	holder, err := l.store.LockHolder(ctx, l.key)
	if err != nil {
		return false, err
	}
	return holder == l.token, nil
}

// Keepalive refreshes the TTL every ttl/3 until ctx is done. It returns
// ErrLockLost as soon as the key no longer belongs to this instance.
func (l *RedisLock) Keepalive(ctx context.Context) error {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ok, err := l.store.RefreshLock(ctx, l.key, l.token, l.ttl)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Transient: the key survives until its TTL runs out.
				slog.Warn("Failed to refresh instance lock", "key", l.key, "error", err)
				continue
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrLockLost, l.key)
			}
		}
	}
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis operations used by the instance lock.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Only the owner of a lock may extend or delete it.
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// LockKey namespaces an instance lock by storage location.
func LockKey(storagePath string) string {
	return fmt.Sprintf("blockledger:lock:%s", storagePath)
}

// AcquireLock sets key to token if no holder exists.
func (c *Client) AcquireLock(
	ctx context.Context,
	key, token string,
	ttl time.Duration,
) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// RefreshLock extends the TTL of a lock held by token. It reports false if
// the lock expired or is now held by someone else.
func (c *Client) RefreshLock(
	ctx context.Context,
	key, token string,
	ttl time.Duration,
) (bool, error) {
	n, err := refreshScript.Run(ctx, c.rdb, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("refresh failed: %w", err)
	}
	return n == 1, nil
}

// ReleaseLock deletes the lock if it is still held by token.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("release failed: %w", err)
	}
	return nil
}

// LockHolder returns the current token for key, or "" if nobody holds it.
func (c *Client) LockHolder(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// ForceRelease deletes the lock regardless of its holder.
func (c *Client) ForceRelease(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

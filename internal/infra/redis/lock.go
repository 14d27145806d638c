package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockHeld is returned by TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another owner")

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli      *redis.Client
	attempts int
	wait     time.Duration
}

// NewLocker returns a locker that makes a single SetNX attempt per TryLock.
func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, attempts: 1, wait: 50 * time.Millisecond}
}

// WithRetry makes TryLock poll up to attempts times, wait apart.
func (l *RedisLocker) WithRetry(attempts int, wait time.Duration) *RedisLocker {
	if attempts < 1 {
		attempts = 1
	}
	l.attempts, l.wait = attempts, wait
	return l
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.wait):
			}
		}
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return token, nil
		}
		lastErr = ErrLockHeld
	}
	return "", lastErr
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}

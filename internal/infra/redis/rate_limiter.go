package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Counter increments a per-key counter that lives for one window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// windowScript increments KEYS[1] and starts its window on the first hit. A
// counter that somehow lost its expiry gets a fresh one instead of blocking
// the key forever.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if n == 1 or ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}`)

func (c *Client) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := windowScript.Run(ctx, c.cli, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate window %s: unexpected reply %v", key, res)
	}
	n, ok1 := res[0].(int64)
	ttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("rate window %s: unexpected reply %v", key, res)
	}
	return n, time.Duration(ttl) * time.Millisecond, nil
}

// Verdict is the outcome of one rate limited attempt.
type Verdict struct {
	Allowed bool
	Count   int64
	// RetryAfter is how long until the current window closes.
	RetryAfter time.Duration
}

// RateLimiter caps attempts per key in fixed windows.
type RateLimiter struct {
	counter Counter
}

func NewRateLimiter(counter Counter) *RateLimiter {
	return &RateLimiter{counter: counter}
}

func (r *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Verdict, error) {
	n, resetIn, err := r.counter.Hit(ctx, key, window)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Allowed: n <= int64(limit), Count: n, RetryAfter: resetIn}, nil
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	v, err := r.Check(ctx, key, limit, window)
	return v.Allowed, err
}

// CompanyActionKey scopes a limit to one tenant and one action.
func CompanyActionKey(companyID, action string) string {
	return fmt.Sprintf("fiber:ratelimit:%s:%s", action, companyID)
}

//go:build !integration

package redis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opticalfiber-backend/internal/config"
	"opticalfiber-backend/internal/domain/model"
)

func setupRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli, err := NewClient(context.Background(), &config.RedisConfig{URL: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	return cli, mr
}

func TestClientOptions(t *testing.T) {
	t.Run("should take a bare address as is", func(t *testing.T) {
		opts, err := clientOptions(&config.RedisConfig{URL: "cache:6379", DB: 3})
		require.NoError(t, err)
		assert.Equal(t, "cache:6379", opts.Addr)
		assert.Equal(t, 3, opts.DB)
	})

	t.Run("should parse a url and let explicit settings win", func(t *testing.T) {
		opts, err := clientOptions(&config.RedisConfig{URL: "redis://:inurl@cache:6380/2", Password: "explicit"})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, "explicit", opts.Password)
		assert.Equal(t, 2, opts.DB)
	})

	t.Run("should reject a malformed url", func(t *testing.T) {
		_, err := clientOptions(&config.RedisConfig{URL: "redis://cache:6379/not-a-db"})
		assert.Error(t, err)
	})
}

func TestClient_KV(t *testing.T) {
	cli, _ := setupRedis(t)
	ctx := context.Background()

	_, err := cli.Load(ctx, "absent")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, cli.Store(ctx, "k", []byte("v"), time.Minute))
	got, err := cli.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, cli.Drop(ctx))
	require.NoError(t, cli.Drop(ctx, "k"))
	_, err = cli.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRateLimiter(t *testing.T) {
	cli, mr := setupRedis(t)
	rl := NewRateLimiter(cli)
	ctx := context.Background()
	key := CompanyActionKey("c1", "payment_initiate")

	t.Run("should allow up to the limit within a window", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, key, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "hit %d", i+1)
		}
		v, err := rl.Check(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, v.Allowed)
		assert.Equal(t, int64(4), v.Count)
		assert.True(t, v.RetryAfter > 0 && v.RetryAfter <= time.Minute, "retry after %s", v.RetryAfter)
	})

	t.Run("should reset after the window expires", func(t *testing.T) {
		mr.FastForward(61 * time.Second)
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("should keep companies apart", func(t *testing.T) {
		ok, err := rl.Allow(ctx, CompanyActionKey("c2", "payment_initiate"), 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("should give a counter without expiry a fresh window", func(t *testing.T) {
		stuck := CompanyActionKey("c3", "payment_initiate")
		require.NoError(t, mr.Set(stuck, "99"))

		v, err := rl.Check(ctx, stuck, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, v.Allowed)
		assert.True(t, mr.TTL(stuck) > 0, "expected an expiry to be set")

		mr.FastForward(61 * time.Second)
		ok, err := rl.Allow(ctx, stuck, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRedisLocker(t *testing.T) {
	cli, mr := setupRedis(t)
	ctx := context.Background()
	l := NewLocker(cli)

	token, err := l.TryLock(ctx, "lock:reconcile", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	t.Run("should refuse a second holder", func(t *testing.T) {
		_, err := l.TryLock(ctx, "lock:reconcile", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)
	})

	t.Run("should ignore unlock with a foreign token", func(t *testing.T) {
		require.NoError(t, l.Unlock(ctx, "lock:reconcile", "not-mine"))
		assert.True(t, mr.Exists("lock:reconcile"))
	})

	t.Run("should release with the owner token", func(t *testing.T) {
		require.NoError(t, l.Unlock(ctx, "lock:reconcile", token))
		assert.False(t, mr.Exists("lock:reconcile"))
		_, err := l.TryLock(ctx, "lock:reconcile", time.Minute)
		assert.NoError(t, err)
	})
}

func TestRouteCache(t *testing.T) {
	cli, mr := setupRedis(t)
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	cache := NewRouteCache(cli, time.Hour, &logger)

	r, err := model.NewFiberRoute("r1", "c1", "o1", "Ring A",
		[]model.Coordinate{{Lat: 12.9, Lng: 77.5}, {Lat: 12.95, Lng: 77.6}},
		decimal.RequireFromString("12.345"), "s1")
	require.NoError(t, err)

	t.Run("should miss on an empty cache", func(t *testing.T) {
		_, ok := cache.Get(ctx, "c1")
		assert.False(t, ok)
	})

	t.Run("should round-trip a listing", func(t *testing.T) {
		cache.Set(ctx, "c1", []*model.FiberRoute{r})
		assert.True(t, mr.Exists(RouteListKey("c1")))
		got, ok := cache.Get(ctx, "c1")
		require.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, "Ring A", got[0].Name)
		assert.True(t, got[0].LengthKM.Equal(r.LengthKM))
		assert.Len(t, got[0].Path, 2)
	})

	t.Run("should cache an empty listing as a hit", func(t *testing.T) {
		cache.Set(ctx, "c2", nil)
		got, ok := cache.Get(ctx, "c2")
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("should drop the entry on invalidate", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx, "c1"))
		_, ok := cache.Get(ctx, "c1")
		assert.False(t, ok)
	})

	t.Run("should treat a corrupt entry as a miss and delete it", func(t *testing.T) {
		require.NoError(t, mr.Set(RouteListKey("c3"), "{not json"))
		_, ok := cache.Get(ctx, "c3")
		assert.False(t, ok)
		assert.False(t, mr.Exists(RouteListKey("c3")))
	})

	t.Run("should expire with the ttl", func(t *testing.T) {
		cache.Set(ctx, "c4", []*model.FiberRoute{r})
		mr.FastForward(2 * time.Hour)
		_, ok := cache.Get(ctx, "c4")
		assert.False(t, ok)
	})
}

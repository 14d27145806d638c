package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"opticalfiber-backend/internal/config"
)

// ErrMiss is returned by Load when the key is absent or expired.
var ErrMiss = errors.New("redis: key not found")

const connectTimeout = 5 * time.Second

// KV is the byte store behind the route listing cache.
type KV interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Drop(ctx context.Context, keys ...string) error
}

var (
	_ KV      = (*Client)(nil)
	_ Counter = (*Client)(nil)
)

// Client is the single connection pool shared by the route cache, the
// initiation rate limiter and the reconciler lock.
type Client struct {
	cli *redis.Client
}

// NewClient connects and pings once so a bad address fails at startup.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Addr, err)
	}
	return &Client{cli: c}, nil
}

// clientOptions accepts either host:port or a redis:// URL. Non-empty
// password and db settings win over the ones embedded in the URL.
func clientOptions(cfg *config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.URL}
	if strings.Contains(cfg.URL, "://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis.url: %w", err)
		}
		opts = parsed
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return opts, nil
}

// Wrap adapts an already configured go-redis client.
func Wrap(c *redis.Client) *Client { return &Client{cli: c} }

func (c *Client) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := c.cli.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (c *Client) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.cli.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Drop(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.cli.Del(ctx, keys...).Err()
}

func (c *Client) Close() error { return c.cli.Close() }

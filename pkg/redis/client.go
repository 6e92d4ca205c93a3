package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-payments/pkg/config"
	"github.com/angelmondragon/storefront-payments/pkg/logger"
)

// Every key this service writes starts with "sf:".
const namespace = "sf"

const (
	kindIdempotency = "idempotency"
	kindLock        = "lock"
)

// Nil is returned by Get when the key does not exist.
var Nil = redis.Nil

var errNotConnected = errors.New("redis client not initialized")

// commands is the subset of go-redis the payment service relies on.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is what the webhook delivery guard needs.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Client backs the webhook delivery guard, admin replay storage and the
// cron lock.
type Client struct {
	cmd  commands
	conn *redis.Client
}

// New dials Redis and fails fast if the server does not answer PING.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"redis_addr": opts.Addr,
			"redis_db":   opts.DB,
			"pool_size":  opts.PoolSize,
		}), "redis connected")
	}
	return &Client{cmd: conn, conn: conn}, nil
}

// optionsFromConfig parses the URL; explicit config values fill whatever
// the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	for _, o := range []struct {
		dst *time.Duration
		val time.Duration
	}{
		{&opts.DialTimeout, cfg.DialTimeout},
		{&opts.ReadTimeout, cfg.ReadTimeout},
		{&opts.WriteTimeout, cfg.WriteTimeout},
	} {
		if o.val > 0 {
			*o.dst = o.val
		}
	}
	return opts, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotConnected
	}
	return c.cmd.Get(ctx, key).Result()
}

// SetNX reports whether this call created the key.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotConnected
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

// Set overwrites key with a fresh ttl.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// IdempotencyKey namespaces a dedupe key: sf:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(kindIdempotency, scope, id)
}

// LockKey namespaces a distributed lock: sf:lock:<name>.
func (c *Client) LockKey(name string) string {
	return joinKey(kindLock, name)
}

func joinKey(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

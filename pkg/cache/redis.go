package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrUnavailable is returned by every operation while the Redis server
// cannot be reached. Callers treat this as a degraded mode: log and continue
// with default/empty data, never fail the request.
var ErrUnavailable = errors.New("cache unavailable")

// ErrMiss is returned when a key does not exist.
var ErrMiss = errors.New("cache miss")

type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	// Timeout bounds dial, read and write operations.
	Timeout time.Duration
	// RedialInterval throttles reconnect attempts while the server is down.
	RedialInterval time.Duration
}

// ConfigFromEnv reads Redis config from environment variables.
func ConfigFromEnv() Config {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	return Config{
		Addr:           addr,
		Username:       os.Getenv("REDIS_USERNAME"),
		Password:       os.Getenv("REDIS_PASSWORD"),
		DB:             db,
		Timeout:        5 * time.Second,
		RedialInterval: 10 * time.Second,
	}
}

// Client wraps go-redis with lazy connection handling. The initial dial may
// fail without failing the application; subsequent calls retry at most once
// per RedialInterval and report ErrUnavailable in between.
type Client struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu       sync.Mutex
	rdb      *redis.Client
	lastDial time.Time
}

// New constructs a Client and attempts an initial connection. A failed dial
// is logged, not fatal.
func New(cfg Config, logger *zap.SugaredLogger) *Client {
	c := &Client{cfg: cfg, logger: logger}
	if _, err := c.pool(context.Background()); err != nil {
		logger.Warnw("redis unavailable, starting in degraded mode", "addr", cfg.Addr, "err", err)
	}
	return c
}

func (c *Client) pool(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rdb != nil {
		return c.rdb, nil
	}
	if !c.lastDial.IsZero() && time.Since(c.lastDial) < c.cfg.RedialInterval {
		return nil, ErrUnavailable
	}
	c.lastDial = time.Now()

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.cfg.Addr,
		Username:     c.cfg.Username,
		Password:     c.cfg.Password,
		DB:           c.cfg.DB,
		DialTimeout:  c.cfg.Timeout,
		ReadTimeout:  c.cfg.Timeout,
		WriteTimeout: c.cfg.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		c.logger.Warnw("redis ping failed", "addr", c.cfg.Addr, "err", err)
		return nil, ErrUnavailable
	}
	c.logger.Infow("redis connected", "addr", c.cfg.Addr, "db", c.cfg.DB)
	c.rdb = rdb
	return rdb, nil
}

// markDown drops the pooled client after a network-level failure so the next
// call re-dials.
func (c *Client) markDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rdb != nil {
		_ = c.rdb.Close()
		c.rdb = nil
	}
}

func (c *Client) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	c.markDown()
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Available reports whether the server currently answers PING.
func (c *Client) Available(ctx context.Context) bool {
	rdb, err := c.pool(ctx)
	if err != nil {
		return false
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		c.markDown()
		return false
	}
	return true
}

// Set stores a string value with a TTL (SETEX semantics).
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	rdb, err := c.pool(ctx)
	if err != nil {
		return err
	}
	return c.wrap(rdb.Set(ctx, key, value, ttl).Err())
}

// Get fetches a string value; ErrMiss when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	rdb, err := c.pool(ctx)
	if err != nil {
		return "", err
	}
	v, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return "", c.wrap(err)
	}
	return v, nil
}

// SetJSON marshals v and stores it with a TTL.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(ctx, key, string(b), ttl)
}

// GetJSON fetches a key and unmarshals it into dest.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) error {
	s, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), dest)
}

// Delete removes one or more keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rdb, err := c.pool(ctx)
	if err != nil {
		return err
	}
	return c.wrap(rdb.Del(ctx, keys...).Err())
}

// Keys returns all keys matching the given prefix using SCAN.
func (c *Client) Keys(ctx context.Context, prefix string) ([]string, error) {
	rdb, err := c.pool(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, c.wrap(err)
	}
	return out, nil
}

// DeleteByPrefix removes every key matching the prefix. Returns the number
// of keys removed.
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Incr increments a counter and applies the TTL on first increment.
func (c *Client) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	rdb, err := c.pool(ctx)
	if err != nil {
		return 0, err
	}
	n, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, c.wrap(err)
	}
	if n == 1 && ttl > 0 {
		_ = rdb.Expire(ctx, key, ttl).Err()
	}
	return n, nil
}

// TTL returns the remaining time to live of a key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	rdb, err := c.pool(ctx)
	if err != nil {
		return 0, err
	}
	d, err := rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, c.wrap(err)
	}
	return d, nil
}

// DBSize returns the number of keys in the current database.
func (c *Client) DBSize(ctx context.Context) (int64, error) {
	rdb, err := c.pool(ctx)
	if err != nil {
		return 0, err
	}
	n, err := rdb.DBSize(ctx).Result()
	if err != nil {
		return 0, c.wrap(err)
	}
	return n, nil
}

// Info returns the raw INFO output, optionally restricted to a section.
func (c *Client) Info(ctx context.Context, section ...string) (string, error) {
	rdb, err := c.pool(ctx)
	if err != nil {
		return "", err
	}
	s, err := rdb.Info(ctx, section...).Result()
	if err != nil {
		return "", c.wrap(err)
	}
	return s, nil
}

// Remember is a read-through helper: on a hit it decodes the cached JSON,
// otherwise it invokes the loader, caches the result best-effort and returns
// it. Cache failures never surface to the caller.
func Remember[T any](ctx context.Context, c *Client, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	var cached T
	if err := c.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, ErrMiss) && !errors.Is(err, ErrUnavailable) {
		c.logger.Warnw("cache read failed", "key", key, "err", err)
	}

	v, err := loader(ctx)
	if err != nil {
		return v, err
	}
	if err := c.SetJSON(ctx, key, v, ttl); err != nil && !errors.Is(err, ErrUnavailable) {
		c.logger.Warnw("cache write failed", "key", key, "err", err)
	}
	return v, nil
}

// HashKey builds a deterministic cache key from a prefix and the stringified
// query parts, keeping list-cache keys stable and bounded in length.
func HashKey(prefix string, parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"scoutgate/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConnector hands out sessions backed by dedicated connections checked
// out of a shared go-redis pool.
type RedisConnector struct {
	client  *redis.Client
	timeout time.Duration
	addr    string
	err     error
}

// NewRedisConnector builds a connector from a redis:// or rediss:// URL.
// A missing or unparsable URL is not returned as an error; it becomes the
// reason every session is unavailable. The token, when set, is used as the
// password unless the URL already carries one.
func NewRedisConnector(cfg models.StoreConfig) *RedisConnector {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if cfg.URL == "" {
		return &RedisConnector{timeout: timeout, err: ErrNotConfigured}
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return &RedisConnector{timeout: timeout, err: fmt.Errorf("parse redis url: %w", err)}
	}
	if opts.Password == "" && cfg.Token != "" {
		opts.Password = cfg.Token
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 1

	return &RedisConnector{
		client:  redis.NewClient(opts),
		timeout: timeout,
		addr:    opts.Addr,
	}
}

// Connect checks out one connection and verifies it with PING. Release
// returns the connection to the pool.
func (c *RedisConnector) Connect(ctx context.Context) *Session {
	if c.err != nil {
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypeRedis, "reason", c.err)
		return Unavailable(c.err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn := c.client.Conn()
	if err := conn.Ping(pingCtx).Err(); err != nil {
		_ = conn.Close()
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypeRedis, "addr", c.addr, "error", err)
		return Unavailable(fmt.Errorf("redis ping: %w", err))
	}

	return Available(&RedisStore{cmd: conn}, func() {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to release redis connection", "error", err)
		}
	})
}

// Close shuts down the connection pool.
func (c *RedisConnector) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// commander is the subset of go-redis commands shared by *redis.Client and
// *redis.Conn.
type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore adapts a go-redis client or connection to Store.
type RedisStore struct {
	cmd commander
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{cmd: client}
}

// Get reads key with GET, mapping redis.Nil to not found.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set writes key with no expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.cmd.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Incr runs INCR on key.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.cmd.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

// Expire runs EXPIRE on key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.cmd.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	return nil
}

// Delete runs DEL on key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.cmd.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"scoutgate/internal/models"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ
)`

// PostgresConnector stores entries in a kv_entries table and hands out
// sessions backed by connections acquired from a pgx pool.
type PostgresConnector struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	err     error

	mu          sync.Mutex
	schemaReady bool
}

// NewPostgresConnector creates the pool without dialing. An empty or invalid
// DSN makes every session unavailable.
func NewPostgresConnector(cfg models.StoreConfig) *PostgresConnector {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if cfg.Database.DSN == "" {
		return &PostgresConnector{timeout: timeout, err: ErrNotConfigured}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return &PostgresConnector{timeout: timeout, err: fmt.Errorf("parse postgres dsn: %w", err)}
	}
	if cfg.Database.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return &PostgresConnector{timeout: timeout, err: fmt.Errorf("failed to create connection pool: %w", err)}
	}

	return &PostgresConnector{pool: pool, timeout: timeout}
}

// Connect opens a session, reporting the store unavailable on failure.
func (c *PostgresConnector) Connect(ctx context.Context) *Session {
	if c.err != nil {
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypePostgres, "reason", c.err)
		return Unavailable(c.err)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.pool.Acquire(acquireCtx)
	if err != nil {
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypePostgres, "error", err)
		return Unavailable(fmt.Errorf("acquire postgres connection: %w", err))
	}

	if err := c.ensureSchema(acquireCtx, conn); err != nil {
		conn.Release()
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypePostgres, "error", err)
		return Unavailable(err)
	}

	return Available(&PostgresStore{q: conn}, conn.Release)
}

func (c *PostgresConnector) ensureSchema(ctx context.Context, conn *pgxpool.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schemaReady {
		return nil
	}
	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create kv_entries table: %w", err)
	}
	c.schemaReady = true
	return nil
}

// Close releases the connector's resources.
func (c *PostgresConnector) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

type pgQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a single pgx connection or pool.
type PostgresStore struct {
	q pgQuerier
}

// Get returns the value for key unless its row has expired.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.q.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres get: %w", err)
	}
	return value, true, nil
}

// Set upserts key and clears its expiry.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, NULL)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

// Incr restarts an expired counter at 1 in the same statement that bumps a
// live one, so concurrent increments never observe a stale row.
func (s *PostgresStore) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, '1', NULL)
		 ON CONFLICT (key) DO UPDATE SET
		   value = CASE
		     WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= now() THEN '1'
		     ELSE (kv_entries.value::bigint + 1)::text
		   END,
		   expires_at = CASE
		     WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= now() THEN NULL
		     ELSE kv_entries.expires_at
		   END
		 RETURNING value::bigint`,
		key,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres incr: %w", err)
	}
	return n, nil
}

// Expire sets the row expiry for key.
func (s *PostgresStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.q.Exec(ctx,
		`UPDATE kv_entries SET expires_at = now() + make_interval(secs => $2)
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key, ttl.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres expire: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

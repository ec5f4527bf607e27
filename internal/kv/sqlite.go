package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"scoutgate/internal/models"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER
)`

// SQLiteConnector stores entries in a local SQLite database. Expiry instants
// are epoch milliseconds computed from the connector's clock.
//
// The pool is capped at one connection: SQLite allows a single writer and an
// in-memory DSN is private to its connection.
type SQLiteConnector struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
	err     error

	mu          sync.Mutex
	schemaReady bool
}

// SQLiteOption configures a SQLiteConnector.
type SQLiteOption func(*SQLiteConnector)

// WithSQLiteClock overrides the time source used for expiry.
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(c *SQLiteConnector) {
		c.now = now
	}
}

func NewSQLiteConnector(cfg models.StoreConfig, opts ...SQLiteOption) *SQLiteConnector {
	c := &SQLiteConnector{
		timeout: cfg.ConnectTimeout,
		now:     time.Now,
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Database.DSN == "" {
		c.err = ErrNotConfigured
		return c
	}

	db, err := sql.Open("sqlite", cfg.Database.DSN)
	if err != nil {
		c.err = fmt.Errorf("failed to open database: %w", err)
		return c
	}
	db.SetMaxOpenConns(1)
	c.db = db
	return c
}

// Connect opens a session, reporting the store unavailable on failure.
func (c *SQLiteConnector) Connect(ctx context.Context) *Session {
	if c.err != nil {
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypeSQLite, "reason", c.err)
		return Unavailable(c.err)
	}

	connCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.db.Conn(connCtx)
	if err != nil {
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypeSQLite, "error", err)
		return Unavailable(fmt.Errorf("open sqlite connection: %w", err))
	}

	if err := c.ensureSchema(connCtx, conn); err != nil {
		_ = conn.Close()
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypeSQLite, "error", err)
		return Unavailable(err)
	}

	return Available(&SQLiteStore{conn: conn, now: c.now}, func() {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to release sqlite connection", "error", err)
		}
	})
}

func (c *SQLiteConnector) ensureSchema(ctx context.Context, conn *sql.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schemaReady {
		return nil
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create kv_entries table: %w", err)
	}
	c.schemaReady = true
	return nil
}

// Close releases the connector's resources.
func (c *SQLiteConnector) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SQLiteStore implements Store on a single database/sql connection.
type SQLiteStore struct {
	conn *sql.Conn
	now  func() time.Time
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Get returns the value for key unless its row has expired.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ?1 AND (expires_at IS NULL OR expires_at > ?2)`,
		key, s.nowMillis(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite get: %w", err)
	}
	return value, true, nil
}

// Set upserts key and clears its expiry.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?1, ?2, NULL)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = NULL`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

// Incr bumps the counter at key in one upsert, restarting an expired counter at 1.
func (s *SQLiteStore) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?1, '1', NULL)
		 ON CONFLICT(key) DO UPDATE SET
		   value = CASE
		     WHEN expires_at IS NOT NULL AND expires_at <= ?2 THEN '1'
		     ELSE CAST(CAST(value AS INTEGER) + 1 AS TEXT)
		   END,
		   expires_at = CASE
		     WHEN expires_at IS NOT NULL AND expires_at <= ?2 THEN NULL
		     ELSE expires_at
		   END
		 RETURNING CAST(value AS INTEGER)`,
		key, s.nowMillis(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite incr: %w", err)
	}
	return n, nil
}

// Expire sets the row expiry for key.
func (s *SQLiteStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	now := s.nowMillis()
	_, err := s.conn.ExecContext(ctx,
		`UPDATE kv_entries SET expires_at = ?2
		 WHERE key = ?1 AND (expires_at IS NULL OR expires_at > ?3)`,
		key, now+ttl.Milliseconds(), now,
	)
	if err != nil {
		return fmt.Errorf("sqlite expire: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?1`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

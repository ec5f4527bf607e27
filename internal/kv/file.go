package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"scoutgate/internal/models"
	"sync"
	"time"
)

// fileData is the on-disk layout of a FileConnector.
type fileData struct {
	Entries     map[string]fileEntry `json:"entries"`
	LastUpdated time.Time            `json:"last_updated"`
}

type fileEntry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// FileConnector persists a MemoryStore to a JSON file after every write. It
// suits single-instance deployments that want state to survive restarts
// without running a database.
//
// The file is loaded lazily on the first Connect; a load failure makes that
// session unavailable and is retried on the next Connect.
type FileConnector struct {
	path string

	mu     sync.Mutex // guards loaded and serializes file writes
	loaded bool
	mem    *MemoryStore
}

// NewFileConnector builds a connector for cfg.Path. An empty path yields
// sessions that are always unavailable.
func NewFileConnector(cfg models.StoreConfig, opts ...MemoryOption) *FileConnector {
	return &FileConnector{
		path: cfg.Path,
		mem:  NewMemoryStore(opts...),
	}
}

// Connect opens a session, reporting the store unavailable on failure.
func (c *FileConnector) Connect(ctx context.Context) *Session {
	if c.path == "" {
		return Unavailable(ErrNotConfigured)
	}
	if err := c.ensureLoaded(); err != nil {
		slog.Warn("Key-value store unavailable", "backend", models.StoreTypeFile, "error", err)
		return Unavailable(err)
	}
	return Available(&fileStore{conn: c}, nil)
}

// Close releases the connector's resources.
func (c *FileConnector) Close() error {
	return nil
}

// ensureLoaded reads the file once, creating it with empty data if it does
// not exist yet.
func (c *FileConnector) ensureLoaded() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	raw, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := c.saveLocked(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to read file: %w", err)
	default:
		var data fileData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("failed to unmarshal JSON: %w", err)
		}
		c.restore(data)
	}

	c.loaded = true
	return nil
}

// restore replaces the in-memory entries with data, dropping expired ones.
func (c *FileConnector) restore(data fileData) {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	now := c.mem.now()
	c.mem.entries = make(map[string]memoryEntry, len(data.Entries))
	for key, e := range data.Entries {
		entry := memoryEntry{value: e.Value}
		if e.ExpiresAt != nil {
			if !now.Before(*e.ExpiresAt) {
				continue
			}
			entry.expiresAt = *e.ExpiresAt
		}
		c.mem.entries[key] = entry
	}
}

// snapshot copies the live entries into their on-disk form.
func (c *FileConnector) snapshot() fileData {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	data := fileData{Entries: make(map[string]fileEntry, len(c.mem.entries))}
	for key := range c.mem.entries {
		e, ok := c.mem.lookup(key)
		if !ok {
			continue
		}
		entry := fileEntry{Value: e.value}
		if !e.expiresAt.IsZero() {
			expiresAt := e.expiresAt.UTC()
			entry.ExpiresAt = &expiresAt
		}
		data.Entries[key] = entry
	}
	return data
}

// save writes the current entries to disk.
func (c *FileConnector) save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

// saveLocked writes through a temp file and rename so readers never see a
// partial file. Callers must hold c.mu.
func (c *FileConnector) saveLocked() error {
	data := c.snapshot()
	data.LastUpdated = time.Now().UTC()

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

// fileStore delegates to the connector's MemoryStore and persists after each
// mutation.
type fileStore struct {
	conn *FileConnector
}

func (s *fileStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.conn.mem.Get(ctx, key)
}

func (s *fileStore) Set(ctx context.Context, key, value string) error {
	if err := s.conn.mem.Set(ctx, key, value); err != nil {
		return err
	}
	return s.conn.save()
}

func (s *fileStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.conn.mem.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := s.conn.save(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *fileStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.conn.mem.Expire(ctx, key, ttl); err != nil {
		return err
	}
	return s.conn.save()
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	if err := s.conn.mem.Delete(ctx, key); err != nil {
		return err
	}
	return s.conn.save()
}

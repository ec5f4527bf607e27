package kv

import (
	"context"
	"fmt"
	"scoutgate/internal/models"
)

// NewConnector instantiates a connector for the configured backend.
// Supported types:
//   - redis: go-redis pool, one checked-out connection per session
//   - postgres: pgx pool, kv_entries table
//   - sqlite: modernc.org/sqlite, kv_entries table
//   - file: process-local, persisted to a JSON file
//   - memory: process-local, always available
//   - none: every session is unavailable
func NewConnector(cfg models.StoreConfig) (Connector, error) {
	switch cfg.Type {
	case models.StoreTypeRedis:
		return NewRedisConnector(cfg), nil
	case models.StoreTypePostgres:
		return NewPostgresConnector(cfg), nil
	case models.StoreTypeSQLite:
		return NewSQLiteConnector(cfg), nil
	case models.StoreTypeFile:
		return NewFileConnector(cfg), nil
	case models.StoreTypeMemory:
		return NewMemoryStore(), nil
	case models.StoreTypeNone:
		return DisabledConnector{}, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// SupportedTypes returns every store type NewConnector accepts.
func SupportedTypes() []string {
	return []string{models.StoreTypeRedis, models.StoreTypePostgres, models.StoreTypeSQLite, models.StoreTypeFile, models.StoreTypeMemory, models.StoreTypeNone}
}

// DisabledConnector never yields a store.
type DisabledConnector struct{}

func (DisabledConnector) Connect(ctx context.Context) *Session {
	return Unavailable(ErrNotConfigured)
}

func (DisabledConnector) Close() error {
	return nil
}

// Package introspect reads the live table layout of the database and keeps
// it in a TTL cache so generated statements can skip attributes that have
// no backing column.
package introspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/FLORENTA/MiniFramework-sub000/internal/cache"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/query"
)

// cacheKey is the key the table layout is stored under
const cacheKey = "schema:tables_columns"

// ErrCache is matched by every CacheError via errors.Is
var ErrCache = errors.New("cache error")

// CacheError reports an unreadable or malformed cache payload
type CacheError struct {
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("schema cache %s: %v", e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCache) true for any CacheError
func (e *CacheError) Is(target error) bool { return target == ErrCache }

// ConnectionProvider hands out the database handle and its dialect
type ConnectionProvider interface {
	GetConnection(ctx context.Context) (*sql.DB, error)
	Dialect() dialect.Dialect
}

// SchemaCache caches the table -> columns layout of the connected database.
// Concurrent misses trigger a single introspection query.
type SchemaCache struct {
	conn    ConnectionProvider
	backend cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

// NewSchemaCache creates a schema cache. A zero ttl defers to the backend
// default.
func NewSchemaCache(conn ConnectionProvider, backend cache.Cache, ttl time.Duration, logger *zap.Logger) *SchemaCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaCache{conn: conn, backend: backend, ttl: ttl, logger: logger}
}

// TablesColumns returns the column names of every table, in ordinal order
func (s *SchemaCache) TablesColumns(ctx context.Context) (map[string][]string, error) {
	payload, err := s.backend.Get(ctx, cacheKey)
	if err == nil {
		var layout map[string][]string
		if err := json.Unmarshal(payload, &layout); err != nil {
			return nil, &CacheError{Key: cacheKey, Err: err}
		}
		return layout, nil
	}
	if !cache.IsCacheMiss(err) {
		return nil, &CacheError{Key: cacheKey, Err: err}
	}

	result, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		return s.regenerate(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]string), nil
}

// Columns returns the columns of one table. ok is false when the table is
// unknown to the database.
func (s *SchemaCache) Columns(ctx context.Context, table string) ([]string, bool, error) {
	layout, err := s.TablesColumns(ctx)
	if err != nil {
		return nil, false, err
	}
	columns, ok := layout[table]
	return columns, ok, nil
}

// Invalidate drops the cached layout; the next read introspects again
func (s *SchemaCache) Invalidate(ctx context.Context) error {
	return s.backend.Delete(ctx, cacheKey)
}

// Refresh introspects immediately and replaces the cached layout
func (s *SchemaCache) Refresh(ctx context.Context) (map[string][]string, error) {
	if err := s.Invalidate(ctx); err != nil {
		return nil, &CacheError{Key: cacheKey, Err: err}
	}
	return s.TablesColumns(ctx)
}

func (s *SchemaCache) regenerate(ctx context.Context) (map[string][]string, error) {
	layout, err := s.introspect(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(layout)
	if err != nil {
		return nil, &CacheError{Key: cacheKey, Err: err}
	}
	if err := s.backend.Set(ctx, cacheKey, payload, s.ttl); err != nil {
		// the layout is still valid for this call
		s.logger.Warn("failed to store schema layout", zap.Error(err))
	}

	s.logger.Info("schema layout regenerated", zap.Int("tables", len(layout)))
	return layout, nil
}

func (s *SchemaCache) introspect(ctx context.Context) (map[string][]string, error) {
	db, err := s.conn.GetConnection(ctx)
	if err != nil {
		return nil, err
	}

	q := s.conn.Dialect().ColumnsQuery()
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, &query.StatementError{Query: q, Err: err}
	}
	defer rows.Close()

	layout := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, &query.StatementError{Query: q, Err: err}
		}
		layout[table] = append(layout[table], column)
	}
	if err := rows.Err(); err != nil {
		return nil, &query.StatementError{Query: q, Err: err}
	}
	return layout, nil
}

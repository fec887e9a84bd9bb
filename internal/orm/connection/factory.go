// Package connection provides the lazily established database handle shared
// by the entity manager and repositories.
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
)

// Config holds connection settings
type Config struct {
	// Driver is a database/sql driver name: pgx, postgres, mysql or sqlite3
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Factory opens the connection on first use and hands out the same handle
// afterwards
type Factory struct {
	config  Config
	dialect dialect.Dialect
	logger  *zap.Logger

	once sync.Once
	db   *sql.DB
	err  error
}

// NewFactory validates the driver and returns an unopened factory
func NewFactory(cfg Config, logger *zap.Logger) (*Factory, error) {
	d, err := dialect.ForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{config: cfg, dialect: d, logger: logger}, nil
}

// FromDB wraps an already opened handle (tests, embedding applications)
func FromDB(db *sql.DB, d dialect.Dialect) *Factory {
	f := &Factory{dialect: d, logger: zap.NewNop(), db: db}
	f.once.Do(func() {})
	return f
}

// GetConnection returns the shared handle, opening and pinging it on the
// first call
func (f *Factory) GetConnection(ctx context.Context) (*sql.DB, error) {
	f.once.Do(func() {
		f.db, f.err = f.open(ctx)
	})
	return f.db, f.err
}

// Dialect returns the SQL dialect of the connection
func (f *Factory) Dialect() dialect.Dialect {
	return f.dialect
}

// Close closes the handle if it was opened
func (f *Factory) Close() error {
	if f.db == nil {
		return nil
	}
	return f.db.Close()
}

func (f *Factory) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(f.config.Driver, f.config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", f.config.Driver, err)
	}

	if f.config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(f.config.MaxOpenConns)
	}
	if f.config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(f.config.MaxIdleConns)
	}
	if f.config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(f.config.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	f.logger.Info("database connection established",
		zap.String("driver", f.config.Driver),
		zap.String("dialect", f.dialect.Name()))
	return db, nil
}

// Package orm wires the metadata store, connection, schema cache, entity
// manager and repositories into one handle.
package orm

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/cache"
	"github.com/FLORENTA/MiniFramework-sub000/internal/cli/config"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/codegen"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/connection"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/crud"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/hooks"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/introspect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/repository"
)

// Options configures Open
type Options struct {
	Database   connection.Config
	MappingDir string

	// CacheBackend is memory, file or redis
	CacheBackend string
	CacheTTL     time.Duration
	CachePrefix  string
	CacheDir     string
	Redis        cache.RedisConfig

	// Types maps entity names to custom factories
	Types map[string]entity.Factory

	Logger *zap.Logger
}

// OptionsFromConfig converts the loaded relmap configuration
func OptionsFromConfig(cfg *config.Config, logger *zap.Logger) Options {
	return Options{
		Database: connection.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		},
		MappingDir:   cfg.Mapping.Dir,
		CacheBackend: cfg.Cache.Backend,
		CacheTTL:     cfg.Cache.TTL,
		CachePrefix:  cfg.Cache.Prefix,
		CacheDir:     cfg.Cache.Dir,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		},
		Logger: logger,
	}
}

// ORM is the entry point of an application: one per database
type ORM struct {
	store     *metadata.Store
	conn      *connection.Factory
	backend   cache.Cache
	schema    *introspect.SchemaCache
	manager   *crud.EntityManager
	hooks     *hooks.Executor
	generator *codegen.DDLGenerator
	logger    *zap.Logger

	mu     sync.Mutex
	models map[string]*repository.Model
}

// Open loads the mapping descriptors and prepares the components. The
// database connection itself is established on first use.
func Open(ctx context.Context, opts Options) (*ORM, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := metadata.NewStore(logger)
	for name, factory := range opts.Types {
		store.RegisterType(name, factory)
	}
	if err := store.Load(opts.MappingDir); err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	conn, err := connection.NewFactory(opts.Database, logger)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(ctx, opts)
	if err != nil {
		return nil, err
	}

	schema := introspect.NewSchemaCache(conn, backend, opts.CacheTTL, logger)
	manager := crud.NewEntityManager(store, conn, schema, logger)
	executor := hooks.NewExecutor(logger)
	manager.SetHooks(executor)

	return &ORM{
		store:     store,
		conn:      conn,
		backend:   backend,
		schema:    schema,
		manager:   manager,
		hooks:     executor,
		generator: codegen.NewDDLGenerator(store, conn, schema, logger),
		logger:    logger,
		models:    make(map[string]*repository.Model),
	}, nil
}

func newBackend(ctx context.Context, opts Options) (cache.Cache, error) {
	cfg := cache.DefaultConfig()
	if opts.CacheTTL > 0 {
		cfg.DefaultTTL = opts.CacheTTL
	}
	if opts.CachePrefix != "" {
		cfg.Prefix = opts.CachePrefix
	}

	switch opts.CacheBackend {
	case "", "memory":
		return cache.NewMemoryCache(cfg), nil
	case "file":
		return cache.NewFileCache(opts.CacheDir, cfg)
	case "redis":
		redisCfg := opts.Redis
		redisCfg.Cache = cfg
		backend, err := cache.NewRedisCache(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", redisCfg.Addr, err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", opts.CacheBackend)
	}
}

// Store returns the metadata store
func (o *ORM) Store() *metadata.Store {
	return o.store
}

// Manager returns the entity manager
func (o *ORM) Manager() *crud.EntityManager {
	return o.manager
}

// Hooks returns the lifecycle hooks run by the entity manager
func (o *ORM) Hooks() *hooks.Executor {
	return o.hooks
}

// Generator returns the schema generator
func (o *ORM) Generator() *codegen.DDLGenerator {
	return o.generator
}

// Schema returns the schema cache
func (o *ORM) Schema() *introspect.SchemaCache {
	return o.schema
}

// Repository returns the model bound to an entity. Models are created once
// per entity name.
func (o *ORM) Repository(name string) (*repository.Model, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if model, ok := o.models[name]; ok {
		return model, nil
	}
	model, err := repository.NewModel(name, o.store, o.conn, o.logger)
	if err != nil {
		return nil, err
	}
	o.models[name] = model
	return model, nil
}

// Close releases the database handle and the cache backend
func (o *ORM) Close() error {
	err := o.conn.Close()
	if closer, ok := o.backend.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

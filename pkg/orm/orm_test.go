package orm_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FLORENTA/MiniFramework-sub000/internal/cache"
	"github.com/FLORENTA/MiniFramework-sub000/internal/cli/config"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/connection"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/hooks"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/ormtest"
	"github.com/FLORENTA/MiniFramework-sub000/pkg/orm"
)

func sqliteOptions(t *testing.T) orm.Options {
	t.Helper()
	return orm.Options{
		Database: connection.Config{
			Driver:       "sqlite3",
			DSN:          filepath.Join(t.TempDir(), "app.db") + "?_foreign_keys=on",
			MaxOpenConns: 1,
		},
		MappingDir: ormtest.WriteMapping(t),
	}
}

func open(t *testing.T, opts orm.Options) *orm.ORM {
	t.Helper()
	o, err := orm.Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestOpen_EndToEnd(t *testing.T) {
	ctx := context.Background()
	o := open(t, sqliteOptions(t))
	require.NoError(t, o.Generator().Execute(ctx))

	author := entity.NewRecord("Author")
	author.Set("name", "Ursula")
	for _, title := range []string{"Earthsea", "The Dispossessed"} {
		book := entity.NewRecord("Book")
		book.Set("title", title)
		author.AddRelated("books", book)
	}
	require.NoError(t, o.Manager().Persist(ctx, author))
	require.NotNil(t, author.Get("id"))

	authors, err := o.Repository("Author")
	require.NoError(t, err)

	found, err := authors.Find(ctx, author.Get("id"))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Ursula", found.Get("name"))
	assert.Len(t, found.Related("books"), 2)

	books, err := o.Repository("Book")
	require.NoError(t, err)
	n, err := books.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOpen_HooksReachManager(t *testing.T) {
	ctx := context.Background()
	o := open(t, sqliteOptions(t))
	require.NoError(t, o.Generator().Execute(ctx))

	persisted := 0
	o.Hooks().Register("Tag", hooks.PostPersist, func(*hooks.Context, entity.Entity) error {
		persisted++
		return nil
	})

	tag := entity.NewRecord("Tag")
	tag.Set("label", "go")
	require.NoError(t, o.Manager().Persist(ctx, tag))
	assert.Equal(t, 1, persisted)
}

func TestOpen_SchemaCacheInvalidatedBySchemaRun(t *testing.T) {
	ctx := context.Background()
	o := open(t, sqliteOptions(t))

	tables, err := o.Schema().TablesColumns(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)

	require.NoError(t, o.Generator().Execute(ctx))

	columns, ok, err := o.Schema().Columns(ctx, "book")
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"id", "title", "published_at", "author_id"}, columns)
}

func TestOpen_RepositoryIsShared(t *testing.T) {
	o := open(t, sqliteOptions(t))

	first, err := o.Repository("Tag")
	require.NoError(t, err)
	second, err := o.Repository("Tag")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = o.Repository("Warehouse")
	assert.ErrorIs(t, err, metadata.ErrMetadata)
}

func TestOpen_CustomTypes(t *testing.T) {
	opts := sqliteOptions(t)
	calls := 0
	opts.Types = map[string]entity.Factory{
		"Tag": func() entity.Entity {
			calls++
			return entity.NewRecord("Tag")
		},
	}
	o := open(t, opts)

	o.Store().Factory("Tag")()
	assert.Equal(t, 1, calls)
}

func TestOpen_MissingMappingDir(t *testing.T) {
	opts := sqliteOptions(t)
	opts.MappingDir = filepath.Join(t.TempDir(), "missing")

	_, err := orm.Open(context.Background(), opts)
	assert.Error(t, err)
}

func TestOpen_InvalidMapping(t *testing.T) {
	opts := sqliteOptions(t)
	opts.MappingDir = ormtest.WriteMapping(t, ormtest.Book)

	_, err := orm.Open(context.Background(), opts)
	assert.ErrorIs(t, err, metadata.ErrMetadata)
}

func TestOpen_UnknownDriver(t *testing.T) {
	opts := sqliteOptions(t)
	opts.Database.Driver = "oracle"

	_, err := orm.Open(context.Background(), opts)
	assert.Error(t, err)
}

func TestOpen_CacheBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	t.Run("file", func(t *testing.T) {
		opts := sqliteOptions(t)
		opts.CacheBackend = "file"
		opts.CacheDir = t.TempDir()
		o := open(t, opts)
		require.NoError(t, o.Generator().Execute(context.Background()))

		_, ok, err := o.Schema().Columns(context.Background(), "tag")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("redis", func(t *testing.T) {
		opts := sqliteOptions(t)
		opts.CacheBackend = "redis"
		opts.CachePrefix = "test:"
		opts.Redis = cache.RedisConfig{Addr: mr.Addr()}
		o := open(t, opts)
		require.NoError(t, o.Generator().Execute(context.Background()))

		_, ok, err := o.Schema().Columns(context.Background(), "tag")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, mr.Exists("test:schema:tables_columns"))
	})

	t.Run("unknown", func(t *testing.T) {
		opts := sqliteOptions(t)
		opts.CacheBackend = "memcached"
		_, err := orm.Open(context.Background(), opts)
		assert.Error(t, err)
	})
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "pgx", DSN: "postgres://localhost/app", MaxOpenConns: 4},
		Mapping:  config.MappingConfig{Dir: "mapping"},
		Cache: config.CacheConfig{
			Backend: "redis",
			Prefix:  "app:",
			Redis:   config.RedisConfig{Addr: "cache:6379", DB: 1},
		},
	}

	opts := orm.OptionsFromConfig(cfg, nil)
	assert.Equal(t, "pgx", opts.Database.Driver)
	assert.Equal(t, 4, opts.Database.MaxOpenConns)
	assert.Equal(t, "mapping", opts.MappingDir)
	assert.Equal(t, "redis", opts.CacheBackend)
	assert.Equal(t, "cache:6379", opts.Redis.Addr)
	assert.Equal(t, 1, opts.Redis.DB)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "relmap.db", cfg.Database.DSN)
	assert.Equal(t, "config/mapping", cfg.Mapping.Dir)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "relmap:", cfg.Cache.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	content := `
database:
  driver: pgx
  dsn: postgres://localhost/app
  max_open_conns: 8
mapping:
  dir: mapping
cache:
  backend: redis
  ttl: 30s
  redis:
    addr: cache:6379
    db: 2
log:
  level: debug
  development: true
`
	require.NoError(t, os.WriteFile("relmap.yml", []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/app", cfg.Database.DSN)
	assert.Equal(t, 8, cfg.Database.MaxOpenConns)
	assert.Equal(t, "mapping", cfg.Mapping.Dir)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RELMAP_DATABASE_DRIVER", "mysql")
	t.Setenv("DATABASE_URL", "user:pass@/app")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "user:pass@/app", cfg.Database.DSN)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidBackend(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("relmap.yml", []byte("cache:\n  backend: memcached\n"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestLoad_FromNestedDirectory(t *testing.T) {
	root := t.TempDir()
	content := "mapping:\n  dir: mapping\ncache:\n  dir: /var/cache/relmap\nlog:\n  level: warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "relmap.yml"), []byte(content), 0644))
	nested := filepath.Join(root, "internal", "app")
	require.NoError(t, os.MkdirAll(nested, 0755))
	chdir(t, nested)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/var/cache/relmap", cfg.Cache.Dir)

	got := cfg.Mapping.Dir
	require.True(t, filepath.IsAbs(got))
	assert.Equal(t, "mapping", filepath.Base(got))

	want, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(filepath.Dir(got))
	assert.Equal(t, want, gotRoot)
}

func TestGetProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "relmap.yml"), []byte(""), 0644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	chdir(t, nested)

	got, err := GetProjectRoot()
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, want, gotResolved)
}

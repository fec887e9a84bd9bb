package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the relmap configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Mapping  MappingConfig  `mapstructure:"mapping"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MappingConfig locates the entity descriptors
type MappingConfig struct {
	Dir string `mapstructure:"dir"`
}

// CacheConfig configures the schema cache backend
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
	Dir     string        `mapstructure:"dir"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the redis connection of the redis cache backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads the configuration from relmap.yml or relmap.yaml in the
// working directory, or in the nearest parent directory holding one
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads the configuration from path, or from the project root
// when path is empty. Relative directories of a configuration found in a
// parent directory are resolved against that directory.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "relmap.db")
	v.SetDefault("mapping.dir", "config/mapping")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.prefix", "relmap:")
	v.SetDefault("cache.dir", "var/cache")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("log.level", "info")

	var root string
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := GetProjectRoot(); err == nil {
			if wd, _ := os.Getwd(); dir != wd {
				root = dir
				v.AddConfigPath(dir)
			}
		}
	}

	v.SetEnvPrefix("RELMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.DSN = url
	}

	if root != "" {
		config.Mapping.Dir = resolveDir(root, config.Mapping.Dir)
		config.Cache.Dir = resolveDir(root, config.Cache.Dir)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func resolveDir(root, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// GetProjectRoot tries to find the project root by looking for relmap.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"relmap.yml", "relmap.yaml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a relmap project (no relmap.yml found)")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Database.Driver == "" {
		return fmt.Errorf("database.driver must be set")
	}
	switch cfg.Cache.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory, file or redis, got: %s", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got: %s", cfg.Cache.TTL)
	}
	return nil
}

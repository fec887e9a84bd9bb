package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileCache keeps one file per key in a directory. Expiry is derived from
// the file modification time.
type FileCache struct {
	dir    string
	config Config
}

// NewFileCache creates a file cache rooted at dir, creating it if needed
func NewFileCache(dir string, config Config) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir, config: config}, nil
}

// Get reads a value unless the file is older than the default TTL
func (f *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := f.path(key)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMiss{Key: key}
	}
	if err != nil {
		return nil, err
	}

	if f.config.DefaultTTL > 0 && time.Since(info.ModTime()) > f.config.DefaultTTL {
		os.Remove(path)
		return nil, ErrCacheMiss{Key: key}
	}

	return os.ReadFile(path)
}

// Set writes the value through a temporary file and a rename so readers
// never observe a partial payload. Per-key TTLs are not supported; the
// default TTL governs every entry.
func (f *FileCache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

// Delete removes the file backing key
func (f *FileCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileCache) path(key string) string {
	name := unsafeKeyChars.ReplaceAllString(f.config.Prefix+key, "_")
	return filepath.Join(f.dir, name+".cache")
}

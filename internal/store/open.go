package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Backends lists every backend name.
var Backends = []string{BackendFile, BackendSQLite, BackendRedis, BackendMemory}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir is the File root, and the default parent of the SQLite database.
	Dir        string
	SQLitePath string
	Redis      RedisOptions
}

// Open returns the configured backend.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFile(opts.Dir)
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			dir := opts.Dir
			if dir == "" {
				d, err := DefaultDir()
				if err != nil {
					return nil, err
				}
				dir = d
			}
			if _, err := NewFile(dir); err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "prayerd.db")
		}
		return NewSQLite(path)
	case BackendRedis:
		return NewRedis(ctx, opts.Redis)
	case BackendMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}

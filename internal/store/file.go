package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileSuffix = ".json"

// File stores one file per key under a directory.
type File struct {
	dir string
}

// DefaultDir returns ~/.cache/prayerd.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "prayerd"), nil
}

// NewFile creates a File store rooted at the given directory.
// If dir is empty, it defaults to ~/.cache/prayerd/.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
	}

	return &File{dir: dir}, nil
}

// Dir returns the root directory.
func (f *File) Dir() string { return f.dir }

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+fileSuffix)
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Set writes through a temp file and rename so readers never see a partial value.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (f *File) Remove(_ context.Context, key string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (f *File) Scan(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", f.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileSuffix))
	}
	return sortedWithPrefix(keys, prefix), nil
}

func (f *File) Close() error { return nil }

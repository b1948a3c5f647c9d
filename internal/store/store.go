// Package store is the key/value persistence layer: raw prayer days, fetch
// markers, alert preferences, notification records and display state all live
// under string keys in one of the KV backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// KV is a flat key/value store with prefix scans.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes a key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Scan returns every key starting with prefix, sorted.
	Scan(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// ValidKey reports whether key is usable by every backend.
func ValidKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid store key %q", key)
	}
	return nil
}

// GetJSON decodes the value under key into v.
func GetJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, data)
}

// RemovePrefix deletes every key with the given prefix and returns how many
// were removed.
func RemovePrefix(ctx context.Context, kv KV, prefix string) (int, error) {
	keys, err := kv.Scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for i, k := range keys {
		if err := kv.Remove(ctx, k); err != nil {
			return i, fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return len(keys), nil
}

func sortedWithPrefix(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

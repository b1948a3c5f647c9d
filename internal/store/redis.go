package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	// Namespace is prepended to every key, e.g. "prayerd:".
	Namespace string
	// Timeout bounds each operation when the caller's context has no deadline.
	Timeout time.Duration
}

// Redis stores keys in a Redis database under a namespace.
type Redis struct {
	Rdb     *redis.Client
	ns      string
	timeout time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	r := &Redis{Rdb: rdb, ns: opts.Namespace, timeout: opts.Timeout}

	ctx, cancel := r.opContext(ctx)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return r, nil
}

func (r *Redis) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	v, err := r.Rdb.Get(ctx, r.ns+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	if err := r.Rdb.Set(ctx, r.ns+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	if err := r.Rdb.Del(ctx, r.ns+key).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Scan walks the keyspace with SCAN so large databases are never blocked.
func (r *Redis) Scan(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	seen := make(map[string]struct{})
	iter := r.Rdb.Scan(ctx, 0, r.ns+prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), r.ns)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *Redis) Close() error {
	return r.Rdb.Close()
}

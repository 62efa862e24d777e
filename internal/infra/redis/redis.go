package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PayLink/config"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultNamespace   = "paylink"
)

// Keyspace prefixes every key PayLink writes so several deployments can share
// one Redis database.
type Keyspace string

// NewKeyspace trims separators from namespace, falling back to "paylink".
func NewKeyspace(namespace string) Keyspace {
	namespace = strings.Trim(namespace, ": ")
	if namespace == "" {
		namespace = defaultNamespace
	}
	return Keyspace(namespace)
}

// Key joins parts under the namespace, e.g. "paylink:url:abc123".
func (k Keyspace) Key(parts ...string) string {
	return strings.Join(append([]string{string(k)}, parts...), ":")
}

// NewClient builds the client shared by the URL cache, the rate limiter and
// the health check, and verifies connectivity via PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := clientOptions(cfg)
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return rdb, nil
}

func clientOptions(cfg config.RedisConfig) *redis.Options {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	return &redis.Options{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dialTimeout,
		// Redirects must not stall on a slow cache; misses fall back to the database.
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/redis"
)

// redisKV adapts a database-bound Redis client to KV.
type redisKV struct {
	client *pkgredis.Client
}

func (r *redisKV) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	vals, err := r.client.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("mget %d keys: %w", len(keys), err)
	}
	out := make(map[string][]byte, len(vals))
	for k, v := range vals {
		out[k] = []byte(v)
	}
	return out, nil
}

func (r *redisKV) SetMany(ctx context.Context, updates map[string][]byte) error {
	vals := make(map[string]string, len(updates))
	for k, v := range updates {
		vals[k] = string(v)
	}
	if err := r.client.MSet(ctx, vals); err != nil {
		return fmt.Errorf("mset %d keys: %w", len(updates), err)
	}
	return nil
}

func (r *redisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := r.client.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (r *redisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, string(value)); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Redis is a Provider with one client per namespace, each bound to the
// logical database configured for that namespace.
type Redis struct {
	clients map[Namespace]*pkgredis.Client
	logger  *slog.Logger
}

// NewRedis connects one client per namespace. Every namespace must have a
// database assigned in cfg.Databases.
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	r := &Redis{
		clients: make(map[Namespace]*pkgredis.Client, len(AllNamespaces)),
		logger:  slog.Default().With("component", "redis-store"),
	}
	for _, ns := range AllNamespaces {
		db, ok := cfg.Databases[ns.String()]
		if !ok {
			r.Close()
			return nil, fmt.Errorf("no redis database configured for namespace %s", ns)
		}
		client, err := pkgredis.NewClient(cfg, db)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("connecting namespace %s: %w", ns, err)
		}
		r.clients[ns] = client
		r.logger.Debug("namespace connected", "namespace", ns.String(), "db", db)
	}
	r.logger.Info("redis store ready", "addr", cfg.Addr, "namespaces", len(r.clients))
	return r, nil
}

func (r *Redis) Namespace(ns Namespace) KV {
	return &redisKV{client: r.clients[ns]}
}

// Ping checks every namespace connection.
func (r *Redis) Ping(ctx context.Context) error {
	for ns, c := range r.clients {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("namespace %s: %w", ns, err)
		}
	}
	return nil
}

// Close closes every namespace client, returning the first error.
func (r *Redis) Close() error {
	var firstErr error
	for ns, c := range r.clients {
		if err := c.Close(); err != nil {
			r.logger.Error("close failed", "namespace", ns.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

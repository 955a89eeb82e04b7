// Package redis provides a thin wrapper around go-redis/v9 bound to a single
// logical database, exposing the batched string operations the index
// namespaces are built on.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client selected onto one database.
type Client struct {
	rdb *redis.Client
	db  int
}

// NewClient creates a Redis client for the given database and verifies the
// connection with a PING.
func NewClient(cfg config.RedisConfig, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       db,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (db %d): %w", db, err)
	}
	return &Client{rdb: rdb, db: db}, nil
}

// DB returns the logical database number the client is bound to.
func (c *Client) DB() int {
	return c.db
}

// Get returns the value for key. ok is false when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	value, err = c.rdb.Get(ctx, key).Result()
	if IsNilError(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key without expiry.
func (c *Client) Set(ctx context.Context, key string, value string) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

// MGet fetches keys in one round trip. Missing keys are absent from the
// returned map.
func (c *Client) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected value type %T for key %q", v, keys[i])
		}
		out[keys[i]] = s
	}
	return out, nil
}

// MSet writes all pairs in one round trip.
func (c *Client) MSet(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	return c.rdb.MSet(ctx, pairs...).Err()
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Package cache keeps recent query reports in memory. Queries that vectorize
// to the same terms share an entry, and concurrent misses for one key run
// the query once.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/vector"
)

const DefaultSize = 256

type QueryCache struct {
	lru    *lru.Cache[string, *searcher.Report]
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(size int) *QueryCache {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[string, *searcher.Report](size)
	return &QueryCache{
		lru:    c,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached report for query or computes it. Degraded
// reports are returned but not cached, so the next request retries the
// failed indices. The bool reports a cache hit.
//
// A miss is computed once for all concurrent callers of the same key, under
// ctx's values but not its cancellation: a caller that goes away does not
// fail the others. computeFn must bound its own work.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	computeFn func(ctx context.Context) (*searcher.Report, error),
) (*searcher.Report, bool, error) {
	key := buildKey(query)
	if r, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		c.logger.Debug("cache hit", "query", query)
		return withQuery(r, query), true, nil
	}
	c.misses.Add(1)
	shared := context.WithoutCancel(ctx)
	val, err, _ := c.group.Do(key, func() (any, error) {
		r, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		if len(r.Degraded) == 0 {
			c.lru.Add(key, r)
		}
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return withQuery(val.(*searcher.Report), query), false, nil
}

// Purge drops every entry, e.g. after the indices were rebuilt.
func (c *QueryCache) Purge() {
	c.lru.Purge()
	c.logger.Info("cache purged")
}

func (c *QueryCache) Len() int {
	return c.lru.Len()
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// withQuery returns a shallow copy labelled with the caller's query text.
// Cached reports are shared and never mutated.
func withQuery(r *searcher.Report, query string) *searcher.Report {
	out := *r
	out.Query = query
	return &out
}

// buildKey hashes the query vector, so word order, case, punctuation and
// stopwords do not split the cache.
func buildKey(query string) string {
	v := vector.VectorizeQuery(query)
	var b strings.Builder
	for _, term := range v.Terms() {
		fmt.Fprintf(&b, "%s=%g;", term, v[term])
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash[:16])
}

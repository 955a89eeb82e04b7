package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
)

func newTestClient(t *testing.T, db int) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2}, db)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestClient_GetSet(t *testing.T) {
	c, _ := newTestClient(t, 0)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v"))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestClient_MGetMSet(t *testing.T) {
	c, _ := newTestClient(t, 3)
	ctx := context.Background()

	require.NoError(t, c.MSet(ctx, map[string]string{"a": "1", "b": "2"}))
	got, err := c.MGet(ctx, []string{"a", "missing", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)

	empty, err := c.MGet(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, c.MSet(ctx, nil))
}

func TestClient_DatabasesAreIsolated(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{Addr: mr.Addr(), PoolSize: 2}
	a, err := NewClient(cfg, 1)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewClient(cfg, 2)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "lactose", "x"))
	_, ok, err := b.Get(ctx, "lactose")
	require.NoError(t, err)
	assert.False(t, ok)
	raw, err := mr.DB(1).Get("lactose")
	require.NoError(t, err)
	assert.Equal(t, "x", raw)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewClient(config.RedisConfig{Addr: addr}, 0)
	assert.Error(t, err)
}

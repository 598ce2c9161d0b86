package redis

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache spins up an in-process Redis and connects a Cache to it.
func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port

	cache, err := NewCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return cache, mr
}

func TestCache_SetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	require.NoError(t, cache.Set(ctx, "k", payload{Name: "ace", Score: 1200}, time.Minute))

	var got payload
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, "ace", got.Name)
	assert.Equal(t, 1200, got.Score)
}

func TestCache_GetMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	var dest string
	err := cache.Get(context.Background(), "absent", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_SetNX(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := cache.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_DeleteByPattern(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetString(ctx, "lb:overall:p1", "a", time.Minute))
	require.NoError(t, cache.SetString(ctx, "lb:overall:p2", "b", time.Minute))
	require.NoError(t, cache.SetString(ctx, "lb:event:x:p1", "c", time.Minute))

	require.NoError(t, cache.DeleteByPattern(ctx, "lb:overall:*"))

	exists, err := cache.Exists(ctx, "lb:overall:p1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = cache.Exists(ctx, "lb:event:x:p1")
	require.NoError(t, err)
	assert.True(t, exists)
}

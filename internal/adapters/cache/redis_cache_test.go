package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/config"
)

type summary struct {
	Tools int             `json:"tools"`
	Fines decimal.Decimal `json:"fines"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got summary
	found, err := c.Get(ctx, "reports:summary", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := summary{Tools: 4, Fines: decimal.RequireFromString("25000.50")}
	require.NoError(t, c.Set(ctx, "reports:summary", want, time.Minute))
	assert.True(t, mr.Exists(KeyPrefix+"reports:summary"))

	found, err = c.Get(ctx, "reports:summary", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4, got.Tools)
	assert.True(t, want.Fines.Equal(got.Fines))

	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, "reports:summary", &got)
	require.NoError(t, err)
	assert.False(t, found, "expired")
}

func TestRedisCache_Delete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	require.NoError(t, c.Delete(ctx, "a", "b", "missing"))
	require.NoError(t, c.Delete(ctx))

	assert.False(t, mr.Exists(KeyPrefix+"a"))
	assert.False(t, mr.Exists(KeyPrefix+"b"))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(KeyPrefix+"reports:summary", "{not json"))

	var got summary
	_, err := c.Get(context.Background(), "reports:summary", &got)
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())

	mr.Close()
	_, err = Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	assert.Error(t, err)
}

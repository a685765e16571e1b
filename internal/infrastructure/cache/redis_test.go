package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*StatsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStatsCache(client, time.Minute), mr
}

type payload struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

func TestStatsCacheGetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got payload
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", payload{Month: "2026-03", Count: 2}))
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload{Month: "2026-03", Count: 2}, got)

	assert.Equal(t, time.Minute, mr.TTL("ledger:k"))
	mr.FastForward(2 * time.Minute)
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStatsCacheVersions(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	v, err := c.Version(ctx, "plan:1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, c.Bump(ctx, "plan:1", "global"))
	require.NoError(t, c.Bump(ctx, "plan:1"))

	v, err = c.Version(ctx, "plan:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	v, err = c.Version(ctx, "global")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestStatsCacheServerDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.Version(context.Background(), "global")
	assert.Error(t, err)
	assert.Error(t, c.Bump(context.Background(), "global"))
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute), mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var out map[string]int
	ok, err := c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "k", map[string]int{"a": 1}))
	ok, err = c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, out["a"])
	require.Equal(t, time.Minute, mr.TTL("k"))
}

func TestCacheDeletePrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, KeyCatalogList(""), []string{"a"}))
	require.NoError(t, c.SetJSON(ctx, KeyCatalogList("FTTP"), []string{"b"}))
	require.NoError(t, c.SetJSON(ctx, KeyAddress("nbn", "1 Main St"), "fttp"))

	require.NoError(t, c.DeletePrefix(ctx, CatalogPrefix()))
	require.False(t, mr.Exists(KeyCatalogList("")))
	require.False(t, mr.Exists(KeyCatalogList("fttp")))
	require.True(t, mr.Exists(KeyAddress("nbn", "1 Main St")))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ok, err := c.GetJSON(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.SetJSON(context.Background(), "k", 1))
	require.NoError(t, c.DeletePrefix(context.Background(), "k"))
}

func TestKeys(t *testing.T) {
	require.Equal(t, "catalog:products:list:all", KeyCatalogList("  "))
	require.Equal(t, "catalog:products:list:fttp", KeyCatalogList("FTTP"))
	require.Equal(t, KeyAddress("auto", "1  Main st"), KeyAddress("auto", "1 main ST"))
}

func TestLoadCachesOnMissOnly(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"fttp", "hfc"}, nil
	}

	got, err := Load(ctx, c, KeyCatalogList("fttp"), load)
	require.NoError(t, err)
	require.Equal(t, []string{"fttp", "hfc"}, got)
	got, err = Load(ctx, c, KeyCatalogList("fttp"), load)
	require.NoError(t, err)
	require.Equal(t, []string{"fttp", "hfc"}, got)
	require.Equal(t, 1, calls)
	require.True(t, mr.Exists(KeyCatalogList("fttp")))
}

func TestLoadDoesNotCacheErrors(t *testing.T) {
	c, mr := newTestCache(t)
	_, err := Load(context.Background(), c, "k", func(context.Context) (int, error) {
		return 0, context.DeadlineExceeded
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, mr.Exists("k"))
}

func TestLoadSurvivesBrokenRedis(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	got, err := Load(context.Background(), c, "k", func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	require.Equal(t, "fresh", got)

	got, err = Load(context.Background(), (*Cache)(nil), "k", func(context.Context) (string, error) { return "nil-cache", nil })
	require.NoError(t, err)
	require.Equal(t, "nil-cache", got)
}

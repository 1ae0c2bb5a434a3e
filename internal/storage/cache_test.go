package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "github.com/thirdweb-dev/archive-exporter/configs"
)

func exercisePageCache(t *testing.T, cache PageCache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	page := []byte(`[{"header":{"number":1}}]`)
	require.NoError(t, cache.Put(ctx, "page-1", page))

	got, ok, err := cache.Get(ctx, "page-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, page, got)

	// overwrite
	require.NoError(t, cache.Put(ctx, "page-1", []byte(`[]`)))
	got, ok, err = cache.Get(ctx, "page-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), got)
}

func TestMemoryCache(t *testing.T) {
	cache, err := NewMemoryCache(0)
	require.NoError(t, err)
	defer cache.Close()
	exercisePageCache(t, cache)
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	cache, err := NewMemoryCache(4)
	require.NoError(t, err)

	value := []byte("abc")
	require.NoError(t, cache.Put(context.Background(), "k", value))
	value[0] = 'z'

	got, ok, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryCacheEvicts(t *testing.T) {
	cache, err := NewMemoryCache(1)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "a", []byte("1")))
	require.NoError(t, cache.Put(ctx, "b", []byte("2")))

	_, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerCache(t *testing.T) {
	cache, err := newInMemoryBadgerCache()
	require.NoError(t, err)
	defer cache.Close()
	exercisePageCache(t, cache)
}

func TestBadgerCacheOnDisk(t *testing.T) {
	cache, err := NewBadgerCache(&config.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer cache.Close()
	exercisePageCache(t, cache)
}

func TestPebbleCache(t *testing.T) {
	cache, err := NewPebbleCache(&config.PebbleConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer cache.Close()
	exercisePageCache(t, cache)
}

func TestNewPageCacheSelectsBackend(t *testing.T) {
	cache, err := NewPageCache(nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)
	require.NoError(t, cache.Close())

	cache, err = NewPageCache(&config.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, cache)
	require.NoError(t, cache.Close())

	cache, err = NewPageCache(&config.CacheConfig{Pebble: &config.PebbleConfig{Path: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &PebbleCache{}, cache)
	require.NoError(t, cache.Close())

	cache, err = NewPageCache(&config.CacheConfig{
		Badger: &config.BadgerConfig{Path: t.TempDir()},
		Pebble: &config.PebbleConfig{Path: t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &BadgerCache{}, cache)
	require.NoError(t, cache.Close())
}

func TestNewPageCacheRedisUnreachable(t *testing.T) {
	_, err := NewPageCache(&config.CacheConfig{Redis: &config.RedisConfig{Addr: "127.0.0.1:1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestTTLFromSeconds(t *testing.T) {
	assert.Zero(t, ttlFromSeconds(0))
	assert.Zero(t, ttlFromSeconds(-5))
	assert.Equal(t, "30s", ttlFromSeconds(30).String())
}

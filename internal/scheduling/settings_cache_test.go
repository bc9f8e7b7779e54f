package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	settings AgentSettings
	err      error
	calls    int
}

func (c *countingLoader) AgentSettings(_ context.Context, tenantID string) (AgentSettings, error) {
	c.calls++
	out := c.settings
	out.TenantID = tenantID
	return out, c.err
}

func newCacheFixture(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestSettingsCache_HitsRedisAfterFirstLoad(t *testing.T) {
	mr, rdb := newCacheFixture(t)
	loader := &countingLoader{settings: AgentSettings{Enabled: true, InstanceName: "studio", Timezone: "America/Sao_Paulo"}}
	cache := NewSettingsCache(loader, rdb, time.Minute, nil)

	first, err := cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)
	second, err := cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, loader.calls)
	assert.True(t, mr.Exists("agent:settings:tenant-a"))

	mr.FastForward(2 * time.Minute)
	_, err = cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestSettingsCache_Invalidate(t *testing.T) {
	_, rdb := newCacheFixture(t)
	loader := &countingLoader{settings: AgentSettings{Enabled: true}}
	cache := NewSettingsCache(loader, rdb, time.Minute, nil)

	_, err := cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background(), "tenant-a"))
	_, err = cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestSettingsCache_LoaderErrorNotCached(t *testing.T) {
	mr, rdb := newCacheFixture(t)
	loader := &countingLoader{err: errors.New("db down")}
	cache := NewSettingsCache(loader, rdb, time.Minute, nil)

	_, err := cache.AgentSettings(context.Background(), "tenant-a")
	assert.Error(t, err)
	assert.False(t, mr.Exists("agent:settings:tenant-a"))
}

func TestSettingsCache_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := newCacheFixture(t)
	loader := &countingLoader{settings: AgentSettings{Enabled: true}}
	cache := NewSettingsCache(loader, rdb, time.Minute, nil)
	mr.Close()

	got, err := cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
}

func TestSettingsCache_NilRedis(t *testing.T) {
	loader := &countingLoader{settings: AgentSettings{Enabled: true}}
	cache := NewSettingsCache(loader, nil, 0, nil)

	_, err := cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)
	_, err = cache.AgentSettings(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
	assert.NoError(t, cache.Invalidate(context.Background(), "tenant-a"))
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"RateSentinel/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapClient implements the handful of commands RedisStore issues.
type mapClient struct {
	redis.UniversalClient
	data map[string]string
	ttls map[string]time.Duration
	fail error
}

func newMapClient() *mapClient {
	return &mapClient{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (c *mapClient) Get(_ context.Context, key string) *redis.StringCmd {
	if c.fail != nil {
		return redis.NewStringResult("", c.fail)
	}
	v, ok := c.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (c *mapClient) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	c.data[key] = string(value.([]byte))
	c.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (c *mapClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(c.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisStore_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	client := newMapClient()
	store := NewRedisStoreWithClient(client, "rs:", clock.Now)

	sample := model.RateSample{Symbol: "EURC", Rate: 1.08, Healthy: true}
	require.NoError(t, store.Put(ctx, "EURC", sample, 24*time.Hour))
	assert.Contains(t, client.data, "rs:EURC")
	assert.Equal(t, 24*time.Hour, client.ttls["rs:EURC"])

	got, ok, err := store.Get(ctx, "EURC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.08, got.Rate)

	// the key may outlive its TTL by up to a second in Redis
	clock.Advance(24 * time.Hour)
	_, ok, err = store.Get(ctx, "EURC")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "EURC"))
	_, ok, _ = store.Get(ctx, "EURC")
	assert.False(t, ok)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	client := newMapClient()
	store := NewRedisStoreWithClient(client, "rs:", nil)

	client.data["rs:BAD"] = "{not json"
	_, ok, err := store.Get(ctx, "BAD")
	assert.False(t, ok)
	assert.Error(t, err)

	client.fail = errors.New("connection reset")
	_, ok, err = store.Get(ctx, "EURC")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
}

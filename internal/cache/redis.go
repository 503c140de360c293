package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RateSentinel/internal/model"

	"github.com/go-redis/redis/v8"
)

// RedisStore shares samples between replicas through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewRedisStoreWithClient(client, opts.Prefix, nil), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, prefix: prefix, now: now}
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) (model.RateSample, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RateSample{}, false, nil
	}
	if err != nil {
		return model.RateSample{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return model.RateSample{}, false, fmt.Errorf("decode cached sample %s: %w", key, err)
	}
	// Redis expiry has second granularity; enforce ours exactly.
	if e.Expired(r.now()) {
		return model.RateSample{}, false, nil
	}
	return e.Sample, true, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, sample model.RateSample, ttl time.Duration) error {
	e := Entry{Sample: sample, ExpiresAt: r.now().Add(ttl)}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode sample %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

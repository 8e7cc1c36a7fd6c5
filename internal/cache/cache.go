// Package cache keeps read-through copies of event documents in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/eventlify-server/internal/metrics"
	"github.com/vovakirdan/eventlify-server/internal/store"
)

// ErrCacheMiss is returned when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "event"

// EventCache stores events by id.
type EventCache interface {
	Get(ctx context.Context, id string) (*store.Event, error)
	Set(ctx context.Context, ev *store.Event) error
	Delete(ctx context.Context, ids ...string) error
}

// RedisEventCache is an EventCache backed by Redis string keys with a TTL.
type RedisEventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisEventCache wraps an existing client.
func NewRedisEventCache(client *redis.Client, ttl time.Duration) *RedisEventCache {
	return &RedisEventCache{client: client, ttl: ttl}
}

func buildKey(id string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, id)
}

// Get returns the cached event or ErrCacheMiss.
func (c *RedisEventCache) Get(ctx context.Context, id string) (*store.Event, error) {
	data, err := c.client.Get(ctx, buildKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheRequests.WithLabelValues("miss").Inc()
			return nil, ErrCacheMiss
		}
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("get from redis: %w", err)
	}

	var ev store.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("unmarshal cached event: %w", err)
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return &ev, nil
}

// Set stores ev under its id.
func (c *RedisEventCache) Set(ctx context.Context, ev *store.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.client.Set(ctx, buildKey(ev.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set in redis: %w", err)
	}
	return nil
}

// Delete evicts the given events.
func (c *RedisEventCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = buildKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete from redis: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisEventCache) Close() error {
	return c.client.Close()
}

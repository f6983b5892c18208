package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"crm/internal/cache"
	"crm/internal/core"
)

// AlertCache stores the latest alert snapshot per calendar day.
type AlertCache interface {
	Get(ctx context.Context, day core.Date) (core.Alerts, bool)
	Set(ctx context.Context, day core.Date, alerts core.Alerts)
	Invalidate(ctx context.Context)
}

const alertCacheKeyPrefix = "crm:alerts:"

func alertCacheKey(day core.Date) string {
	return alertCacheKeyPrefix + day.String()
}

// RedisAlertCache shares alert snapshots between processes through Redis.
// Redis failures are treated as cache misses.
type RedisAlertCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisAlertCache(client *redis.Client, ttl time.Duration) *RedisAlertCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisAlertCache{redis: client, ttl: ttl}
}

func (c *RedisAlertCache) Get(ctx context.Context, day core.Date) (core.Alerts, bool) {
	if c.redis == nil {
		return core.Alerts{}, false
	}
	key := alertCacheKey(day)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "Alert cache read failed", "key", key, "error", err)
			_ = c.redis.Del(ctx, key).Err()
		}
		return core.Alerts{}, false
	}
	var alerts core.Alerts
	if err := json.Unmarshal(data, &alerts); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return core.Alerts{}, false
	}
	return alerts, true
}

func (c *RedisAlertCache) Set(ctx context.Context, day core.Date, alerts core.Alerts) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(alerts)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, alertCacheKey(day), data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Alert cache write failed", "error", err)
	}
}

// Invalidate drops every cached day.
func (c *RedisAlertCache) Invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, alertCacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.WarnContext(ctx, "Alert cache scan failed", "error", err)
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		slog.WarnContext(ctx, "Alert cache invalidation failed", "error", err)
	}
}

// LocalAlertCache keeps alert snapshots in the process LRU cache.
type LocalAlertCache struct {
	lru *cache.LRU[core.Date, core.Alerts]
}

// NewLocalAlertCache creates an in-process cache holding a few days of snapshots.
func NewLocalAlertCache(ttl time.Duration) *LocalAlertCache {
	return &LocalAlertCache{lru: cache.NewLRU[core.Date, core.Alerts](8, ttl)}
}

func (c *LocalAlertCache) Get(_ context.Context, day core.Date) (core.Alerts, bool) {
	return c.lru.Get(day)
}

func (c *LocalAlertCache) Set(_ context.Context, day core.Date, alerts core.Alerts) {
	c.lru.Set(day, alerts)
}

func (c *LocalAlertCache) Invalidate(context.Context) {
	c.lru.Clear()
}

// Cleaner exposes the underlying LRU for periodic expiry by cache.Manager.
func (c *LocalAlertCache) Cleaner() cache.Cleaner {
	return c.lru
}

// Stats reports hit and eviction counters for the metrics endpoint.
func (c *LocalAlertCache) Stats() cache.Stats {
	return c.lru.Stats()
}

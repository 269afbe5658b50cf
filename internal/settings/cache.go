// Package settings is a read-through cache for admin-tunable runtime values.
// Reads go local TTL cache -> Redis -> source of record; the sweep path reads
// its gas threshold through here on every attempt without hammering Postgres.
package settings

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lottoloop/chain-custody/internal/domain"
	"github.com/lottoloop/chain-custody/internal/repository"
)

const redisKeyPrefix = "settings"

// Source is the system of record for settings (Postgres in production).
type Source interface {
	Get(ctx context.Context, key string) (string, error)
}

type entry struct {
	value   string
	expires time.Time
}

// Cache layers an in-process TTL map and an optional Redis tier over a
// Source. The clock is injected so expiry is testable.
type Cache struct {
	source Source
	redis  redis.Cmdable
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	local map[string]entry
}

func NewCache(source Source, rdb redis.Cmdable, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		source: source,
		redis:  rdb,
		ttl:    ttl,
		now:    now,
		local:  make(map[string]entry),
	}
}

// Get resolves a setting value, filling the cache tiers on a miss.
// Missing keys surface repository.ErrSettingNotFound and are not cached.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	if e, ok := c.local[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	if c.redis != nil {
		val, err := c.redis.Get(ctx, redisKey(key)).Result()
		if err == nil {
			c.storeLocal(key, val)
			return val, nil
		}
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("settings redis read failed", zap.String("key", key), zap.Error(err))
		}
	}

	val, err := c.source.Get(ctx, key)
	if err != nil {
		return "", err
	}

	c.storeLocal(key, val)
	if c.redis != nil {
		if err := c.redis.Set(ctx, redisKey(key), val, c.ttl).Err(); err != nil {
			zap.L().Warn("settings redis write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return val, nil
}

// MinGasWei returns the admin-tuned sweep gas threshold, or the static
// fallback when no override exists or the stored value is malformed.
func (c *Cache) MinGasWei(ctx context.Context, fallback *big.Int) *big.Int {
	val, err := c.Get(ctx, domain.SettingMinGasWei)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingNotFound) {
			zap.L().Warn("min gas setting read failed", zap.Error(err))
		}
		return fallback
	}
	threshold, ok := new(big.Int).SetString(val, 10)
	if !ok || threshold.Sign() < 0 {
		zap.L().Warn("min gas setting is not a valid integer", zap.String("value", val))
		return fallback
	}
	return threshold
}

func (c *Cache) storeLocal(key, value string) {
	c.mu.Lock()
	c.local[key] = entry{value: value, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func redisKey(key string) string {
	return redisKeyPrefix + ":" + key
}

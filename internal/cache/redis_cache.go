package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"shoplite/backend/internal/domain"
)

type RedisAnalyticsCache struct {
	client *redis.Client
}

func NewRedisAnalyticsCache(addr string, password string, db int) *RedisAnalyticsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisAnalyticsCache{client: client}
}

func (c *RedisAnalyticsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAnalyticsCache) Close() error {
	return c.client.Close()
}

func (c *RedisAnalyticsCache) GetSummary(ctx context.Context, key string) (*domain.SalesSummary, bool, error) {
	var summary domain.SalesSummary
	ok, err := c.getJSON(ctx, key, &summary)
	if !ok || err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisAnalyticsCache) SetSummary(ctx context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	return c.setJSON(ctx, key, value, ttl)
}

func (c *RedisAnalyticsCache) GetSeries(ctx context.Context, key string) (*domain.SalesSeries, bool, error) {
	var series domain.SalesSeries
	ok, err := c.getJSON(ctx, key, &series)
	if !ok || err != nil {
		return nil, false, err
	}
	return &series, true, nil
}

func (c *RedisAnalyticsCache) SetSeries(ctx context.Context, key string, value *domain.SalesSeries, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	return c.setJSON(ctx, key, value, ttl)
}

func (c *RedisAnalyticsCache) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisAnalyticsCache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

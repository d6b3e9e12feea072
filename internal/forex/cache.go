package forex

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"payoutdesk/internal/domain"
)

type RedisRateCache struct {
	client *redis.Client
}

func NewRedisRateCache(client *redis.Client) RateCache {
	return &RedisRateCache{client: client}
}

func (c *RedisRateCache) Get(ctx context.Context, key string) (domain.RateTable, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var table domain.RateTable
	if err := json.Unmarshal([]byte(data), &table); err != nil {
		return nil, err
	}

	return table, nil
}

func (c *RedisRateCache) Set(ctx context.Context, key string, table domain.RateTable, ttl time.Duration) error {
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

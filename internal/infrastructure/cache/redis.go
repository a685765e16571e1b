package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"advisorledger/internal/config"

	"github.com/go-redis/redis/v8"
)

func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

const (
	keyPrefix     = "ledger:"
	versionPrefix = "ledger:stats:version:"
)

// StatsCache keeps JSON-encoded statistics in Redis. Entries are never deleted on
// writes; callers embed a scope version in the key and bump it instead, leaving
// stale entries to expire with the TTL.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func (c *StatsCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *StatsCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}

func (c *StatsCache) Version(ctx context.Context, scope string) (int64, error) {
	v, err := c.client.Get(ctx, versionPrefix+scope).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *StatsCache) Bump(ctx context.Context, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, scope := range scopes {
		pipe.Incr(ctx, versionPrefix+scope)
	}
	_, err := pipe.Exec(ctx)
	return err
}

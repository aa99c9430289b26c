package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfigCache stores per-project configuration lookups. A negative entry
// is an empty value under a short TTL; Get reports found=true with value=""
// for it, letting callers distinguish "cached miss" from "never asked".
type RedisConfigCache struct {
	client *redis.Client
}

func NewRedisConfigCache(client *redis.Client) *RedisConfigCache {
	return &RedisConfigCache{client: client}
}

func configKey(key string) string {
	return "chats:config:" + key
}

func (c *RedisConfigCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, configKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (c *RedisConfigCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, configKey(key), value, ttl).Err()
}

func (c *RedisConfigCache) SetNegative(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, configKey(key), "", ttl).Err()
}

// RedisReportGuard refuses concurrent report generation per project through a
// SET NX key; Finish drops it early so the TTL is only a crash backstop.
type RedisReportGuard struct {
	client *redis.Client
}

func NewRedisReportGuard(client *redis.Client) *RedisReportGuard {
	return &RedisReportGuard{client: client}
}

func reportKey(projectID uuid.UUID) string {
	return "rooms_report_" + projectID.String()
}

func (g *RedisReportGuard) TryStart(ctx context.Context, projectID uuid.UUID, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, reportKey(projectID), "1", ttl).Result()
}

func (g *RedisReportGuard) Finish(ctx context.Context, projectID uuid.UUID) error {
	return g.client.Del(ctx, reportKey(projectID)).Err()
}

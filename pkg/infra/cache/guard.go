package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const processedKeyPattern = "moderation:processed:%s"

// ProcessedGuard remembers events whose outcome was already delivered.
type ProcessedGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Seen(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, fmt.Sprintf(processedKeyPattern, key)).Result()
	if err != nil {
		return false, fmt.Errorf("check processed key: %w", err)
	}
	return n > 0, nil
}

func (g *RedisGuard) Mark(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := g.client.Set(ctx, fmt.Sprintf(processedKeyPattern, key), "1", g.ttl).Err(); err != nil {
		return fmt.Errorf("mark processed key: %w", err)
	}
	return nil
}

type NopGuard struct{}

func (NopGuard) Seen(context.Context, string) (bool, error) { return false, nil }

func (NopGuard) Mark(context.Context, string) error { return nil }

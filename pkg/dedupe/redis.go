package dedupe

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper stores processed marks as Redis keys with a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDeduper creates a Redis-backed deduper.
// Panics if client is nil; zero-value config fields fall back to defaults.
func NewRedisDeduper(client *redis.Client, config Config) *RedisDeduper {
	if client == nil {
		panic("dedupe: redis client cannot be nil")
	}
	if config.TTL <= 0 {
		config.TTL = 72 * time.Hour
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "dedupe:"
	}
	return &RedisDeduper{
		client: client,
		ttl:    config.TTL,
		prefix: config.KeyPrefix,
	}
}

func (d *RedisDeduper) Processed(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	n, err := d.client.Exists(ctx, d.prefix+key).Result()
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	// SET NX keeps the original mark time; re-marking an already
	// processed key must not extend its retention.
	if err := d.client.SetNX(ctx, d.prefix+key, 1, d.ttl).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

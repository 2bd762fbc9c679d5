package codes

import (
	"context"
	"fmt"

	"ticketing/src/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RedisAllocator keeps one INCR counter per prefix so concurrent
// reservations never compute the same sequence. A missing counter is
// seeded from the highest stored code.
type RedisAllocator struct {
	rdb       *redis.Client
	keyPrefix string
}

func NewRedisAllocator(rdb *redis.Client) *RedisAllocator {
	return &RedisAllocator{rdb: rdb, keyPrefix: "ticketing:order_code:"}
}

func (a *RedisAllocator) Next(ctx context.Context, tx *gorm.DB, event *models.Event) (string, error) {
	prefix := Prefix(event)
	key := a.keyPrefix + prefix

	exists, err := a.rdb.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("[redis] check counter %s: %w", key, err)
	}
	if exists == 0 {
		seed, err := highestSequence(tx.WithContext(ctx), prefix)
		if err != nil {
			return "", fmt.Errorf("read latest order code: %w", err)
		}
		// Losing this race to another instance is fine, its seed is the same.
		if err := a.rdb.SetNX(ctx, key, seed, 0).Err(); err != nil {
			return "", fmt.Errorf("[redis] seed counter %s: %w", key, err)
		}
	}

	seq, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("[redis] incr counter %s: %w", key, err)
	}
	return Format(prefix, seq), nil
}

// Package counter hands out atomic sequence values backed by Redis INCR.
package counter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "civictrack:"

// RedisCounter serves report number sequences and round-robin cursors.
// Values survive restarts as long as Redis persists them.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Increment(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return n, nil
}

// Next returns the department's next round-robin position, starting at 1.
func (c *RedisCounter) Next(ctx context.Context, departmentID uint) (int64, error) {
	return c.Increment(ctx, fmt.Sprintf("rr:%d", departmentID))
}

// Package lock provides a Redis mutex keyed by string. Each holder owns a
// random token so only the holder can release.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix           = "civictrack:lock:"
	defaultRetryBackoff = 25 * time.Millisecond
)

var ErrNotHeld = errors.New("lock not held")

var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client  *redis.Client
	backoff time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, backoff: defaultRetryBackoff}
}

// Acquire blocks until the lock on key is taken or ctx ends. The lock
// expires after ttl if the holder never releases it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	release := func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("lock %s: %w", key, ErrNotHeld)
		}
		return nil
	}
	return release, nil
}

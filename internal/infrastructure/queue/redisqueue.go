// Package queue implements the reliable report work queue on Redis lists.
//
// A report id moves pending -> processing when a worker takes it, and leaves
// processing on Ack, Fail or Requeue. Items whose lease is older than the
// visibility timeout are moved back to pending by RecoverStale, so a worker
// crash never loses work.
package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civictrack/civictrack/internal/shared/biztime"
)

const DefaultName = "civictrack:queue:classification"

// recoverScript returns an item to the head of pending only if it is still
// in processing, so a late Ack and a recovery never both win.
var recoverScript = redis.NewScript(`
local removed = redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
if removed > 0 then
	redis.call('RPUSH', KEYS[2], ARGV[1])
end
return removed
`)

// FailedItem is a dead-lettered report with the last error recorded for it.
type FailedItem struct {
	ReportID uint
	Reason   string
}

// Depth is a point-in-time size of each list.
type Depth struct {
	Pending    int64
	Processing int64
	Failed     int64
}

type RedisQueue struct {
	client        *redis.Client
	pendingKey    string
	processingKey string
	leasesKey     string
	failedKey     string
	errorsKey     string
	now           func() time.Time
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = DefaultName
	}
	return &RedisQueue{
		client:        client,
		pendingKey:    name + ":pending",
		processingKey: name + ":processing",
		leasesKey:     name + ":leases",
		failedKey:     name + ":failed",
		errorsKey:     name + ":errors",
		now:           biztime.NowUTC,
	}
}

func (q *RedisQueue) SetClock(now func() time.Time) {
	q.now = now
}

func (q *RedisQueue) Enqueue(ctx context.Context, reportID uint) error {
	if err := q.client.LPush(ctx, q.pendingKey, reportID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue report %d: %w", reportID, err)
	}
	return nil
}

// Dequeue waits up to timeout for the next report id. It returns false
// without error when the wait expired.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (uint, bool, error) {
	val, err := q.client.BLMove(ctx, q.pendingKey, q.processingKey, "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to dequeue: %w", err)
	}

	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		// not a report id; park it so it does not block the queue
		_ = q.deadLetter(ctx, val, "malformed queue item")
		return 0, false, fmt.Errorf("malformed queue item %q: %w", val, err)
	}

	if err := q.client.HSet(ctx, q.leasesKey, val, q.now().UnixMilli()).Err(); err != nil {
		return 0, false, fmt.Errorf("failed to record lease for report %d: %w", id, err)
	}
	return uint(id), true, nil
}

func (q *RedisQueue) Ack(ctx context.Context, reportID uint) error {
	member := strconv.FormatUint(uint64(reportID), 10)
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, member)
	pipe.HDel(ctx, q.leasesKey, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack report %d: %w", reportID, err)
	}
	return nil
}

// Fail moves the report to the failed list and records reason.
func (q *RedisQueue) Fail(ctx context.Context, reportID uint, reason string) error {
	if err := q.deadLetter(ctx, strconv.FormatUint(uint64(reportID), 10), reason); err != nil {
		return fmt.Errorf("failed to dead-letter report %d: %w", reportID, err)
	}
	return nil
}

func (q *RedisQueue) deadLetter(ctx context.Context, member, reason string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, member)
	pipe.HDel(ctx, q.leasesKey, member)
	pipe.LPush(ctx, q.failedKey, member)
	pipe.HSet(ctx, q.errorsKey, member, reason)
	_, err := pipe.Exec(ctx)
	return err
}

// Requeue puts an in-flight report back at the head of pending.
func (q *RedisQueue) Requeue(ctx context.Context, reportID uint) error {
	member := strconv.FormatUint(uint64(reportID), 10)
	keys := []string{q.processingKey, q.pendingKey, q.leasesKey}
	if err := recoverScript.Run(ctx, q.client, keys, member).Err(); err != nil {
		return fmt.Errorf("failed to requeue report %d: %w", reportID, err)
	}
	return nil
}

// RecoverStale moves items leased longer than visibility ago back to
// pending and returns how many moved. Processing items with no lease get
// one stamped now and are recovered on a later run.
func (q *RedisQueue) RecoverStale(ctx context.Context, visibility time.Duration) (int, error) {
	leases, err := q.client.HGetAll(ctx, q.leasesKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read leases: %w", err)
	}
	inFlight, err := q.client.LRange(ctx, q.processingKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read processing list: %w", err)
	}

	now := q.now()
	cutoff := now.Add(-visibility).UnixMilli()
	keys := []string{q.processingKey, q.pendingKey, q.leasesKey}
	recovered := 0

	for _, member := range inFlight {
		raw, ok := leases[member]
		if !ok {
			if err := q.client.HSetNX(ctx, q.leasesKey, member, now.UnixMilli()).Err(); err != nil {
				return recovered, fmt.Errorf("failed to stamp lease: %w", err)
			}
			continue
		}
		leasedAt, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && leasedAt > cutoff {
			continue
		}
		n, err := recoverScript.Run(ctx, q.client, keys, member).Int()
		if err != nil {
			return recovered, fmt.Errorf("failed to recover %s: %w", member, err)
		}
		recovered += n
	}

	// leases left behind by items no longer in flight
	var orphaned []string
	for member := range leases {
		if !slices.Contains(inFlight, member) {
			orphaned = append(orphaned, member)
		}
	}
	if len(orphaned) > 0 {
		if err := q.client.HDel(ctx, q.leasesKey, orphaned...).Err(); err != nil {
			return recovered, fmt.Errorf("failed to clear orphaned leases: %w", err)
		}
	}
	return recovered, nil
}

func (q *RedisQueue) Failed(ctx context.Context, limit int64) ([]FailedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	members, err := q.client.LRange(ctx, q.failedKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list failed items: %w", err)
	}
	out := make([]FailedItem, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		reason, err := q.client.HGet(ctx, q.errorsKey, m).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read failure reason: %w", err)
		}
		out = append(out, FailedItem{ReportID: uint(id), Reason: reason})
	}
	return out, nil
}

// RetryFailed moves every failed item back to pending.
func (q *RedisQueue) RetryFailed(ctx context.Context) (int, error) {
	moved := 0
	for {
		member, err := q.client.LMove(ctx, q.failedKey, q.pendingKey, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to retry failed items: %w", err)
		}
		q.client.HDel(ctx, q.errorsKey, member)
		moved++
	}
}

func (q *RedisQueue) Depth(ctx context.Context) (Depth, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, q.pendingKey)
	processing := pipe.LLen(ctx, q.processingKey)
	failed := pipe.LLen(ctx, q.failedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Depth{}, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return Depth{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Failed:     failed.Val(),
	}, nil
}

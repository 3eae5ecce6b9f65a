package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civictrack/civictrack/internal/application/classification"
	"github.com/civictrack/civictrack/internal/infrastructure/queue"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

func setupQueue(t *testing.T) *queue.RedisQueue {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return queue.NewRedisQueue(client, "test:classification")
}

type fakeProcessor struct {
	mu      sync.Mutex
	seen    []uint
	process func(ctx context.Context, reportID uint) error
}

func (f *fakeProcessor) ProcessReport(ctx context.Context, reportID uint, force bool) (*classification.Result, error) {
	f.mu.Lock()
	f.seen = append(f.seen, reportID)
	f.mu.Unlock()
	if f.process != nil {
		if err := f.process(ctx, reportID); err != nil {
			return nil, err
		}
	}
	return &classification.Result{ReportID: reportID}, nil
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func runPool(t *testing.T, pool *Pool) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestPool_AcksFailsAndRecoversPanics(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	for _, id := range []uint{1, 2, 3, 4} {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	proc := &fakeProcessor{process: func(ctx context.Context, reportID uint) error {
		switch reportID {
		case 2:
			return assert.AnError
		case 3:
			panic("classifier exploded")
		}
		return nil
	}}
	pool := NewPool(q, proc, Options{Concurrency: 2, PollTimeout: 50 * time.Millisecond}, logger.NewNopLogger())
	cancel, done := runPool(t, pool)

	require.Eventually(t, func() bool {
		d, err := q.Depth(ctx)
		return err == nil && d == queue.Depth{Pending: 0, Processing: 0, Failed: 2}
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("pool did not stop")
	}

	failed, err := q.Failed(ctx, 10)
	require.NoError(t, err)
	reasons := make(map[uint]string)
	for _, item := range failed {
		reasons[item.ReportID] = item.Reason
	}
	assert.Contains(t, reasons[2], assert.AnError.Error())
	assert.Contains(t, reasons[3], "panicked")
	assert.Equal(t, 4, proc.count())
}

func TestPool_InterruptedReportIsRequeued(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, 9))

	started := make(chan struct{})
	proc := &fakeProcessor{process: func(ctx context.Context, reportID uint) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	pool := NewPool(q, proc, Options{Concurrency: 1, PollTimeout: 50 * time.Millisecond}, logger.NewNopLogger())
	cancel, done := runPool(t, pool)

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("report was not picked up")
	}
	cancel()
	require.NoError(t, <-done)

	d, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Depth{Pending: 1}, d)
}

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(nil, nil, Options{}, logger.NewNopLogger())
	assert.Equal(t, defaultConcurrency, pool.opts.Concurrency)
	assert.Equal(t, defaultPollTimeout, pool.opts.PollTimeout)
}

type fakeLister struct {
	ids    []uint
	before time.Time
	limit  int
	err    error
}

func (f *fakeLister) ListUnprocessed(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error) {
	f.before = createdBefore
	f.limit = limit
	return f.ids, f.err
}

func TestRecoverySweep_Execute(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	q.SetClock(func() time.Time { return now })

	require.NoError(t, q.Enqueue(ctx, 1))
	_, ok, err := q.Dequeue(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(15 * time.Minute)
	lister := &fakeLister{ids: []uint{7, 8}}
	sweep := NewRecoverySweep(q, lister, 10*time.Minute, logger.NewNopLogger())
	sweep.SetClock(func() time.Time { return now })

	n, err := sweep.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, now.Add(-10*time.Minute), lister.before)
	assert.Equal(t, defaultSweepBatch, lister.limit)

	d, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Depth{Pending: 3}, d)
}

func TestRecoverySweep_ListFailure(t *testing.T) {
	q := setupQueue(t)
	sweep := NewRecoverySweep(q, &fakeLister{err: assert.AnError}, 0, logger.NewNopLogger())

	_, err := sweep.Execute(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, defaultVisibility, sweep.visibility)
}

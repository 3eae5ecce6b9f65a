package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/internal/shared/biztime"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const (
	defaultVisibility = 10 * time.Minute
	defaultSweepBatch = 100
)

// RecoveryQueue is the part of the queue the sweep needs.
type RecoveryQueue interface {
	Enqueue(ctx context.Context, reportID uint) error
	RecoverStale(ctx context.Context, visibility time.Duration) (int, error)
}

// UnprocessedLister finds reports the pipeline never finished.
type UnprocessedLister interface {
	ListUnprocessed(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error)
}

// RecoverySweep is a scheduler job. It returns items stuck in processing to
// the queue and re-enqueues reports that were created but never reached the
// queue. A report enqueued twice is skipped by the pipeline on its second
// run.
type RecoverySweep struct {
	queue      RecoveryQueue
	reports    UnprocessedLister
	visibility time.Duration
	batch      int
	logger     logger.Interface
	now        func() time.Time
}

func NewRecoverySweep(queue RecoveryQueue, reports UnprocessedLister, visibility time.Duration, logger logger.Interface) *RecoverySweep {
	if visibility <= 0 {
		visibility = defaultVisibility
	}
	return &RecoverySweep{
		queue:      queue,
		reports:    reports,
		visibility: visibility,
		batch:      defaultSweepBatch,
		logger:     logger,
		now:        biztime.NowUTC,
	}
}

func (s *RecoverySweep) SetClock(now func() time.Time) {
	s.now = now
}

// Execute returns how many reports were put back on the queue.
func (s *RecoverySweep) Execute(ctx context.Context) (int, error) {
	recovered, err := s.queue.RecoverStale(ctx, s.visibility)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale queue items: %w", err)
	}

	// reports younger than the visibility timeout may still be in flight
	ids, err := s.reports.ListUnprocessed(ctx, s.now().Add(-s.visibility), s.batch)
	if err != nil {
		return recovered, fmt.Errorf("failed to list unprocessed reports: %w", err)
	}

	enqueued := 0
	for _, id := range ids {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			s.logger.Errorw("failed to re-enqueue report", "report_id", id, "error", err)
			continue
		}
		enqueued++
	}

	if recovered > 0 || enqueued > 0 {
		s.logger.Infow("classification recovery sweep",
			"recovered_from_processing", recovered,
			"re_enqueued", enqueued)
	}
	return recovered + enqueued, nil
}

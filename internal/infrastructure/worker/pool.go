// Package worker consumes the classification queue and sweeps reports the
// queue lost.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civictrack/civictrack/internal/application/classification"
	"github.com/civictrack/civictrack/internal/shared/goroutine"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const (
	defaultConcurrency = 4
	defaultPollTimeout = 5 * time.Second
	errorBackoff       = time.Second
	settleTimeout      = 5 * time.Second
)

// Queue is the reliable queue the pool consumes.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (uint, bool, error)
	Ack(ctx context.Context, reportID uint) error
	Fail(ctx context.Context, reportID uint, reason string) error
	Requeue(ctx context.Context, reportID uint) error
}

// Processor runs the classification pipeline for one report.
type Processor interface {
	ProcessReport(ctx context.Context, reportID uint, force bool) (*classification.Result, error)
}

type Options struct {
	Concurrency int
	PollTimeout time.Duration
}

// Pool runs Concurrency consumers. Each report is acked after the pipeline
// returns, dead-lettered when it fails, and put back when the pool is
// stopping mid-run.
type Pool struct {
	queue     Queue
	processor Processor
	opts      Options
	logger    logger.Interface
}

func NewPool(queue Queue, processor Processor, opts Options, logger logger.Interface) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	return &Pool{
		queue:     queue,
		processor: processor,
		opts:      opts,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled and every consumer has returned.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Infow("starting classification workers", "concurrency", p.opts.Concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Concurrency; i++ {
		log := p.logger.With("worker", i)
		g.Go(func() error {
			p.consume(ctx, log)
			return nil
		})
	}
	err := g.Wait()

	p.logger.Infow("classification workers stopped")
	return err
}

func (p *Pool) consume(ctx context.Context, log logger.Interface) {
	for ctx.Err() == nil {
		reportID, ok, err := p.queue.Dequeue(ctx, p.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorw("failed to dequeue report", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}
		if !ok {
			continue
		}
		p.handle(ctx, log, reportID)
	}
}

func (p *Pool) handle(ctx context.Context, log logger.Interface, reportID uint) {
	log = logger.ForReport(log, reportID)
	err := goroutine.RunSafe(log, fmt.Sprintf("classify report %d", reportID), func() error {
		_, err := p.processor.ProcessReport(ctx, reportID, false)
		return err
	})

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	switch {
	case err == nil:
		if ackErr := p.queue.Ack(settleCtx, reportID); ackErr != nil {
			log.Errorw("failed to ack report", "error", ackErr)
		}
	case ctx.Err() != nil:
		log.Warnw("classification interrupted, requeueing")
		if qErr := p.queue.Requeue(settleCtx, reportID); qErr != nil {
			log.Errorw("failed to requeue report", "error", qErr)
		}
	default:
		log.Errorw("classification failed, dead-lettering report", "error", err)
		if fErr := p.queue.Fail(settleCtx, reportID, err.Error()); fErr != nil {
			log.Errorw("failed to dead-letter report", "error", fErr)
		}
	}
}

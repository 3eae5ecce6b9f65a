// Package scheduler runs the periodic monitors using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/civictrack/civictrack/internal/shared/biztime"
	"github.com/civictrack/civictrack/internal/shared/config"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const (
	defaultSLAInterval      = time.Hour
	defaultStaleInterval    = 6 * time.Hour
	defaultRecoveryInterval = 5 * time.Minute
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// SchedulerManager owns a single gocron scheduler for every periodic job.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
// Cron expressions are evaluated in the city timezone.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// MonitorJobs groups the jobs run by the monitor process. A nil job is not
// registered.
type MonitorJobs struct {
	SLA      BatchJob
	Stale    BatchJob
	Recovery BatchJob
}

// RegisterMonitorJobs registers the SLA check, the stale task check and the
// classification recovery sweep. All of them start immediately and never
// overlap with their own previous run.
func (m *SchedulerManager) RegisterMonitorJobs(jobs MonitorJobs, cfg config.MonitorConfig) error {
	slaInterval := orDefault(cfg.SLAInterval, defaultSLAInterval)
	staleInterval := orDefault(cfg.StaleInterval, defaultStaleInterval)
	recoveryInterval := orDefault(cfg.RecoveryInterval, defaultRecoveryInterval)

	if jobs.SLA != nil {
		if err := m.registerBatchJob("sla-monitor", slaInterval, jobs.SLA, "monitor", "sla"); err != nil {
			return err
		}
	}
	if jobs.Stale != nil {
		if err := m.registerBatchJob("stale-monitor", staleInterval, jobs.Stale, "monitor", "stale"); err != nil {
			return err
		}
	}
	if jobs.Recovery != nil {
		if err := m.registerBatchJob("classification-recovery", recoveryInterval, jobs.Recovery, "classification", "recovery"); err != nil {
			return err
		}
	}

	m.logger.Infow("registered monitor jobs",
		"sla_interval", slaInterval.String(),
		"stale_interval", staleInterval.String(),
		"recovery_interval", recoveryInterval.String(),
	)
	return nil
}

// registerBatchJob runs job every interval with a timeout equal to the
// interval, so a slow run is cut before the next one is due.
func (m *SchedulerManager) registerBatchJob(name string, interval time.Duration, job BatchJob, tags ...string) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			m.runBatchJob(ctx, name, job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags(tags...),
		gocron.WithName(name),
	)
	return err
}

func (m *SchedulerManager) runBatchJob(ctx context.Context, name string, job BatchJob) {
	startTime := biztime.NowUTC()

	count, err := job.Execute(ctx)
	if err != nil {
		m.logger.Errorw("scheduled job failed",
			"job", name,
			"processed", count,
			"duration", time.Since(startTime),
			"error", err,
		)
		return
	}

	if count > 0 {
		m.logger.Infow("scheduled job completed",
			"job", name,
			"processed", count,
			"duration", time.Since(startTime),
		)
		return
	}
	m.logger.Debugw("scheduled job completed", "job", name, "processed", 0)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/domain/escalation"
	escvo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	"github.com/civictrack/civictrack/internal/shared/config"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const (
	defaultWarningFraction = 0.2
	defaultMinWarning      = 2 * time.Hour

	// violations up to this size are notified but not escalated
	minEscalationOverdue = 4 * time.Hour
)

// ViolationSeverity sizes an SLA escalation by how overdue the task is.
func ViolationSeverity(overdue time.Duration) vo.Severity {
	switch {
	case overdue > 48*time.Hour:
		return vo.SeverityCritical
	case overdue > 24*time.Hour:
		return vo.SeverityHigh
	case overdue > 12*time.Hour:
		return vo.SeverityMedium
	}
	return vo.SeverityLow
}

// WarningPolicy decides how long before the deadline a task is warned.
type WarningPolicy struct {
	Fraction float64
	Min      time.Duration
}

func WarningPolicyFromConfig(cfg config.SLAConfig) WarningPolicy {
	p := WarningPolicy{Fraction: defaultWarningFraction, Min: defaultMinWarning}
	if cfg.WarningFraction > 0 && cfg.WarningFraction < 1 {
		p.Fraction = cfg.WarningFraction
	}
	if cfg.MinWarning > 0 {
		p.Min = cfg.MinWarning
	}
	return p
}

// Window is the warning lead time for a task with the given SLA window.
func (p WarningPolicy) Window(sla time.Duration) time.Duration {
	w := time.Duration(float64(sla) * p.Fraction)
	if w < p.Min {
		return p.Min
	}
	return w
}

// SLAMonitor computes missing SLA deadlines for tracked tasks, warns once
// when a deadline approaches and marks violations, escalating large ones.
// It is safe to re-run: task flags and the open-escalation check keep every
// side effect one-shot.
type SLAMonitor struct {
	taskRepo   report.TaskRepository
	reportRepo report.ReportRepository
	escalator  *escalator
	policy     WarningPolicy
	metrics    Metrics
	logger     logger.Interface
	now        func() time.Time
}

func NewSLAMonitor(
	txManager TransactionManager,
	taskRepo report.TaskRepository,
	reportRepo report.ReportRepository,
	escalationRepo escalation.Repository,
	officerRepo officer.Repository,
	notifier assignment.Notifier,
	audit events.AuditPublisher,
	policy WarningPolicy,
	logger logger.Interface,
) *SLAMonitor {
	if policy.Fraction <= 0 {
		policy.Fraction = defaultWarningFraction
	}
	if policy.Min <= 0 {
		policy.Min = defaultMinWarning
	}
	return &SLAMonitor{
		taskRepo:   taskRepo,
		reportRepo: reportRepo,
		escalator: &escalator{
			txManager:      txManager,
			escalationRepo: escalationRepo,
			officerRepo:    officerRepo,
			notifier:       notifier,
			audit:          audit,
			metrics:        nopMetrics{},
			logger:         logger,
		},
		policy:  policy,
		metrics: nopMetrics{},
		logger:  logger,
		now:     biztime.NowUTC,
	}
}

func (m *SLAMonitor) SetMetrics(metrics Metrics) {
	if metrics != nil {
		m.metrics = metrics
		m.escalator.metrics = metrics
	}
}

func (m *SLAMonitor) SetClock(now func() time.Time) {
	m.now = now
}

// Execute checks every tracked task and returns how many changed.
func (m *SLAMonitor) Execute(ctx context.Context) (int, error) {
	tasks, err := m.taskRepo.ListByStatuses(ctx, vo.SLATrackedTaskStatuses)
	if err != nil {
		return 0, fmt.Errorf("failed to list tracked tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	m.logger.Debugw("checking task SLAs", "count", len(tasks))

	now := m.now()
	changed := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		ok, err := m.checkTask(ctx, t, now)
		if err != nil {
			logger.ForTask(m.logger, t.ReportID(), t.ID()).Errorw("failed to check task SLA", "error", err)
			continue
		}
		if ok {
			changed++
		}
	}

	if changed > 0 {
		m.logger.Infow("task SLAs updated", "checked", len(tasks), "changed", changed)
	}
	return changed, nil
}

func (m *SLAMonitor) checkTask(ctx context.Context, t *report.Task, now time.Time) (bool, error) {
	r, err := m.reportRepo.GetByID(ctx, t.ReportID())
	if err != nil {
		return false, fmt.Errorf("failed to load report: %w", err)
	}
	window := r.Severity().SLAWindow()

	dirty := false
	deadlineSet := false
	if t.SLADeadline() == nil {
		t.SetSLADeadline(t.AssignedAt().Add(window))
		deadlineSet = true
		dirty = true
	}
	deadline := *t.SLADeadline()

	var (
		warned   bool
		violated bool
	)
	switch {
	case now.After(deadline):
		violated = t.MarkSLAViolated()
		dirty = dirty || violated
	case deadline.Sub(now) <= m.policy.Window(window):
		warned = t.MarkSLAWarning()
		dirty = dirty || warned
	}

	if dirty {
		applied, err := m.taskRepo.UpdateSLAFlags(ctx, t, vo.SLATrackedTaskStatuses)
		if err != nil {
			return false, fmt.Errorf("failed to update task: %w", err)
		}
		if !applied {
			// moved on since it was listed; the next run sees the new state
			logger.ForTask(m.logger, t.ReportID(), t.ID()).Infow("task changed during SLA check, skipping")
			return false, nil
		}
	}
	if deadlineSet {
		m.metrics.ObserveSLAEvent(SLAEventDeadlineSet)
	}

	if warned {
		m.metrics.ObserveSLAEvent(SLAEventWarning)
		m.onWarning(ctx, r, t, deadline, now)
	}
	if violated {
		m.metrics.ObserveSLAEvent(SLAEventViolation)
		m.onViolation(ctx, r, t, deadline, now)
	}

	// also re-checked for tasks flagged on an earlier run, so a violation
	// first seen while small still escalates once it grows
	if t.SLAViolated() {
		overdue := now.Sub(deadline)
		if overdue > minEscalationOverdue {
			esc, err := m.escalator.raise(ctx, escalationRequest{
				task:     t,
				escType:  escvo.TypeSLAViolation,
				severity: ViolationSeverity(overdue),
				reason: fmt.Sprintf("task for report %s is %s past its SLA deadline",
					r.Number(), overdue.Truncate(time.Minute)),
				metadata: map[string]any{
					"deadline":        deadline,
					"overdue_hours":   overdue.Hours(),
					"report_severity": r.Severity().String(),
				},
			}, now)
			if err != nil {
				return dirty, err
			}
			dirty = dirty || esc != nil
		}
	}
	return dirty, nil
}

func (m *SLAMonitor) onWarning(ctx context.Context, r *report.Report, t *report.Task, deadline, now time.Time) {
	reportID := r.ID()
	taskID := t.ID()
	m.logger.Infow("task SLA deadline approaching",
		"task_id", taskID,
		"report_id", reportID,
		"deadline", deadline)

	m.escalator.notify(ctx, assignment.Notification{
		UserID:          t.OfficerID(),
		Type:            assignment.NotificationSLAWarning,
		Title:           fmt.Sprintf("SLA deadline approaching for %s", r.Number()),
		Message:         fmt.Sprintf("Resolve report %s within %s.", r.Number(), deadline.Sub(now).Truncate(time.Minute)),
		Priority:        assignment.NotificationPriorityHigh,
		RelatedReportID: &reportID,
		RelatedTaskID:   &taskID,
	})
	m.publish(ctx, events.ActionSLAWarning, t, deadline, now)
}

func (m *SLAMonitor) onViolation(ctx context.Context, r *report.Report, t *report.Task, deadline, now time.Time) {
	reportID := r.ID()
	taskID := t.ID()
	m.logger.Warnw("task SLA violated",
		"task_id", taskID,
		"report_id", reportID,
		"deadline", deadline,
		"overdue", now.Sub(deadline))

	recipients := appendUnique(nil, t.OfficerID())
	for _, id := range m.escalator.administrators(ctx) {
		recipients = appendUnique(recipients, id)
	}
	for _, userID := range recipients {
		m.escalator.notify(ctx, assignment.Notification{
			UserID:          userID,
			Type:            assignment.NotificationSLAViolation,
			Title:           fmt.Sprintf("SLA violated for %s", r.Number()),
			Message:         fmt.Sprintf("Report %s passed its SLA deadline at %s.", r.Number(), deadline.Format(time.RFC3339)),
			Priority:        assignment.NotificationPriorityUrgent,
			RelatedReportID: &reportID,
			RelatedTaskID:   &taskID,
		})
	}
	m.publish(ctx, events.ActionSLAViolation, t, deadline, now)
}

func (m *SLAMonitor) publish(ctx context.Context, action string, t *report.Task, deadline, now time.Time) {
	if m.escalator.audit == nil {
		return
	}
	err := m.escalator.audit.Publish(ctx, events.AuditEvent{
		Action:       action,
		ActorID:      officer.AutomationActorID,
		ResourceType: events.ResourceTask,
		ResourceID:   t.ID(),
		Metadata: map[string]any{
			"report_id":  t.ReportID(),
			"officer_id": t.OfficerID(),
			"deadline":   deadline,
		},
		OccurredAt: now,
	})
	if err != nil {
		m.logger.Warnw("failed to publish audit event", "task_id", t.ID(), "action", action, "error", err)
	}
}

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
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const day = 24 * time.Hour

// StaleRule escalates tasks that stayed in Status longer than After.
// Rules for the same status are ordered from the largest threshold down.
type StaleRule struct {
	Status   vo.TaskStatus
	After    time.Duration
	Type     escvo.EscalationType
	Severity vo.Severity
}

// DefaultStaleRules measures time since the task entered its current status.
func DefaultStaleRules() []StaleRule {
	return []StaleRule{
		{Status: vo.TaskAssigned, After: 7 * day, Type: escvo.TypeStaleUnacknowledged, Severity: vo.SeverityMedium},
		{Status: vo.TaskAcknowledged, After: 10 * day, Type: escvo.TypeStaleNotStarted, Severity: vo.SeverityMedium},
		{Status: vo.TaskInProgress, After: 21 * day, Type: escvo.TypeStaleInProgress, Severity: vo.SeverityCritical},
		{Status: vo.TaskInProgress, After: 14 * day, Type: escvo.TypeStaleInProgress, Severity: vo.SeverityHigh},
		{Status: vo.TaskOnHold, After: 45 * day, Type: escvo.TypeStaleOnHold, Severity: vo.SeverityHigh},
		{Status: vo.TaskOnHold, After: 30 * day, Type: escvo.TypeStaleOnHold, Severity: vo.SeverityMedium},
	}
}

// MatchStaleRule returns the first rule that applies to a task that has been
// in status for age, or false when the task is not stale.
func MatchStaleRule(rules []StaleRule, status vo.TaskStatus, age time.Duration) (StaleRule, bool) {
	for _, rule := range rules {
		if rule.Status == status && age > rule.After {
			return rule, true
		}
	}
	return StaleRule{}, false
}

// StaleMonitor escalates open tasks stuck in one status.
type StaleMonitor struct {
	taskRepo  report.TaskRepository
	escalator *escalator
	rules     []StaleRule
	logger    logger.Interface
	now       func() time.Time
}

func NewStaleMonitor(
	txManager TransactionManager,
	taskRepo report.TaskRepository,
	escalationRepo escalation.Repository,
	officerRepo officer.Repository,
	notifier assignment.Notifier,
	audit events.AuditPublisher,
	logger logger.Interface,
) *StaleMonitor {
	return &StaleMonitor{
		taskRepo: taskRepo,
		escalator: &escalator{
			txManager:      txManager,
			escalationRepo: escalationRepo,
			officerRepo:    officerRepo,
			notifier:       notifier,
			audit:          audit,
			metrics:        nopMetrics{},
			logger:         logger,
		},
		rules:  DefaultStaleRules(),
		logger: logger,
		now:    biztime.NowUTC,
	}
}

func (m *StaleMonitor) SetMetrics(metrics Metrics) {
	if metrics != nil {
		m.escalator.metrics = metrics
	}
}

func (m *StaleMonitor) SetClock(now func() time.Time) {
	m.now = now
}

// Execute returns the number of escalations raised.
func (m *StaleMonitor) Execute(ctx context.Context) (int, error) {
	tasks, err := m.taskRepo.ListByStatuses(ctx, vo.OpenTaskStatuses)
	if err != nil {
		return 0, fmt.Errorf("failed to list open tasks: %w", err)
	}

	now := m.now()
	raised := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return raised, ctx.Err()
		}
		age := now.Sub(t.StatusChangedAt())
		rule, ok := MatchStaleRule(m.rules, t.Status(), age)
		if !ok {
			continue
		}

		esc, err := m.escalator.raise(ctx, escalationRequest{
			task:     t,
			escType:  rule.Type,
			severity: rule.Severity,
			reason: fmt.Sprintf("task %d has been %s for %d days",
				t.ID(), t.Status(), int(age/day)),
			metadata: map[string]any{
				"task_status":    t.Status().String(),
				"days_in_status": int(age / day),
				"officer_id":     t.OfficerID(),
			},
		}, now)
		if err != nil {
			m.logger.Errorw("failed to escalate stale task",
				"task_id", t.ID(),
				"status", t.Status(),
				"error", err)
			continue
		}
		if esc != nil {
			raised++
		}
	}

	if raised > 0 {
		m.logger.Infow("stale tasks escalated", "count", raised)
	}
	return raised, nil
}

// Package monitor holds the periodic jobs that watch open tasks for SLA
// breaches and staleness and raise escalations.
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
	"github.com/civictrack/civictrack/internal/shared/logger"
)

type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics records monitor activity.
type Metrics interface {
	ObserveEscalation(escalationType string)
	ObserveSLAEvent(event string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveEscalation(string) {}
func (nopMetrics) ObserveSLAEvent(string)   {}

// SLA events passed to Metrics.ObserveSLAEvent.
const (
	SLAEventDeadlineSet = "deadline_set"
	SLAEventWarning     = "warning"
	SLAEventViolation   = "violation"
)

// escalationRequest describes one system-raised escalation against a task.
type escalationRequest struct {
	task     *report.Task
	escType  escvo.EscalationType
	severity vo.Severity
	reason   string
	metadata map[string]any
}

// escalator raises de-duplicated escalations and tells administrators.
// Both monitors share it.
type escalator struct {
	txManager      TransactionManager
	escalationRepo escalation.Repository
	officerRepo    officer.Repository
	notifier       assignment.Notifier
	audit          events.AuditPublisher
	metrics        Metrics
	logger         logger.Interface
}

// raise creates the escalation unless an open one of the same type already
// exists for the task. It returns nil when nothing was created.
func (e *escalator) raise(ctx context.Context, req escalationRequest, now time.Time) (*escalation.Escalation, error) {
	taskID := req.task.ID()
	reportID := req.task.ReportID()

	var created *escalation.Escalation
	err := e.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		open, err := e.escalationRepo.HasOpen(txCtx, taskID, req.escType)
		if err != nil {
			return fmt.Errorf("failed to check open escalations: %w", err)
		}
		if open {
			return nil
		}

		esc, err := escalation.NewEscalation(
			&reportID,
			&taskID,
			req.escType,
			req.severity,
			req.reason,
			officer.AutomationActorID,
			true,
			req.metadata,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to build escalation: %w", err)
		}
		if err := e.escalationRepo.Create(txCtx, esc); err != nil {
			return fmt.Errorf("failed to create escalation: %w", err)
		}
		created = esc
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		e.logger.Debugw("open escalation already exists",
			"task_id", taskID,
			"type", req.escType)
		return nil, nil
	}

	e.metrics.ObserveEscalation(req.escType.String())
	e.logger.Infow("escalation raised",
		"escalation_id", created.ID(),
		"task_id", taskID,
		"report_id", reportID,
		"type", req.escType,
		"severity", req.severity)

	e.publish(ctx, created, now)
	e.notifyEscalation(ctx, created, req.task)
	return created, nil
}

func (e *escalator) publish(ctx context.Context, esc *escalation.Escalation, now time.Time) {
	if e.audit == nil {
		return
	}
	err := e.audit.Publish(ctx, events.AuditEvent{
		Action:       events.ActionEscalationRaised,
		ActorID:      officer.AutomationActorID,
		ResourceType: events.ResourceEscalation,
		ResourceID:   esc.ID(),
		Metadata: map[string]any{
			"type":      esc.Type().String(),
			"severity":  esc.Severity().String(),
			"task_id":   *esc.TaskID(),
			"report_id": *esc.ReportID(),
		},
		OccurredAt: now,
	})
	if err != nil {
		e.logger.Warnw("failed to publish audit event", "escalation_id", esc.ID(), "error", err)
	}
}

func (e *escalator) notifyEscalation(ctx context.Context, esc *escalation.Escalation, task *report.Task) {
	reportID := task.ReportID()
	taskID := task.ID()
	escID := esc.ID()

	recipients := e.administrators(ctx)
	recipients = appendUnique(recipients, task.OfficerID())
	for _, userID := range recipients {
		e.notify(ctx, assignment.Notification{
			UserID:              userID,
			Type:                assignment.NotificationEscalation,
			Title:               fmt.Sprintf("Escalation: %s", esc.Type()),
			Message:             esc.Reason(),
			Priority:            escalationPriority(esc.Severity()),
			RelatedReportID:     &reportID,
			RelatedTaskID:       &taskID,
			RelatedEscalationID: &escID,
		})
	}
}

// administrators returns admin and supervisor ids. Lookup failures are
// logged and yield whatever was found.
func (e *escalator) administrators(ctx context.Context) []uint {
	var ids []uint
	for _, role := range []officer.Role{officer.RoleAdmin, officer.RoleSupervisor} {
		users, err := e.officerRepo.ListByRole(ctx, role)
		if err != nil {
			e.logger.Warnw("failed to list notification recipients", "role", role, "error", err)
			continue
		}
		for _, u := range users {
			if u.IsActive() {
				ids = appendUnique(ids, u.ID())
			}
		}
	}
	return ids
}

func (e *escalator) notify(ctx context.Context, n assignment.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warnw("failed to send notification",
			"user_id", n.UserID,
			"type", n.Type,
			"error", err)
	}
}

func escalationPriority(s vo.Severity) string {
	switch s {
	case vo.SeverityCritical:
		return assignment.NotificationPriorityUrgent
	case vo.SeverityHigh:
		return assignment.NotificationPriorityHigh
	}
	return assignment.NotificationPriorityNormal
}

func appendUnique(ids []uint, id uint) []uint {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Package escalation implements the human side of the escalation lifecycle:
// raising manual escalations and moving open ones to resolution.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/civictrack/civictrack/internal/application/assignment"
	escdomain "github.com/civictrack/civictrack/internal/domain/escalation"
	escvo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	apperrors "github.com/civictrack/civictrack/internal/shared/errors"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RaiseCommand struct {
	ReportID uint
	Type     string
	Severity string
	Reason   string
	RaisedBy uint
	Metadata map[string]any
}

type AssignCommand struct {
	EscalationID uint
	AssigneeID   uint
	ActorID      uint
}

type StartInvestigationCommand struct {
	EscalationID uint
	ActorID      uint
}

type ResolveCommand struct {
	EscalationID uint
	ResolvedBy   uint
	Resolution   string
}

type Result struct {
	ID           uint           `json:"id"`
	ReportID     *uint          `json:"report_id,omitempty"`
	TaskID       *uint          `json:"task_id,omitempty"`
	Type         string         `json:"type"`
	Severity     string         `json:"severity"`
	Status       string         `json:"status"`
	Reason       string         `json:"reason"`
	RaisedBy     uint           `json:"raised_by"`
	SystemRaised bool           `json:"system_raised"`
	AssigneeID   *uint          `json:"assignee_id,omitempty"`
	ResolvedBy   *uint          `json:"resolved_by,omitempty"`
	Resolution   string         `json:"resolution,omitempty"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Service struct {
	txManager      TransactionManager
	escalationRepo escdomain.Repository
	reportRepo     report.ReportRepository
	taskRepo       report.TaskRepository
	officerRepo    officer.Repository
	notifier       assignment.Notifier
	audit          events.AuditPublisher
	logger         logger.Interface
	now            func() time.Time
}

func NewService(
	txManager TransactionManager,
	escalationRepo escdomain.Repository,
	reportRepo report.ReportRepository,
	taskRepo report.TaskRepository,
	officerRepo officer.Repository,
	notifier assignment.Notifier,
	audit events.AuditPublisher,
	logger logger.Interface,
) *Service {
	return &Service{
		txManager:      txManager,
		escalationRepo: escalationRepo,
		reportRepo:     reportRepo,
		taskRepo:       taskRepo,
		officerRepo:    officerRepo,
		notifier:       notifier,
		audit:          audit,
		logger:         logger,
		now:            biztime.NowUTC,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Raise opens a manual escalation against a report. When the report has a
// task the escalation is attached to it, and a second open escalation of the
// same type for that task is rejected.
func (s *Service) Raise(ctx context.Context, cmd RaiseCommand) (*Result, error) {
	s.logger.Infow("executing raise escalation use case",
		"report_id", cmd.ReportID,
		"type", cmd.Type,
		"raised_by", cmd.RaisedBy)

	escType, severity, err := validateRaise(cmd)
	if err != nil {
		s.logger.Warnw("invalid raise escalation command", "error", err)
		return nil, err
	}

	raiser, err := s.activeOfficer(ctx, cmd.RaisedBy, "raiser")
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		created *escdomain.Escalation
		task    *report.Task
	)
	err = s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.reportRepo.GetByID(txCtx, cmd.ReportID)
		if err != nil {
			if errors.Is(err, report.ErrReportNotFound) {
				return apperrors.NewNotFoundError("report not found").WithCause(err)
			}
			return apperrors.NewInternalError("failed to load report").WithCause(err)
		}
		reportID := r.ID()

		task, err = s.taskRepo.GetByReportID(txCtx, reportID)
		if err != nil {
			return apperrors.NewInternalError("failed to load task").WithCause(err)
		}

		var taskID *uint
		if task != nil {
			id := task.ID()
			taskID = &id
			open, err := s.escalationRepo.HasOpen(txCtx, id, escType)
			if err != nil {
				return apperrors.NewInternalError("failed to check open escalations").WithCause(err)
			}
			if open {
				return apperrors.NewConflictError(
					fmt.Sprintf("an open %s escalation already exists for this report", escType))
			}
		}

		esc, err := escdomain.NewEscalation(&reportID, taskID, escType, severity,
			strings.TrimSpace(cmd.Reason), raiser.ID(), raiser.IsAutomation(), cmd.Metadata, now)
		if err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		if err := s.escalationRepo.Create(txCtx, esc); err != nil {
			return apperrors.NewInternalError("failed to create escalation").WithCause(err)
		}
		created = esc
		return nil
	})
	if err != nil {
		s.logger.Errorw("failed to raise escalation", "report_id", cmd.ReportID, "error", err)
		return nil, err
	}

	s.logger.Infow("escalation raised",
		"escalation_id", created.ID(),
		"report_id", cmd.ReportID,
		"type", escType,
		"severity", severity)

	s.publish(ctx, events.ActionEscalationRaised, created, raiser.ID(), now)

	recipients := s.administrators(ctx)
	if task != nil {
		recipients = appendUnique(recipients, task.OfficerID())
	}
	for _, userID := range recipients {
		if userID == raiser.ID() {
			continue
		}
		s.notify(ctx, created, userID, assignment.NotificationEscalation,
			fmt.Sprintf("Escalation: %s", created.Type()), created.Reason())
	}

	return toResult(created), nil
}

// Assign hands a pending escalation to an active officer.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (*Result, error) {
	s.logger.Infow("executing assign escalation use case",
		"escalation_id", cmd.EscalationID,
		"assignee_id", cmd.AssigneeID,
		"actor_id", cmd.ActorID)

	if cmd.EscalationID == 0 || cmd.AssigneeID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("escalation, assignee and actor are required")
	}
	assignee, err := s.activeOfficer(ctx, cmd.AssigneeID, "assignee")
	if err != nil {
		return nil, err
	}
	if assignee.IsAutomation() {
		return nil, apperrors.NewValidationError("escalations cannot be assigned to the automation account")
	}

	now := s.now()
	esc, err := s.mutate(ctx, cmd.EscalationID, func(e *escdomain.Escalation) error {
		return e.Assign(assignee.ID(), now)
	})
	if err != nil {
		s.logger.Errorw("failed to assign escalation", "escalation_id", cmd.EscalationID, "error", err)
		return nil, err
	}

	s.logger.Infow("escalation assigned", "escalation_id", esc.ID(), "assignee_id", assignee.ID())
	s.publish(ctx, events.ActionEscalationAssigned, esc, cmd.ActorID, now)
	if assignee.ID() != cmd.ActorID {
		s.notify(ctx, esc, assignee.ID(), assignment.NotificationEscalationAssigned,
			fmt.Sprintf("Escalation %d assigned to you", esc.ID()), esc.Reason())
	}
	return toResult(esc), nil
}

// StartInvestigation marks an escalation as under investigation. Once an
// escalation has an assignee only that officer may start it.
func (s *Service) StartInvestigation(ctx context.Context, cmd StartInvestigationCommand) (*Result, error) {
	s.logger.Infow("executing start escalation investigation use case",
		"escalation_id", cmd.EscalationID,
		"actor_id", cmd.ActorID)

	if cmd.EscalationID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("escalation and actor are required")
	}

	now := s.now()
	esc, err := s.mutate(ctx, cmd.EscalationID, func(e *escdomain.Escalation) error {
		if a := e.AssigneeID(); a != nil && *a != cmd.ActorID {
			return apperrors.NewValidationError("only the assignee can start the investigation")
		}
		return e.StartInvestigation(now)
	})
	if err != nil {
		s.logger.Errorw("failed to start escalation investigation", "escalation_id", cmd.EscalationID, "error", err)
		return nil, err
	}

	s.publish(ctx, events.ActionEscalationStarted, esc, cmd.ActorID, now)
	return toResult(esc), nil
}

// Resolve closes an open escalation. A human raiser is told about it.
func (s *Service) Resolve(ctx context.Context, cmd ResolveCommand) (*Result, error) {
	s.logger.Infow("executing resolve escalation use case",
		"escalation_id", cmd.EscalationID,
		"resolved_by", cmd.ResolvedBy)

	resolution := strings.TrimSpace(cmd.Resolution)
	if cmd.EscalationID == 0 || cmd.ResolvedBy == 0 {
		return nil, apperrors.NewValidationError("escalation and resolver are required")
	}
	if resolution == "" {
		return nil, apperrors.NewValidationError("resolution is required")
	}
	resolver, err := s.activeOfficer(ctx, cmd.ResolvedBy, "resolver")
	if err != nil {
		return nil, err
	}

	now := s.now()
	esc, err := s.mutate(ctx, cmd.EscalationID, func(e *escdomain.Escalation) error {
		return e.Resolve(resolver.ID(), resolution, now)
	})
	if err != nil {
		s.logger.Errorw("failed to resolve escalation", "escalation_id", cmd.EscalationID, "error", err)
		return nil, err
	}

	s.logger.Infow("escalation resolved", "escalation_id", esc.ID(), "resolved_by", resolver.ID())
	s.publish(ctx, events.ActionEscalationResolved, esc, resolver.ID(), now)
	if !esc.SystemRaised() && esc.RaisedBy() != resolver.ID() {
		s.notify(ctx, esc, esc.RaisedBy(), assignment.NotificationEscalationResolved,
			fmt.Sprintf("Escalation %d resolved", esc.ID()), resolution)
	}
	return toResult(esc), nil
}

// ListOpen returns every unresolved escalation, most severe first.
func (s *Service) ListOpen(ctx context.Context) ([]*Result, error) {
	list, err := s.escalationRepo.ListOpen(ctx)
	if err != nil {
		s.logger.Errorw("failed to list open escalations", "error", err)
		return nil, apperrors.NewInternalError("failed to list escalations").WithCause(err)
	}
	out := make([]*Result, 0, len(list))
	for _, e := range list {
		out = append(out, toResult(e))
	}
	sortBySeverity(out)
	return out, nil
}

func (s *Service) mutate(ctx context.Context, id uint, fn func(*escdomain.Escalation) error) (*escdomain.Escalation, error) {
	var esc *escdomain.Escalation
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.escalationRepo.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, escdomain.ErrEscalationNotFound) {
				return apperrors.NewNotFoundError("escalation not found").WithCause(err)
			}
			return apperrors.NewInternalError("failed to load escalation").WithCause(err)
		}
		if err := fn(e); err != nil {
			if apperrors.IsAppError(err) {
				return err
			}
			return apperrors.NewValidationError(err.Error())
		}
		if err := s.escalationRepo.Update(txCtx, e); err != nil {
			return apperrors.NewInternalError("failed to update escalation").WithCause(err)
		}
		esc = e
		return nil
	})
	return esc, err
}

func (s *Service) activeOfficer(ctx context.Context, id uint, what string) (*officer.Officer, error) {
	o, err := s.officerRepo.GetOfficer(ctx, id)
	if err != nil {
		if errors.Is(err, officer.ErrOfficerNotFound) {
			return nil, apperrors.NewNotFoundError(what + " not found").WithCause(err)
		}
		return nil, apperrors.NewInternalError("failed to load " + what).WithCause(err)
	}
	if !o.IsActive() {
		return nil, apperrors.NewValidationError(what + " is not active")
	}
	return o, nil
}

func (s *Service) administrators(ctx context.Context) []uint {
	var ids []uint
	for _, role := range []officer.Role{officer.RoleAdmin, officer.RoleSupervisor} {
		users, err := s.officerRepo.ListByRole(ctx, role)
		if err != nil {
			s.logger.Warnw("failed to list notification recipients", "role", role, "error", err)
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

func (s *Service) notify(ctx context.Context, esc *escdomain.Escalation, userID uint, notificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	escID := esc.ID()
	err := s.notifier.Notify(ctx, assignment.Notification{
		UserID:              userID,
		Type:                notificationType,
		Title:               title,
		Message:             message,
		Priority:            priorityFor(esc.Severity()),
		RelatedReportID:     esc.ReportID(),
		RelatedTaskID:       esc.TaskID(),
		RelatedEscalationID: &escID,
	})
	if err != nil {
		s.logger.Warnw("failed to send notification",
			"user_id", userID,
			"type", notificationType,
			"error", err)
	}
}

func (s *Service) publish(ctx context.Context, action string, esc *escdomain.Escalation, actorID uint, at time.Time) {
	if s.audit == nil {
		return
	}
	metadata := map[string]any{
		"type":     esc.Type().String(),
		"severity": esc.Severity().String(),
		"status":   esc.Status().String(),
	}
	if esc.ReportID() != nil {
		metadata["report_id"] = *esc.ReportID()
	}
	if esc.TaskID() != nil {
		metadata["task_id"] = *esc.TaskID()
	}
	if esc.AssigneeID() != nil {
		metadata["assignee_id"] = *esc.AssigneeID()
	}
	err := s.audit.Publish(ctx, events.AuditEvent{
		Action:       action,
		ActorID:      actorID,
		ResourceType: events.ResourceEscalation,
		ResourceID:   esc.ID(),
		Metadata:     metadata,
		OccurredAt:   at,
	})
	if err != nil {
		s.logger.Warnw("failed to publish audit event", "escalation_id", esc.ID(), "action", action, "error", err)
	}
}

func validateRaise(cmd RaiseCommand) (escvo.EscalationType, vo.Severity, error) {
	if cmd.ReportID == 0 {
		return "", "", apperrors.NewValidationError("report ID is required")
	}
	if cmd.RaisedBy == 0 {
		return "", "", apperrors.NewValidationError("raiser ID is required")
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return "", "", apperrors.NewValidationError("reason is required")
	}

	escType := escvo.TypeManual
	if cmd.Type != "" {
		t, err := escvo.NewEscalationType(cmd.Type)
		if err != nil {
			return "", "", apperrors.NewValidationError(err.Error())
		}
		escType = t
	}

	severity := vo.SeverityMedium
	if cmd.Severity != "" {
		sev := vo.Severity(cmd.Severity)
		if !sev.IsValid() {
			return "", "", apperrors.NewValidationError(fmt.Sprintf("invalid severity: %s", cmd.Severity))
		}
		severity = sev
	}
	return escType, severity, nil
}

func toResult(e *escdomain.Escalation) *Result {
	return &Result{
		ID:           e.ID(),
		ReportID:     e.ReportID(),
		TaskID:       e.TaskID(),
		Type:         e.Type().String(),
		Severity:     e.Severity().String(),
		Status:       e.Status().String(),
		Reason:       e.Reason(),
		RaisedBy:     e.RaisedBy(),
		SystemRaised: e.SystemRaised(),
		AssigneeID:   e.AssigneeID(),
		ResolvedBy:   e.ResolvedBy(),
		Resolution:   e.Resolution(),
		ResolvedAt:   e.ResolvedAt(),
		Metadata:     e.Metadata(),
		CreatedAt:    e.CreatedAt(),
		UpdatedAt:    e.UpdatedAt(),
	}
}

// sortBySeverity orders most severe first, oldest first within a severity.
func sortBySeverity(list []*Result) {
	sort.SliceStable(list, func(i, j int) bool {
		ri, rj := vo.Severity(list[i].Severity).Rank(), vo.Severity(list[j].Severity).Rank()
		if ri != rj {
			return ri > rj
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func priorityFor(s vo.Severity) string {
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

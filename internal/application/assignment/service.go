package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	apperrors "github.com/civictrack/civictrack/internal/shared/errors"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const departmentLockTTL = 30 * time.Second

type AssignDepartmentCommand struct {
	ReportID     uint
	DepartmentID uint
	ActorID      uint
	Notes        string
	AutoStatus   bool
}

type AssignOfficerCommand struct {
	ReportID         uint
	OfficerID        uint
	AssignerID       uint
	Priority         *int
	Notes            string
	AutoStatus       bool
	ValidateCapacity bool
}

type UpdateStatusCommand struct {
	ReportID uint
	Status   vo.ReportStatus
	ActorID  uint
	Notes    string
	// SkipValidation is for callers that already ran the validator.
	SkipValidation bool
}

type AutoAssignOfficerCommand struct {
	ReportID   uint
	AssignerID uint
	Strategy   Strategy
	Notes      string
}

type UnassignOfficerCommand struct {
	ReportID uint
	ActorID  uint
	Reason   string
}

type PutOnHoldCommand struct {
	ReportID uint
	ActorID  uint
	Reason   string
	Until    *time.Time
}

type ResumeFromHoldCommand struct {
	ReportID uint
	ActorID  uint
	// Target defaults to the status the report held before, mapped onto the
	// statuses reachable from on_hold.
	Target vo.ReportStatus
	Notes  string
}

type MarkDuplicateCommand struct {
	ReportID     uint
	CanonicalID  uint
	Similarity   float64
	ModelVersion string
	ActorID      uint
	NeedsReview  bool
}

type Result struct {
	ReportID       uint            `json:"report_id"`
	ReportNumber   string          `json:"report_number"`
	Status         vo.ReportStatus `json:"status"`
	PreviousStatus vo.ReportStatus `json:"previous_status"`
	DepartmentID   *uint           `json:"department_id,omitempty"`
	OfficerID      *uint           `json:"officer_id,omitempty"`
	TaskID         *uint           `json:"task_id,omitempty"`
	Priority       int             `json:"priority,omitempty"`
	Changed        bool            `json:"changed"`
}

// Service is the only writer of report and task lifecycle state.
type Service struct {
	txManager   TransactionManager
	reportRepo  report.ReportRepository
	taskRepo    report.TaskRepository
	historyRepo report.HistoryRepository
	officerRepo officer.Repository
	balancer    *WorkloadBalancer
	validator   *report.StatusTransitionValidator
	audit       events.AuditPublisher
	notifier    Notifier
	locker      Locker
	metrics     Metrics
	logger      logger.Interface
	now         func() time.Time
}

func NewService(
	txManager TransactionManager,
	reportRepo report.ReportRepository,
	taskRepo report.TaskRepository,
	historyRepo report.HistoryRepository,
	officerRepo officer.Repository,
	balancer *WorkloadBalancer,
	audit events.AuditPublisher,
	notifier Notifier,
	logger logger.Interface,
) *Service {
	return &Service{
		txManager:   txManager,
		reportRepo:  reportRepo,
		taskRepo:    taskRepo,
		historyRepo: historyRepo,
		officerRepo: officerRepo,
		balancer:    balancer,
		validator:   report.NewStatusTransitionValidator(),
		audit:       audit,
		notifier:    notifier,
		metrics:     nopMetrics{},
		logger:      logger,
		now:         biztime.NowUTC,
	}
}

// SetLocker serializes AutoAssignOfficer per department.
func (s *Service) SetLocker(locker Locker) {
	s.locker = locker
}

func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Balancer exposes the workload balancer used for officer selection.
func (s *Service) Balancer() *WorkloadBalancer {
	return s.balancer
}

// effects collects what is published once the transaction commits.
type effects struct {
	audit         []events.AuditEvent
	notifications []Notification
}

func (e *effects) record(action string, actorID uint, resourceType string, resourceID uint, at time.Time, metadata map[string]any) {
	e.audit = append(e.audit, events.AuditEvent{
		Action:       action,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
		OccurredAt:   at,
	})
}

func (e *effects) notify(n Notification) {
	e.notifications = append(e.notifications, n)
}

func (s *Service) publish(ctx context.Context, fx *effects) {
	for _, ev := range fx.audit {
		if s.audit == nil {
			break
		}
		if err := s.audit.Publish(ctx, ev); err != nil {
			s.logger.Warnw("failed to publish audit event",
				"action", ev.Action,
				"resource_id", ev.ResourceID,
				"error", err)
		}
	}
	for _, n := range fx.notifications {
		if s.notifier == nil {
			break
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warnw("failed to send notification",
				"type", n.Type,
				"user_id", n.UserID,
				"error", err)
		}
	}
}

func (s *Service) AssignDepartment(ctx context.Context, cmd AssignDepartmentCommand) (*Result, error) {
	s.logger.Infow("executing assign department",
		"report_id", cmd.ReportID,
		"department_id", cmd.DepartmentID,
		"actor_id", cmd.ActorID)

	if cmd.ReportID == 0 || cmd.DepartmentID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("report, department and actor are required")
	}

	fx := &effects{}
	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadForUpdate(txCtx, cmd.ReportID)
		if err != nil {
			return err
		}
		if r.Status().IsTerminal() {
			return apperrors.NewValidationError(
				fmt.Sprintf("report in status %s cannot be routed", r.Status()), report.ReasonInvalidTransition)
		}

		dept, err := s.officerRepo.GetDepartment(txCtx, cmd.DepartmentID)
		if err != nil {
			return mapLookupError(err, "department")
		}
		if !dept.IsActive() {
			return apperrors.NewValidationError("department is not active")
		}

		task, err := s.taskRepo.GetByReportID(txCtx, r.ID())
		if err != nil {
			return apperrors.NewInternalError("failed to load task").WithCause(err)
		}
		if task != nil && task.IsOpen() && r.HasDepartment() && *r.DepartmentID() != cmd.DepartmentID {
			return apperrors.NewValidationError("report has an active officer assignment in another department")
		}

		now := s.now()
		previous := r.Status()
		if err := r.AssignDepartment(cmd.DepartmentID, now); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		if cmd.ActorID != officer.AutomationActorID {
			r.MarkManuallyAssigned()
		}

		target := previous
		if cmd.AutoStatus && previous.IsPreAssignment() {
			target = vo.StatusAssignedToDepartment
		}
		if err := s.applyTransition(r, task, target, task != nil, false, now); err != nil {
			return err
		}

		note := cmd.Notes
		if note == "" {
			note = fmt.Sprintf("assigned to department %s", dept.Name())
		}
		if err := s.persist(txCtx, r, task, previous, cmd.ActorID, note, now); err != nil {
			return err
		}

		fx.record(events.ActionDepartmentAssigned, cmd.ActorID, events.ResourceReport, r.ID(), now, map[string]any{
			"department_id":   cmd.DepartmentID,
			"previous_status": previous.String(),
			"status":          r.Status().String(),
		})
		result = newResult(r, task, previous)
		return nil
	})
	s.metrics.ObserveAssignment("assign_department", err)
	if err != nil {
		s.logger.Errorw("failed to assign department", "report_id", cmd.ReportID, "error", err)
		return nil, toAppError(err)
	}

	s.publish(ctx, fx)
	s.logger.Infow("department assigned",
		"report_id", result.ReportID,
		"department_id", cmd.DepartmentID,
		"status", result.Status)
	return result, nil
}

func (s *Service) AssignOfficer(ctx context.Context, cmd AssignOfficerCommand) (*Result, error) {
	s.logger.Infow("executing assign officer",
		"report_id", cmd.ReportID,
		"officer_id", cmd.OfficerID,
		"assigner_id", cmd.AssignerID)

	if cmd.ReportID == 0 || cmd.OfficerID == 0 || cmd.AssignerID == 0 {
		return nil, apperrors.NewValidationError("report, officer and assigner are required")
	}
	if cmd.Priority != nil && (*cmd.Priority < report.MinTaskPriority || *cmd.Priority > report.MaxTaskPriority) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("priority must be between %d and %d", report.MinTaskPriority, report.MaxTaskPriority))
	}

	fx := &effects{}
	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.assignOfficerTx(txCtx, cmd, fx)
		return err
	})
	s.metrics.ObserveAssignment("assign_officer", err)
	if err != nil {
		s.logger.Errorw("failed to assign officer",
			"report_id", cmd.ReportID,
			"officer_id", cmd.OfficerID,
			"error", err)
		return nil, toAppError(err)
	}

	s.publish(ctx, fx)
	s.logger.Infow("officer assigned",
		"report_id", result.ReportID,
		"officer_id", cmd.OfficerID,
		"priority", result.Priority,
		"status", result.Status)
	return result, nil
}

func (s *Service) assignOfficerTx(ctx context.Context, cmd AssignOfficerCommand, fx *effects) (*Result, error) {
	r, err := s.loadForUpdate(ctx, cmd.ReportID)
	if err != nil {
		return nil, err
	}
	if !r.HasDepartment() {
		return nil, &report.TransitionError{
			From:   r.Status(),
			To:     vo.StatusAssignedToOfficer,
			Reason: report.ReasonMissingDepartment,
			Err:    report.ErrMissingDepartment,
		}
	}
	if r.Status().IsTerminal() || r.Status() == vo.StatusResolved {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("report in status %s cannot be assigned", r.Status()), report.ReasonInvalidTransition)
	}
	// a task only exists once the report is with an officer
	if !cmd.AutoStatus && (r.Status().IsPreAssignment() || r.Status() == vo.StatusAssignedToDepartment) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("report in status %s needs auto status to be assigned to an officer", r.Status()),
			report.ReasonInvalidTransition)
	}

	o, err := s.officerRepo.GetOfficer(ctx, cmd.OfficerID)
	if err != nil {
		return nil, mapLookupError(err, "officer")
	}
	if !o.IsActive() {
		return nil, apperrors.NewValidationError("officer is not active")
	}
	if !o.BelongsTo(*r.DepartmentID()) {
		return nil, apperrors.NewValidationError(
			"officer does not belong to the report's department",
			fmt.Sprintf("officer_id=%d department_id=%d", o.ID(), *r.DepartmentID()))
	}

	if cmd.ValidateCapacity && s.balancer != nil {
		w, err := s.balancer.GetOfficerWorkload(ctx, o.ID())
		if err != nil {
			s.logger.Warnw("failed to compute officer workload", "officer_id", o.ID(), "error", err)
		} else if w.Capacity == CapacityHigh {
			s.logger.Warnw("officer is over capacity",
				"officer_id", o.ID(),
				"active_reports", w.ActiveReports,
				"workload_score", w.WorkloadScore)
		}
	}

	now := s.now()
	priority := CalculatePriority(r.Severity(), r.CreatedAt(), now)
	if cmd.Priority != nil {
		priority = *cmd.Priority
	}

	task, err := s.taskRepo.GetByReportID(ctx, r.ID())
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load task").WithCause(err)
	}
	if task == nil {
		task, err = report.NewTask(r.ID(), o.ID(), cmd.AssignerID, priority, cmd.Notes, now)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		task.SetSLADeadline(now.Add(r.Severity().SLAWindow()))
		if err := s.taskRepo.Create(ctx, task); err != nil {
			return nil, apperrors.NewInternalError("failed to create task").WithCause(err)
		}
	} else {
		if err := task.Reassign(o.ID(), cmd.AssignerID, priority, cmd.Notes, now); err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		task.SetSLADeadline(now.Add(r.Severity().SLAWindow()))
		// a report already past acknowledgement keeps its stage
		if ts, ok := vo.TaskStatusFor(r.Status()); ok && ts.IsOpen() && ts != vo.TaskAssigned {
			if err := task.ApplyStatus(ts, now); err != nil {
				return nil, apperrors.NewInternalError("failed to align task status").WithCause(err)
			}
		}
	}

	if cmd.AssignerID != officer.AutomationActorID {
		r.MarkManuallyAssigned()
	}

	previous := r.Status()
	target := previous
	if cmd.AutoStatus && (previous.IsPreAssignment() || previous == vo.StatusAssignedToDepartment) {
		target = vo.StatusAssignedToOfficer
	}
	if err := s.applyTransition(r, task, target, true, false, now); err != nil {
		return nil, err
	}

	note := cmd.Notes
	if note == "" {
		note = fmt.Sprintf("assigned to officer %d", o.ID())
	}
	if err := s.persist(ctx, r, task, previous, cmd.AssignerID, note, now); err != nil {
		return nil, err
	}

	fx.record(events.ActionOfficerAssigned, cmd.AssignerID, events.ResourceReport, r.ID(), now, map[string]any{
		"officer_id":      o.ID(),
		"task_id":         task.ID(),
		"priority":        task.Priority(),
		"previous_status": previous.String(),
		"status":          r.Status().String(),
	})
	reportID := r.ID()
	taskID := task.ID()
	fx.notify(Notification{
		UserID:          o.ID(),
		Type:            NotificationTaskAssigned,
		Title:           fmt.Sprintf("New assignment %s", r.Number()),
		Message:         fmt.Sprintf("%s (severity %s, priority %d)", r.Title(), r.Severity(), task.Priority()),
		Priority:        notificationPriorityFor(r.Severity()),
		RelatedReportID: &reportID,
		RelatedTaskID:   &taskID,
	})

	return newResult(r, task, previous), nil
}

func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Result, error) {
	s.logger.Infow("executing update status",
		"report_id", cmd.ReportID,
		"status", cmd.Status,
		"actor_id", cmd.ActorID)

	if cmd.ReportID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("report and actor are required")
	}
	if !cmd.Status.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid report status: %s", cmd.Status))
	}

	fx := &effects{}
	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadForUpdate(txCtx, cmd.ReportID)
		if err != nil {
			return err
		}
		task, err := s.taskRepo.GetByReportID(txCtx, r.ID())
		if err != nil {
			return apperrors.NewInternalError("failed to load task").WithCause(err)
		}

		previous := r.Status()
		if previous == cmd.Status {
			result = newResult(r, task, previous)
			return nil
		}

		now := s.now()
		if err := s.applyTransition(r, task, cmd.Status, task != nil, cmd.SkipValidation, now); err != nil {
			return err
		}
		if err := s.persist(txCtx, r, task, previous, cmd.ActorID, cmd.Notes, now); err != nil {
			return err
		}

		s.recordStatusChange(fx, r, task, previous, cmd.ActorID, cmd.Notes, now)
		result = newResult(r, task, previous)
		return nil
	})
	s.metrics.ObserveAssignment("update_status", err)
	if err != nil {
		s.logger.Errorw("failed to update report status",
			"report_id", cmd.ReportID,
			"status", cmd.Status,
			"error", err)
		return nil, toAppError(err)
	}

	s.publish(ctx, fx)
	s.logger.Infow("report status updated",
		"report_id", result.ReportID,
		"previous_status", result.PreviousStatus,
		"status", result.Status,
		"changed", result.Changed)
	return result, nil
}

func (s *Service) AutoAssignOfficer(ctx context.Context, cmd AutoAssignOfficerCommand) (*Result, error) {
	s.logger.Infow("executing auto assign officer",
		"report_id", cmd.ReportID,
		"strategy", cmd.Strategy)

	if cmd.ReportID == 0 || cmd.AssignerID == 0 {
		return nil, apperrors.NewValidationError("report and assigner are required")
	}
	strategy := cmd.Strategy
	if strategy == "" {
		strategy = StrategyBalanced
	}

	r, err := s.reportRepo.GetByID(ctx, cmd.ReportID)
	if err != nil {
		s.metrics.ObserveAssignment("auto_assign_officer", err)
		return nil, toAppError(mapReportLookupError(err))
	}
	if !r.HasDepartment() {
		err := apperrors.NewValidationError("report has no department assigned", report.ReasonMissingDepartment)
		s.metrics.ObserveAssignment("auto_assign_officer", err)
		s.logger.Warnw("cannot auto assign officer", "report_id", cmd.ReportID, "error", err)
		return nil, err
	}
	departmentID := *r.DepartmentID()

	if s.locker != nil {
		unlock, err := s.locker.Acquire(ctx, fmt.Sprintf("assign:department:%d", departmentID), departmentLockTTL)
		if err != nil {
			s.metrics.ObserveAssignment("auto_assign_officer", err)
			s.logger.Errorw("failed to acquire department assignment lock",
				"department_id", departmentID,
				"error", err)
			return nil, apperrors.NewInternalError("failed to acquire department assignment lock").WithCause(err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warnw("failed to release department assignment lock",
					"department_id", departmentID,
					"error", err)
			}
		}()
	}

	best, err := s.balancer.SelectBestOfficer(ctx, departmentID, strategy, true)
	if err != nil {
		s.metrics.ObserveAssignment("auto_assign_officer", err)
		return nil, toAppError(err)
	}
	if best == nil {
		err := apperrors.NewValidationError("no officers available",
			fmt.Sprintf("department_id=%d", departmentID))
		s.metrics.ObserveAssignment("auto_assign_officer", err)
		s.logger.Warnw("no officers available for auto assignment",
			"report_id", cmd.ReportID,
			"department_id", departmentID)
		return nil, err
	}

	return s.AssignOfficer(ctx, AssignOfficerCommand{
		ReportID:         cmd.ReportID,
		OfficerID:        best.ID(),
		AssignerID:       cmd.AssignerID,
		Notes:            cmd.Notes,
		AutoStatus:       true,
		ValidateCapacity: false,
	})
}

// UnassignOfficer rejects the open task and returns the report to its department queue.
func (s *Service) UnassignOfficer(ctx context.Context, cmd UnassignOfficerCommand) (*Result, error) {
	s.logger.Infow("executing unassign officer",
		"report_id", cmd.ReportID,
		"actor_id", cmd.ActorID)

	if cmd.ReportID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("report and actor are required")
	}

	fx := &effects{}
	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadForUpdate(txCtx, cmd.ReportID)
		if err != nil {
			return err
		}
		task, err := s.taskRepo.GetByReportID(txCtx, r.ID())
		if err != nil {
			return apperrors.NewInternalError("failed to load task").WithCause(err)
		}
		if task == nil || !task.IsOpen() {
			return &report.TransitionError{
				From:   r.Status(),
				To:     vo.StatusAssignedToDepartment,
				Reason: report.ReasonMissingTask,
				Err:    report.ErrMissingTask,
			}
		}

		now := s.now()
		previous := r.Status()
		officerID := task.OfficerID()
		if err := s.applyTransition(r, task, vo.StatusAssignedToDepartment, true, false, now); err != nil {
			return err
		}
		task.AppendNotes(cmd.Reason)

		note := cmd.Reason
		if note == "" {
			note = fmt.Sprintf("officer %d unassigned", officerID)
		}
		if err := s.persist(txCtx, r, task, previous, cmd.ActorID, note, now); err != nil {
			return err
		}

		fx.record(events.ActionOfficerUnassigned, cmd.ActorID, events.ResourceReport, r.ID(), now, map[string]any{
			"officer_id": officerID,
			"task_id":    task.ID(),
			"reason":     cmd.Reason,
		})
		result = newResult(r, task, previous)
		return nil
	})
	s.metrics.ObserveAssignment("unassign_officer", err)
	if err != nil {
		s.logger.Errorw("failed to unassign officer", "report_id", cmd.ReportID, "error", err)
		return nil, toAppError(err)
	}

	s.publish(ctx, fx)
	s.logger.Infow("officer unassigned", "report_id", result.ReportID, "status", result.Status)
	return result, nil
}

func (s *Service) PutOnHold(ctx context.Context, cmd PutOnHoldCommand) (*Result, error) {
	s.logger.Infow("executing put on hold",
		"report_id", cmd.ReportID,
		"actor_id", cmd.ActorID)

	if cmd.ReportID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("report and actor are required")
	}
	if cmd.Reason == "" {
		return nil, apperrors.NewValidationError("hold reason is required")
	}
	if cmd.Until != nil && !cmd.Until.After(s.now()) {
		return nil, apperrors.NewValidationError("hold end must be in the future")
	}

	fx := &effects{}
	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadForUpdate(txCtx, cmd.ReportID)
		if err != nil {
			return err
		}
		task, err := s.taskRepo.GetByReportID(txCtx, r.ID())
		if err != nil {
			return apperrors.NewInternalError("failed to load task").WithCause(err)
		}

		now := s.now()
		previous := r.Status()
		if previous == vo.StatusOnHold {
			r.SetHoldDetails(cmd.Reason, cmd.Until)
			if err := s.reportRepo.Update(txCtx, r); err != nil {
				return apperrors.NewInternalError("failed to update report").WithCause(err)
			}
			result = newResult(r, task, previous)
			return nil
		}

		if err := s.applyTransition(r, task, vo.StatusOnHold, task != nil, false, now); err != nil {
			return err
		}
		r.SetHoldDetails(cmd.Reason, cmd.Until)
		if err := s.persist(txCtx, r, task, previous, cmd.ActorID, cmd.Reason, now); err != nil {
			return err
		}

		s.recordStatusChange(fx, r, task, previous, cmd.ActorID, cmd.Reason, now)
		result = newResult(r, task, previous)
		return nil
	})
	s.metrics.ObserveAssignment("put_on_hold", err)
	if err != nil {
		s.logger.Errorw("failed to put report on hold", "report_id", cmd.ReportID, "error", err)
		return nil, toAppError(err)
	}

	s.publish(ctx, fx)
	s.logger.Infow("report put on hold", "report_id", result.ReportID, "previous_status", result.PreviousStatus)
	return result, nil
}

func (s *Service) ResumeFromHold(ctx context.Context, cmd ResumeFromHoldCommand) (*Result, error) {
	s.logger.Infow("executing resume from hold",
		"report_id", cmd.ReportID,
		"actor_id", cmd.ActorID)

	if cmd.ReportID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("report and actor are required")
	}

	fx := &effects{}
	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadForUpdate(txCtx, cmd.ReportID)
		if err != nil {
			return err
		}
		if r.Status() != vo.StatusOnHold {
			return apperrors.NewValidationError(
				fmt.Sprintf("report is %s, not on hold", r.Status()), report.ReasonInvalidTransition)
		}
		task, err := s.taskRepo.GetByReportID(txCtx, r.ID())
		if err != nil {
			return apperrors.NewInternalError("failed to load task").WithCause(err)
		}

		target := cmd.Target
		if target == "" {
			target = resumeTarget(r, task)
		}

		now := s.now()
		previous := r.Status()
		if err := s.applyTransition(r, task, target, task != nil && task.IsOpen(), false, now); err != nil {
			return err
		}
		if err := s.persist(txCtx, r, task, previous, cmd.ActorID, cmd.Notes, now); err != nil {
			return err
		}

		s.recordStatusChange(fx, r, task, previous, cmd.ActorID, cmd.Notes, now)
		result = newResult(r, task, previous)
		return nil
	})
	s.metrics.ObserveAssignment("resume_from_hold", err)
	if err != nil {
		s.logger.Errorw("failed to resume report", "report_id", cmd.ReportID, "error", err)
		return nil, toAppError(err)
	}

	s.publish(ctx, fx)
	s.logger.Infow("report resumed", "report_id", result.ReportID, "status", result.Status)
	return result, nil
}

// MarkDuplicate links a report to its canonical report and closes it as duplicate.
func (s *Service) MarkDuplicate(ctx context.Context, cmd MarkDuplicateCommand) (*Result, error) {
	s.logger.Infow("executing mark duplicate",
		"report_id", cmd.ReportID,
		"canonical_id", cmd.CanonicalID,
		"similarity", cmd.Similarity)

	if cmd.ReportID == 0 || cmd.CanonicalID == 0 || cmd.ActorID == 0 {
		return nil, apperrors.NewValidationError("report, canonical report and actor are required")
	}

	fx := &effects{}
	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadForUpdate(txCtx, cmd.ReportID)
		if err != nil {
			return err
		}

		now := s.now()
		previous := r.Status()
		if err := s.applyTransition(r, nil, vo.StatusDuplicate, false, false, now); err != nil {
			return err
		}
		if err := r.MarkDuplicate(cmd.CanonicalID, cmd.Similarity, cmd.ModelVersion, now); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		if cmd.NeedsReview {
			r.FlagForReview()
		}

		note := fmt.Sprintf("duplicate of report %d (similarity %.2f)", cmd.CanonicalID, cmd.Similarity)
		if err := s.persist(txCtx, r, nil, previous, cmd.ActorID, note, now); err != nil {
			return err
		}

		fx.record(events.ActionReportDuplicate, cmd.ActorID, events.ResourceReport, r.ID(), now, map[string]any{
			"canonical_id": cmd.CanonicalID,
			"similarity":   cmd.Similarity,
			"needs_review": cmd.NeedsReview,
		})
		result = newResult(r, nil, previous)
		return nil
	})
	s.metrics.ObserveAssignment("mark_duplicate", err)
	if err != nil {
		s.logger.Errorw("failed to mark report duplicate", "report_id", cmd.ReportID, "error", err)
		return nil, toAppError(err)
	}

	s.publish(ctx, fx)
	return result, nil
}

func (s *Service) loadForUpdate(ctx context.Context, reportID uint) (*report.Report, error) {
	r, err := s.reportRepo.GetByIDForUpdate(ctx, reportID)
	if err != nil {
		return nil, mapReportLookupError(err)
	}
	return r, nil
}

// applyTransition validates and applies target, keeping the task in step.
func (s *Service) applyTransition(r *report.Report, task *report.Task, target vo.ReportStatus, hasTask, skipValidation bool, at time.Time) error {
	if r.Status() == target {
		return nil
	}
	if !skipValidation {
		if err := s.validator.Validate(r, target, hasTask); err != nil {
			return err
		}
	}
	if task != nil {
		ts, ok := vo.TaskStatusFor(target)
		switch {
		case target == vo.StatusAssignedToDepartment:
			// back with the department, so the officer's task ends
			ts, ok = vo.TaskRejected, task.IsOpen()
		case ok && ts.IsOpen() && !task.IsOpen():
			// only AssignOfficer reopens a closed task
			if target != vo.StatusOnHold {
				return &report.TransitionError{
					From:   r.Status(),
					To:     target,
					Reason: report.ReasonMissingTask,
					Err:    report.ErrMissingTask,
				}
			}
			ok = false
		}
		if ok {
			if err := task.ApplyStatus(ts, at); err != nil {
				return apperrors.NewInternalError("failed to update task status").WithCause(err)
			}
		}
	}
	r.ApplyStatus(target, at)
	return nil
}

// persist writes the report, the task and exactly one history row.
func (s *Service) persist(ctx context.Context, r *report.Report, task *report.Task, previous vo.ReportStatus, actorID uint, note string, at time.Time) error {
	if err := s.reportRepo.Update(ctx, r); err != nil {
		return apperrors.NewInternalError("failed to update report").WithCause(err)
	}
	if task != nil && task.ID() != 0 {
		if err := s.taskRepo.Update(ctx, task); err != nil {
			return apperrors.NewInternalError("failed to update task").WithCause(err)
		}
	}
	old := previous
	h, err := report.NewStatusHistory(r.ID(), &old, r.Status(), actorID, note, at)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := s.historyRepo.Append(ctx, h); err != nil {
		return apperrors.NewInternalError("failed to record status history").WithCause(err)
	}
	return nil
}

func (s *Service) recordStatusChange(fx *effects, r *report.Report, task *report.Task, previous vo.ReportStatus, actorID uint, note string, at time.Time) {
	fx.record(events.ActionStatusChanged, actorID, events.ResourceReport, r.ID(), at, map[string]any{
		"previous_status": previous.String(),
		"status":          r.Status().String(),
		"note":            note,
	})

	reportID := r.ID()
	if r.SubmitterID() != 0 && r.SubmitterID() != actorID {
		fx.notify(Notification{
			UserID:          r.SubmitterID(),
			Type:            NotificationStatusChanged,
			Title:           fmt.Sprintf("Report %s is now %s", r.Number(), r.Status()),
			Message:         note,
			Priority:        NotificationPriorityNormal,
			RelatedReportID: &reportID,
		})
	}
	if task != nil && task.IsOpen() && task.OfficerID() != actorID {
		taskID := task.ID()
		fx.notify(Notification{
			UserID:          task.OfficerID(),
			Type:            NotificationStatusChanged,
			Title:           fmt.Sprintf("Report %s moved to %s", r.Number(), r.Status()),
			Message:         note,
			Priority:        NotificationPriorityNormal,
			RelatedReportID: &reportID,
			RelatedTaskID:   &taskID,
		})
	}
}

func resumeTarget(r *report.Report, task *report.Task) vo.ReportStatus {
	prev := vo.StatusAssignedToDepartment
	if h := r.Hold(); h != nil && h.PreviousStatus != "" {
		prev = h.PreviousStatus
	}
	switch prev {
	case vo.StatusAssignedToDepartment, vo.StatusAssignedToOfficer, vo.StatusInProgress:
		return prev
	case vo.StatusAcknowledged:
		return vo.StatusAssignedToOfficer
	case vo.StatusPendingVerification:
		return vo.StatusInProgress
	}
	if task != nil && task.IsOpen() {
		return vo.StatusAssignedToOfficer
	}
	return vo.StatusAssignedToDepartment
}

func newResult(r *report.Report, task *report.Task, previous vo.ReportStatus) *Result {
	res := &Result{
		ReportID:       r.ID(),
		ReportNumber:   r.Number(),
		Status:         r.Status(),
		PreviousStatus: previous,
		DepartmentID:   r.DepartmentID(),
		Changed:        previous != r.Status(),
	}
	if task != nil {
		officerID := task.OfficerID()
		taskID := task.ID()
		res.OfficerID = &officerID
		res.TaskID = &taskID
		res.Priority = task.Priority()
	}
	return res
}

func notificationPriorityFor(sev vo.Severity) string {
	switch sev {
	case vo.SeverityCritical:
		return NotificationPriorityUrgent
	case vo.SeverityHigh:
		return NotificationPriorityHigh
	case vo.SeverityLow:
		return NotificationPriorityLow
	}
	return NotificationPriorityNormal
}

func mapReportLookupError(err error) error {
	if errors.Is(err, report.ErrReportNotFound) {
		return apperrors.NewNotFoundError("report not found").WithCause(err)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.NewInternalError("failed to load report").WithCause(err)
}

func mapLookupError(err error, what string) error {
	if errors.Is(err, officer.ErrOfficerNotFound) || errors.Is(err, officer.ErrDepartmentNotFound) {
		return apperrors.NewNotFoundError(what + " not found").WithCause(err)
	}
	return apperrors.NewInternalError("failed to load " + what).WithCause(err)
}

// toAppError maps domain transition failures onto validation errors that
// name the offending transition.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	var te *report.TransitionError
	if errors.As(err, &te) {
		msg := fmt.Sprintf("cannot transition report from %s to %s", te.From, te.To)
		switch te.Reason {
		case report.ReasonMissingDepartment:
			msg = "report has no department assigned"
		case report.ReasonMissingTask:
			msg = fmt.Sprintf("report has no task; cannot move to %s", te.To)
		}
		return apperrors.NewValidationError(msg, te.Reason).WithCause(err)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, report.ErrReportNotFound) {
		return apperrors.NewNotFoundError("report not found").WithCause(err)
	}
	return apperrors.NewInternalError("unexpected assignment failure").WithCause(err)
}

package escalation

import (
	"fmt"
	"time"

	vo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
	reportvo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

type Escalation struct {
	id           uint
	reportID     *uint
	taskID       *uint
	escalType    vo.EscalationType
	severity     reportvo.Severity
	status       vo.EscalationStatus
	reason       string
	metadata     map[string]any
	raisedBy     uint
	systemRaised bool
	assigneeID   *uint
	resolvedBy   *uint
	resolution   string
	resolvedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewEscalation creates a pending escalation. At least one of reportID and
// taskID must be set.
func NewEscalation(
	reportID *uint,
	taskID *uint,
	escalType vo.EscalationType,
	severity reportvo.Severity,
	reason string,
	raisedBy uint,
	systemRaised bool,
	metadata map[string]any,
	at time.Time,
) (*Escalation, error) {
	if reportID == nil && taskID == nil {
		return nil, fmt.Errorf("escalation must reference a report or a task")
	}
	if !escalType.IsValid() {
		return nil, fmt.Errorf("invalid escalation type: %s", escalType)
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("invalid severity: %s", severity)
	}
	if raisedBy == 0 {
		return nil, fmt.Errorf("raiser ID is required")
	}
	if reason == "" {
		return nil, fmt.Errorf("reason is required")
	}

	return &Escalation{
		reportID:     reportID,
		taskID:       taskID,
		escalType:    escalType,
		severity:     severity,
		status:       vo.StatusPending,
		reason:       reason,
		metadata:     metadata,
		raisedBy:     raisedBy,
		systemRaised: systemRaised,
		createdAt:    at,
		updatedAt:    at,
	}, nil
}

type EscalationState struct {
	ID           uint
	ReportID     *uint
	TaskID       *uint
	Type         vo.EscalationType
	Severity     reportvo.Severity
	Status       vo.EscalationStatus
	Reason       string
	Metadata     map[string]any
	RaisedBy     uint
	SystemRaised bool
	AssigneeID   *uint
	ResolvedBy   *uint
	Resolution   string
	ResolvedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func ReconstructEscalation(s EscalationState) (*Escalation, error) {
	if s.ID == 0 {
		return nil, fmt.Errorf("escalation ID cannot be zero")
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("invalid escalation status: %s", s.Status)
	}
	return &Escalation{
		id:           s.ID,
		reportID:     s.ReportID,
		taskID:       s.TaskID,
		escalType:    s.Type,
		severity:     s.Severity,
		status:       s.Status,
		reason:       s.Reason,
		metadata:     s.Metadata,
		raisedBy:     s.RaisedBy,
		systemRaised: s.SystemRaised,
		assigneeID:   s.AssigneeID,
		resolvedBy:   s.ResolvedBy,
		resolution:   s.Resolution,
		resolvedAt:   s.ResolvedAt,
		createdAt:    s.CreatedAt,
		updatedAt:    s.UpdatedAt,
	}, nil
}

func (e *Escalation) ID() uint {
	return e.id
}

func (e *Escalation) ReportID() *uint {
	return e.reportID
}

func (e *Escalation) TaskID() *uint {
	return e.taskID
}

func (e *Escalation) Type() vo.EscalationType {
	return e.escalType
}

func (e *Escalation) Severity() reportvo.Severity {
	return e.severity
}

func (e *Escalation) Status() vo.EscalationStatus {
	return e.status
}

func (e *Escalation) Reason() string {
	return e.reason
}

func (e *Escalation) Metadata() map[string]any {
	return e.metadata
}

func (e *Escalation) RaisedBy() uint {
	return e.raisedBy
}

func (e *Escalation) SystemRaised() bool {
	return e.systemRaised
}

func (e *Escalation) AssigneeID() *uint {
	return e.assigneeID
}

func (e *Escalation) ResolvedBy() *uint {
	return e.resolvedBy
}

func (e *Escalation) Resolution() string {
	return e.resolution
}

func (e *Escalation) ResolvedAt() *time.Time {
	return e.resolvedAt
}

func (e *Escalation) CreatedAt() time.Time {
	return e.createdAt
}

func (e *Escalation) UpdatedAt() time.Time {
	return e.updatedAt
}

func (e *Escalation) IsOpen() bool {
	return e.status.IsOpen()
}

func (e *Escalation) SetID(id uint) error {
	if e.id != 0 {
		return fmt.Errorf("escalation ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("escalation ID cannot be zero")
	}
	e.id = id
	return nil
}

func (e *Escalation) transition(next vo.EscalationStatus, at time.Time) error {
	if !e.status.CanTransitionTo(next) {
		return fmt.Errorf("cannot transition escalation from %s to %s", e.status, next)
	}
	e.status = next
	e.updatedAt = at
	return nil
}

func (e *Escalation) Assign(assigneeID uint, at time.Time) error {
	if assigneeID == 0 {
		return fmt.Errorf("assignee ID is required")
	}
	if err := e.transition(vo.StatusAssigned, at); err != nil {
		return err
	}
	e.assigneeID = &assigneeID
	return nil
}

func (e *Escalation) StartInvestigation(at time.Time) error {
	return e.transition(vo.StatusInvestigating, at)
}

func (e *Escalation) Resolve(resolvedBy uint, resolution string, at time.Time) error {
	if resolvedBy == 0 {
		return fmt.Errorf("resolver ID is required")
	}
	if err := e.transition(vo.StatusResolved, at); err != nil {
		return err
	}
	e.resolvedBy = &resolvedBy
	e.resolution = resolution
	t := at
	e.resolvedAt = &t
	return nil
}

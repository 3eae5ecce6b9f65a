package report

import (
	"fmt"
	"time"

	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

const (
	MinTaskPriority = 1
	MaxTaskPriority = 10
)

// Task binds a report to the officer working it.
type Task struct {
	id              uint
	reportID        uint
	officerID       uint
	assignedBy      uint
	status          vo.TaskStatus
	priority        int
	notes           string
	slaDeadline     *time.Time
	slaWarningSent  bool
	slaViolated     bool
	assignedAt      time.Time
	acknowledgedAt  *time.Time
	startedAt       *time.Time
	resolvedAt      *time.Time
	statusChangedAt time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

func NewTask(reportID, officerID, assignedBy uint, priority int, notes string, at time.Time) (*Task, error) {
	if reportID == 0 {
		return nil, fmt.Errorf("report ID is required")
	}
	if officerID == 0 {
		return nil, fmt.Errorf("officer ID is required")
	}
	if assignedBy == 0 {
		return nil, fmt.Errorf("assigner ID is required")
	}
	if priority < MinTaskPriority || priority > MaxTaskPriority {
		return nil, fmt.Errorf("priority must be between %d and %d", MinTaskPriority, MaxTaskPriority)
	}

	return &Task{
		reportID:        reportID,
		officerID:       officerID,
		assignedBy:      assignedBy,
		status:          vo.TaskAssigned,
		priority:        priority,
		notes:           notes,
		assignedAt:      at,
		statusChangedAt: at,
		createdAt:       at,
		updatedAt:       at,
	}, nil
}

// TaskState carries every persisted field, used to rebuild a Task.
type TaskState struct {
	ID              uint
	ReportID        uint
	OfficerID       uint
	AssignedBy      uint
	Status          vo.TaskStatus
	Priority        int
	Notes           string
	SLADeadline     *time.Time
	SLAWarningSent  bool
	SLAViolated     bool
	AssignedAt      time.Time
	AcknowledgedAt  *time.Time
	StartedAt       *time.Time
	ResolvedAt      *time.Time
	StatusChangedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func ReconstructTask(s TaskState) (*Task, error) {
	if s.ID == 0 {
		return nil, fmt.Errorf("task ID cannot be zero")
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("invalid task status: %s", s.Status)
	}
	return &Task{
		id:              s.ID,
		reportID:        s.ReportID,
		officerID:       s.OfficerID,
		assignedBy:      s.AssignedBy,
		status:          s.Status,
		priority:        s.Priority,
		notes:           s.Notes,
		slaDeadline:     s.SLADeadline,
		slaWarningSent:  s.SLAWarningSent,
		slaViolated:     s.SLAViolated,
		assignedAt:      s.AssignedAt,
		acknowledgedAt:  s.AcknowledgedAt,
		startedAt:       s.StartedAt,
		resolvedAt:      s.ResolvedAt,
		statusChangedAt: s.StatusChangedAt,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
	}, nil
}

func (t *Task) ID() uint {
	return t.id
}

func (t *Task) ReportID() uint {
	return t.reportID
}

func (t *Task) OfficerID() uint {
	return t.officerID
}

func (t *Task) AssignedBy() uint {
	return t.assignedBy
}

func (t *Task) Status() vo.TaskStatus {
	return t.status
}

func (t *Task) Priority() int {
	return t.priority
}

func (t *Task) Notes() string {
	return t.notes
}

func (t *Task) SLADeadline() *time.Time {
	return t.slaDeadline
}

func (t *Task) SLAWarningSent() bool {
	return t.slaWarningSent
}

func (t *Task) SLAViolated() bool {
	return t.slaViolated
}

func (t *Task) AssignedAt() time.Time {
	return t.assignedAt
}

func (t *Task) AcknowledgedAt() *time.Time {
	return t.acknowledgedAt
}

func (t *Task) StartedAt() *time.Time {
	return t.startedAt
}

func (t *Task) ResolvedAt() *time.Time {
	return t.resolvedAt
}

// StatusChangedAt is when the task entered its current status.
func (t *Task) StatusChangedAt() time.Time {
	return t.statusChangedAt
}

func (t *Task) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Task) UpdatedAt() time.Time {
	return t.updatedAt
}

func (t *Task) IsOpen() bool {
	return t.status.IsOpen()
}

func (t *Task) SetID(id uint) error {
	if t.id != 0 {
		return fmt.Errorf("task ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("task ID cannot be zero")
	}
	t.id = id
	return nil
}

// Reassign hands the task to a (possibly different) officer and restarts
// its SLA clock.
func (t *Task) Reassign(officerID, assignedBy uint, priority int, notes string, at time.Time) error {
	if officerID == 0 {
		return fmt.Errorf("officer ID is required")
	}
	if assignedBy == 0 {
		return fmt.Errorf("assigner ID is required")
	}
	if priority < MinTaskPriority || priority > MaxTaskPriority {
		return fmt.Errorf("priority must be between %d and %d", MinTaskPriority, MaxTaskPriority)
	}
	t.officerID = officerID
	t.assignedBy = assignedBy
	t.priority = priority
	if notes != "" {
		t.notes = notes
	}
	t.status = vo.TaskAssigned
	t.assignedAt = at
	t.statusChangedAt = at
	t.acknowledgedAt = nil
	t.startedAt = nil
	t.resolvedAt = nil
	t.slaDeadline = nil
	t.slaWarningSent = false
	t.slaViolated = false
	t.updatedAt = at
	return nil
}

func (t *Task) ApplyStatus(next vo.TaskStatus, at time.Time) error {
	if !next.IsValid() {
		return fmt.Errorf("invalid task status: %s", next)
	}
	if t.status == next {
		return nil
	}
	t.status = next
	t.statusChangedAt = at
	t.updatedAt = at

	switch next {
	case vo.TaskAcknowledged:
		if t.acknowledgedAt == nil {
			ts := at
			t.acknowledgedAt = &ts
		}
	case vo.TaskInProgress:
		if t.startedAt == nil {
			ts := at
			t.startedAt = &ts
		}
	case vo.TaskResolved, vo.TaskRejected:
		if t.resolvedAt == nil {
			ts := at
			t.resolvedAt = &ts
		}
	}
	return nil
}

func (t *Task) AppendNotes(notes string) {
	if notes == "" {
		return
	}
	if t.notes == "" {
		t.notes = notes
		return
	}
	t.notes = t.notes + "\n" + notes
}

func (t *Task) SetSLADeadline(deadline time.Time) {
	d := deadline
	t.slaDeadline = &d
}

// MarkSLAWarning returns false when the warning was already recorded.
func (t *Task) MarkSLAWarning() bool {
	if t.slaWarningSent {
		return false
	}
	t.slaWarningSent = true
	return true
}

// MarkSLAViolated returns false when the violation was already recorded.
func (t *Task) MarkSLAViolated() bool {
	if t.slaViolated {
		return false
	}
	t.slaViolated = true
	return true
}

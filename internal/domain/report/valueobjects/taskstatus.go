package valueobjects

import "fmt"

type TaskStatus string

const (
	TaskAssigned     TaskStatus = "assigned"
	TaskAcknowledged TaskStatus = "acknowledged"
	TaskInProgress   TaskStatus = "in_progress"
	TaskOnHold       TaskStatus = "on_hold"
	TaskResolved     TaskStatus = "resolved"
	TaskRejected     TaskStatus = "rejected"
)

var validTaskStatuses = map[TaskStatus]bool{
	TaskAssigned:     true,
	TaskAcknowledged: true,
	TaskInProgress:   true,
	TaskOnHold:       true,
	TaskResolved:     true,
	TaskRejected:     true,
}

// OpenTaskStatuses are the statuses counted as an officer's active workload.
var OpenTaskStatuses = []TaskStatus{TaskAssigned, TaskAcknowledged, TaskInProgress, TaskOnHold}

// SLATrackedTaskStatuses are the statuses watched by the SLA monitor.
var SLATrackedTaskStatuses = []TaskStatus{TaskAssigned, TaskAcknowledged, TaskInProgress}

func (ts TaskStatus) String() string {
	return string(ts)
}

func (ts TaskStatus) IsValid() bool {
	return validTaskStatuses[ts]
}

func (ts TaskStatus) IsTerminal() bool {
	return ts == TaskResolved || ts == TaskRejected
}

func (ts TaskStatus) IsOpen() bool {
	return ts.IsValid() && !ts.IsTerminal()
}

// TaskStatusFor maps a report status to the task status it implies.
// The second return value is false when the report status leaves the task untouched.
func TaskStatusFor(rs ReportStatus) (TaskStatus, bool) {
	switch rs {
	case StatusAssignedToOfficer:
		return TaskAssigned, true
	case StatusAcknowledged:
		return TaskAcknowledged, true
	case StatusInProgress:
		return TaskInProgress, true
	case StatusOnHold:
		return TaskOnHold, true
	case StatusResolved, StatusClosed:
		return TaskResolved, true
	case StatusRejected:
		return TaskRejected, true
	}
	return "", false
}

func NewTaskStatus(s string) (TaskStatus, error) {
	ts := TaskStatus(s)
	if !ts.IsValid() {
		return "", fmt.Errorf("invalid task status: %s", s)
	}
	return ts, nil
}

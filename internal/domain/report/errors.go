package report

import (
	"errors"
	"fmt"

	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

var (
	// ErrReportNotFound is returned when a report does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrTaskNotFound is returned when a report has no task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when the target status is not a successor.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMissingDepartment is returned when a transition needs a department.
	ErrMissingDepartment = errors.New("report has no department assigned")

	// ErrMissingTask is returned when a transition needs a task.
	ErrMissingTask = errors.New("report has no task")
)

// Rejection reasons carried by TransitionError.
const (
	ReasonInvalidTransition = "invalid_transition"
	ReasonMissingDepartment = "missing_department"
	ReasonMissingTask       = "missing_task"
)

// TransitionError names the offending transition and why it was refused.
type TransitionError struct {
	From   vo.ReportStatus
	To     vo.ReportStatus
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

package report

import (
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

// StatusTransitionValidator checks that a lifecycle move is legal and that
// the report satisfies the prerequisites of the target status.
type StatusTransitionValidator struct{}

func NewStatusTransitionValidator() *StatusTransitionValidator {
	return &StatusTransitionValidator{}
}

func (v *StatusTransitionValidator) CanTransition(from, to vo.ReportStatus) bool {
	return from.CanTransitionTo(to)
}

// Validate returns a *TransitionError when r cannot move to target.
// hasTask tells whether an open or closed Task exists for r.
func (v *StatusTransitionValidator) Validate(r *Report, target vo.ReportStatus, hasTask bool) error {
	from := r.Status()
	if !v.CanTransition(from, target) {
		return &TransitionError{From: from, To: target, Reason: ReasonInvalidTransition, Err: ErrInvalidTransition}
	}
	if from == target {
		return nil
	}
	if target.RequiresDepartment() && !r.HasDepartment() {
		return &TransitionError{From: from, To: target, Reason: ReasonMissingDepartment, Err: ErrMissingDepartment}
	}
	if target.RequiresTask() && !hasTask {
		return &TransitionError{From: from, To: target, Reason: ReasonMissingTask, Err: ErrMissingTask}
	}
	return nil
}

package valueobjects

import "fmt"

type ReportStatus string

const (
	StatusReceived              ReportStatus = "received"
	StatusPendingClassification ReportStatus = "pending_classification"
	StatusClassified            ReportStatus = "classified"
	StatusAssignedToDepartment  ReportStatus = "assigned_to_department"
	StatusAssignedToOfficer     ReportStatus = "assigned_to_officer"
	StatusAcknowledged          ReportStatus = "acknowledged"
	StatusInProgress            ReportStatus = "in_progress"
	StatusPendingVerification   ReportStatus = "pending_verification"
	StatusResolved              ReportStatus = "resolved"
	StatusClosed                ReportStatus = "closed"
	StatusRejected              ReportStatus = "rejected"
	StatusDuplicate             ReportStatus = "duplicate"
	StatusOnHold                ReportStatus = "on_hold"
)

// AllReportStatuses lists every status in lifecycle order.
var AllReportStatuses = []ReportStatus{
	StatusReceived,
	StatusPendingClassification,
	StatusClassified,
	StatusAssignedToDepartment,
	StatusAssignedToOfficer,
	StatusAcknowledged,
	StatusInProgress,
	StatusPendingVerification,
	StatusResolved,
	StatusClosed,
	StatusRejected,
	StatusDuplicate,
	StatusOnHold,
}

var reportStatusTransitions = map[ReportStatus][]ReportStatus{
	StatusReceived: {
		StatusPendingClassification,
		StatusClassified,
		StatusAssignedToDepartment,
		StatusAssignedToOfficer,
		StatusDuplicate,
		StatusRejected,
		StatusOnHold,
	},
	StatusPendingClassification: {
		StatusClassified,
		StatusAssignedToDepartment,
		StatusAssignedToOfficer,
		StatusDuplicate,
		StatusRejected,
		StatusOnHold,
	},
	StatusClassified: {
		StatusAssignedToDepartment,
		StatusAssignedToOfficer,
		StatusDuplicate,
		StatusRejected,
		StatusOnHold,
	},
	StatusAssignedToDepartment: {
		StatusAssignedToOfficer,
		StatusRejected,
		StatusOnHold,
	},
	StatusAssignedToOfficer: {
		StatusAcknowledged,
		StatusInProgress,
		StatusAssignedToDepartment,
		StatusRejected,
		StatusOnHold,
	},
	StatusAcknowledged: {
		StatusInProgress,
		StatusRejected,
		StatusOnHold,
	},
	StatusInProgress: {
		StatusPendingVerification,
		StatusResolved,
		StatusRejected,
		StatusOnHold,
	},
	StatusPendingVerification: {
		StatusResolved,
		StatusInProgress,
		StatusRejected,
		StatusOnHold,
	},
	StatusResolved: {
		StatusClosed,
	},
	StatusOnHold: {
		StatusAssignedToDepartment,
		StatusAssignedToOfficer,
		StatusInProgress,
	},
	StatusClosed:    {},
	StatusRejected:  {},
	StatusDuplicate: {},
}

func (s ReportStatus) String() string {
	return string(s)
}

func (s ReportStatus) IsValid() bool {
	_, ok := reportStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is in the fixed successor set of s.
// A self transition is always legal.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range reportStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Successors returns a copy of the successor set of s.
func (s ReportStatus) Successors() []ReportStatus {
	allowed := reportStatusTransitions[s]
	out := make([]ReportStatus, len(allowed))
	copy(out, allowed)
	return out
}

func (s ReportStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusRejected || s == StatusDuplicate
}

// IsActive reports whether the report is still being worked.
func (s ReportStatus) IsActive() bool {
	return s.IsValid() && !s.IsTerminal() && s != StatusResolved && s != StatusOnHold
}

// IsPreAssignment reports whether no department routing has happened yet.
func (s ReportStatus) IsPreAssignment() bool {
	return s == StatusReceived || s == StatusPendingClassification || s == StatusClassified
}

// RequiresTask reports whether entering s needs an existing Task.
func (s ReportStatus) RequiresTask() bool {
	switch s {
	case StatusAssignedToOfficer, StatusAcknowledged, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// RequiresDepartment reports whether entering s needs a department.
func (s ReportStatus) RequiresDepartment() bool {
	return s == StatusAssignedToDepartment
}

func NewReportStatus(s string) (ReportStatus, error) {
	rs := ReportStatus(s)
	if !rs.IsValid() {
		return "", fmt.Errorf("invalid report status: %s", s)
	}
	return rs, nil
}

package valueobjects

import "fmt"

type EscalationStatus string

const (
	StatusPending       EscalationStatus = "pending"
	StatusAssigned      EscalationStatus = "assigned"
	StatusInvestigating EscalationStatus = "investigating"
	StatusResolved      EscalationStatus = "resolved"
)

var escalationTransitions = map[EscalationStatus][]EscalationStatus{
	StatusPending:       {StatusAssigned, StatusInvestigating, StatusResolved},
	StatusAssigned:      {StatusInvestigating, StatusResolved},
	StatusInvestigating: {StatusResolved},
	StatusResolved:      {},
}

// OpenStatuses are the statuses that block a second escalation of the same type.
var OpenStatuses = []EscalationStatus{StatusPending, StatusAssigned, StatusInvestigating}

func (s EscalationStatus) String() string {
	return string(s)
}

func (s EscalationStatus) IsValid() bool {
	_, ok := escalationTransitions[s]
	return ok
}

func (s EscalationStatus) IsOpen() bool {
	return s.IsValid() && s != StatusResolved
}

func (s EscalationStatus) CanTransitionTo(next EscalationStatus) bool {
	for _, allowed := range escalationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func NewEscalationStatus(s string) (EscalationStatus, error) {
	es := EscalationStatus(s)
	if !es.IsValid() {
		return "", fmt.Errorf("invalid escalation status: %s", s)
	}
	return es, nil
}

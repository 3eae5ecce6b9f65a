package valueobjects

import "fmt"

type EscalationType string

const (
	TypeSLAViolation        EscalationType = "sla_violation"
	TypeStaleUnacknowledged EscalationType = "stale_unacknowledged"
	TypeStaleNotStarted     EscalationType = "stale_not_started"
	TypeStaleInProgress     EscalationType = "stale_in_progress"
	TypeStaleOnHold         EscalationType = "stale_on_hold"
	TypeManual              EscalationType = "manual"
)

var validTypes = map[EscalationType]bool{
	TypeSLAViolation:        true,
	TypeStaleUnacknowledged: true,
	TypeStaleNotStarted:     true,
	TypeStaleInProgress:     true,
	TypeStaleOnHold:         true,
	TypeManual:              true,
}

func (t EscalationType) String() string {
	return string(t)
}

func (t EscalationType) IsValid() bool {
	return validTypes[t]
}

func NewEscalationType(s string) (EscalationType, error) {
	et := EscalationType(s)
	if !et.IsValid() {
		return "", fmt.Errorf("invalid escalation type: %s", s)
	}
	return et, nil
}

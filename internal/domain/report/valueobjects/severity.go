package valueobjects

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities is the closed label set offered to the severity classifier.
var AllSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

var severityPriorityBonus = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     3,
	SeverityCritical: 5,
}

var severitySLA = map[Severity]time.Duration{
	SeverityCritical: 24 * time.Hour,
	SeverityHigh:     72 * time.Hour,
	SeverityMedium:   168 * time.Hour,
	SeverityLow:      336 * time.Hour,
}

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) String() string {
	return string(s)
}

func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// PriorityBonus is added to the base task priority.
func (s Severity) PriorityBonus() int {
	return severityPriorityBonus[s]
}

// SLAWindow is the resolution window measured from assignment.
func (s Severity) SLAWindow() time.Duration {
	if d, ok := severitySLA[s]; ok {
		return d
	}
	return severitySLA[SeverityMedium]
}

// Rank orders severities from low (1) to critical (4); unknown values rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

func NewSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return sev, nil
}

package assignment

import (
	"time"

	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

const basePriority = 5

// CalculatePriority scores a new task from severity and report age.
func CalculatePriority(severity vo.Severity, createdAt, now time.Time) int {
	p := basePriority + severity.PriorityBonus() + ageBonus(now.Sub(createdAt))
	return clampPriority(p)
}

func ageBonus(age time.Duration) int {
	switch {
	case age >= 72*time.Hour:
		return 3
	case age >= 24*time.Hour:
		return 2
	case age >= 6*time.Hour:
		return 1
	}
	return 0
}

func clampPriority(p int) int {
	if p < report.MinTaskPriority {
		return report.MinTaskPriority
	}
	if p > report.MaxTaskPriority {
		return report.MaxTaskPriority
	}
	return p
}

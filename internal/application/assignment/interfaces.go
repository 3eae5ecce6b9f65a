package assignment

import (
	"context"
	"time"
)

// TransactionManager runs fn inside one database transaction carried by ctx.
type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notification types sent by the lifecycle engine.
const (
	NotificationTaskAssigned       = "task_assigned"
	NotificationStatusChanged      = "report_status_changed"
	NotificationSLAWarning         = "sla_warning"
	NotificationSLAViolation       = "sla_violation"
	NotificationEscalation         = "escalation_raised"
	NotificationEscalationAssigned = "escalation_assigned"
	NotificationEscalationResolved = "escalation_resolved"
)

// Notification priorities.
const (
	NotificationPriorityLow    = "low"
	NotificationPriorityNormal = "normal"
	NotificationPriorityHigh   = "high"
	NotificationPriorityUrgent = "urgent"
)

type Notification struct {
	UserID              uint
	Type                string
	Title               string
	Message             string
	Priority            string
	RelatedReportID     *uint
	RelatedTaskID       *uint
	RelatedEscalationID *uint
}

// Notifier delivers a notification. Callers log failures and never
// propagate them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Locker serializes work on a key across processes.
type Locker interface {
	// Acquire blocks until the lock is held or ctx ends. The returned func
	// releases the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// RoundRobinCursor hands out an increasing position per department.
type RoundRobinCursor interface {
	Next(ctx context.Context, departmentID uint) (int64, error)
}

// Metrics records assignment outcomes.
type Metrics interface {
	ObserveAssignment(operation string, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAssignment(string, error) {}

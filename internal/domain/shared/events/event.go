package events

import (
	"context"
	"time"
)

// Audit actions emitted by the lifecycle engine.
const (
	ActionReportCreated      = "report.created"
	ActionStatusChanged      = "report.status_changed"
	ActionDepartmentAssigned = "report.department_assigned"
	ActionOfficerAssigned    = "report.officer_assigned"
	ActionOfficerUnassigned  = "report.officer_unassigned"
	ActionReportClassified   = "report.classified"
	ActionReportDuplicate    = "report.marked_duplicate"
	ActionEscalationRaised   = "escalation.raised"
	ActionEscalationAssigned = "escalation.assigned"
	ActionEscalationStarted  = "escalation.investigating"
	ActionEscalationResolved = "escalation.resolved"
	ActionSLAWarning         = "task.sla_warning"
	ActionSLAViolation       = "task.sla_violation"
)

const (
	ResourceReport     = "report"
	ResourceTask       = "task"
	ResourceEscalation = "escalation"
)

// AuditEvent is a structured record of one mutation, handed to an external sink.
type AuditEvent struct {
	EventID      string         `json:"event_id"`
	Action       string         `json:"action"`
	ActorID      uint           `json:"actor_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uint           `json:"resource_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// AuditPublisher delivers audit events. Delivery failures are reported to the
// caller, which logs and moves on.
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent) error
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TableReports       = "reports"
	TableReportTasks   = "report_tasks"
	TableStatusHistory = "report_status_history"
)

type ReportModel struct {
	ID           uint     `gorm:"primaryKey"`
	Number       string   `gorm:"uniqueIndex;size:50;not null"`
	SubmitterID  uint     `gorm:"not null;index"`
	DepartmentID *uint    `gorm:"index"`
	Title        string   `gorm:"size:200;not null"`
	Description  string   `gorm:"type:text;not null"`
	Category     string   `gorm:"size:30;not null;index:idx_reports_duplicate_scan,priority:1"`
	Status       string   `gorm:"size:40;not null;index"`
	Severity     string   `gorm:"size:20;not null"`
	Latitude     *float64 `gorm:"index:idx_reports_duplicate_scan,priority:3"`
	Longitude    *float64

	InferredCategory     *string `gorm:"size:30"`
	CategoryConfidence   *float64
	InferredSeverity     *string `gorm:"size:20"`
	SeverityConfidence   *float64
	OverallConfidence    *float64
	ModelVersion         string         `gorm:"size:100"`
	ClassificationScores datatypes.JSON
	InferredAt           *time.Time

	IsDuplicate         bool  `gorm:"not null;default:false"`
	DuplicateOfID       *uint `gorm:"index"`
	NeedsReview         bool  `gorm:"not null;default:false;index"`
	ManuallyClassified  bool  `gorm:"not null;default:false"`
	ManuallyAssigned    bool  `gorm:"not null;default:false"`
	PipelineProcessedAt *time.Time

	HoldReason         string `gorm:"size:500"`
	HoldUntil          *time.Time
	HeldAt             *time.Time
	HoldPreviousStatus string `gorm:"size:40"`

	Version    int       `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"not null;index:idx_reports_duplicate_scan,priority:2"`
	UpdatedAt  time.Time `gorm:"not null"`
	ResolvedAt *time.Time
	ClosedAt   *time.Time

	// No foreign key constraints; relationships are enforced by the
	// application layer.
}

func (ReportModel) TableName() string {
	return TableReports
}

// TaskModel keeps one row per report; reassignment rewrites it in place.
type TaskModel struct {
	ID              uint   `gorm:"primaryKey"`
	ReportID        uint   `gorm:"uniqueIndex;not null"`
	OfficerID       uint   `gorm:"not null;index:idx_tasks_officer_status,priority:1"`
	AssignedBy      uint   `gorm:"not null"`
	Status          string `gorm:"size:20;not null;index;index:idx_tasks_officer_status,priority:2"`
	Priority        int    `gorm:"not null;default:5"`
	Notes           string `gorm:"type:text"`
	SLADeadline     *time.Time
	SLAWarningSent  bool `gorm:"not null;default:false"`
	SLAViolated     bool `gorm:"not null;default:false"`
	AssignedAt      time.Time `gorm:"not null"`
	AcknowledgedAt  *time.Time
	StartedAt       *time.Time
	ResolvedAt      *time.Time
	StatusChangedAt time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (TaskModel) TableName() string {
	return TableReportTasks
}

type StatusHistoryModel struct {
	ID        uint      `gorm:"primaryKey"`
	ReportID  uint      `gorm:"not null;index"`
	OldStatus *string   `gorm:"size:40"`
	NewStatus string    `gorm:"size:40;not null"`
	ChangedBy uint      `gorm:"not null"`
	Notes     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (StatusHistoryModel) TableName() string {
	return TableStatusHistory
}

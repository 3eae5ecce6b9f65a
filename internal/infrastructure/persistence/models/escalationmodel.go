package models

import (
	"time"

	"gorm.io/datatypes"
)

const TableEscalations = "escalations"

type EscalationModel struct {
	ID           uint           `gorm:"primaryKey"`
	ReportID     *uint          `gorm:"index"`
	TaskID       *uint          `gorm:"index:idx_escalations_task_type,priority:1"`
	Type         string         `gorm:"size:40;not null;index:idx_escalations_task_type,priority:2"`
	Severity     string         `gorm:"size:20;not null"`
	Status       string         `gorm:"size:20;not null;index"`
	Reason       string         `gorm:"type:text"`
	Metadata     datatypes.JSON
	RaisedBy     uint `gorm:"not null"`
	SystemRaised bool `gorm:"not null;default:false"`
	AssigneeID   *uint
	ResolvedBy   *uint
	Resolution   string `gorm:"type:text"`
	ResolvedAt   *time.Time
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (EscalationModel) TableName() string {
	return TableEscalations
}

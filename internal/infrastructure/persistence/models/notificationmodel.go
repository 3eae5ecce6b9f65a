package models

import (
	"time"

	"gorm.io/gorm"
)

const TableNotifications = "notifications"

type NotificationModel struct {
	ID                  uint   `gorm:"primaryKey"`
	UserID              uint   `gorm:"not null;index:idx_user_read"`
	Type                string `gorm:"size:50;not null"`
	Title               string `gorm:"size:255;not null"`
	Content             string `gorm:"type:text;not null"`
	Priority            string `gorm:"size:20;not null;default:'normal'"`
	RelatedReportID     *uint  `gorm:"index"`
	RelatedTaskID       *uint
	RelatedEscalationID *uint
	ReadStatus          string `gorm:"size:20;not null;default:'unread';index:idx_user_read"`
	CreatedAt           time.Time `gorm:"index"`
	UpdatedAt           time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

func (NotificationModel) TableName() string {
	return TableNotifications
}

func (n *NotificationModel) BeforeCreate(tx *gorm.DB) error {
	if n.ReadStatus == "" {
		n.ReadStatus = "unread"
	}
	if n.Priority == "" {
		n.Priority = "normal"
	}
	return nil
}

// Package notify stores in-app notifications for staff users.
package notify

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
	"github.com/civictrack/civictrack/internal/shared/db"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

// Service writes notification rows. Delivery to devices is handled by
// whatever reads the notifications table.
type Service struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewService(db *gorm.DB, logger logger.Interface) *Service {
	return &Service{db: db, logger: logger}
}

func (s *Service) Notify(ctx context.Context, n assignment.Notification) error {
	if n.UserID == 0 {
		return fmt.Errorf("notification recipient is required")
	}

	model := &models.NotificationModel{
		UserID:              n.UserID,
		Type:                n.Type,
		Title:               n.Title,
		Content:             n.Message,
		Priority:            n.Priority,
		RelatedReportID:     n.RelatedReportID,
		RelatedTaskID:       n.RelatedTaskID,
		RelatedEscalationID: n.RelatedEscalationID,
	}
	if err := db.GetTxFromContext(ctx, s.db).Create(model).Error; err != nil {
		s.logger.Errorw("failed to store notification",
			"user_id", n.UserID,
			"type", n.Type,
			"error", err,
		)
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.logger.Debugw("notification stored",
		"notification_id", model.ID,
		"user_id", n.UserID,
		"type", n.Type,
		"priority", model.Priority,
	)
	return nil
}

// Unread returns the user's unread notifications, newest first.
func (s *Service) Unread(ctx context.Context, userID uint, limit int) ([]models.NotificationModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.NotificationModel
	err := db.GetTxFromContext(ctx, s.db).
		Where("user_id = ? AND read_status = ?", userID, "unread").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

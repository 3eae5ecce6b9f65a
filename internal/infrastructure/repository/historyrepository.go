package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/domain/report"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/mappers"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
	"github.com/civictrack/civictrack/internal/shared/db"
)

// HistoryRepository is append-only.
type HistoryRepository struct {
	db     *gorm.DB
	mapper mappers.ReportMapper
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		mapper: mappers.NewReportMapper(),
	}
}

func (r *HistoryRepository) Append(ctx context.Context, h *report.StatusHistory) error {
	model := r.mapper.HistoryToModel(h)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	h.SetID(model.ID)
	return nil
}

func (r *HistoryRepository) ListByReport(ctx context.Context, reportID uint) ([]*report.StatusHistory, error) {
	var rows []models.StatusHistoryModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}

	out := make([]*report.StatusHistory, 0, len(rows))
	for i := range rows {
		h, err := r.mapper.HistoryToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/domain/escalation"
	vo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/mappers"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
	"github.com/civictrack/civictrack/internal/shared/db"
)

type EscalationRepository struct {
	db     *gorm.DB
	mapper mappers.EscalationMapper
}

func NewEscalationRepository(db *gorm.DB) *EscalationRepository {
	return &EscalationRepository{
		db:     db,
		mapper: mappers.NewEscalationMapper(),
	}
}

func (r *EscalationRepository) Create(ctx context.Context, e *escalation.Escalation) error {
	model, err := r.mapper.ToModel(e)
	if err != nil {
		return err
	}
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	return e.SetID(model.ID)
}

func (r *EscalationRepository) Update(ctx context.Context, e *escalation.Escalation) error {
	model, err := r.mapper.ToModel(e)
	if err != nil {
		return err
	}
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.EscalationModel{ID: model.ID}).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update escalation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("escalation %d: %w", model.ID, escalation.ErrEscalationNotFound)
	}
	return nil
}

func (r *EscalationRepository) GetByID(ctx context.Context, id uint) (*escalation.Escalation, error) {
	var model models.EscalationModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("escalation %d: %w", id, escalation.ErrEscalationNotFound)
		}
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	return r.mapper.ToDomain(&model)
}

func (r *EscalationRepository) HasOpen(ctx context.Context, taskID uint, escalType vo.EscalationType) (bool, error) {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.EscalationModel{}).
		Scopes(db.StatusIn(vo.OpenStatuses)).
		Where("task_id = ? AND type = ?", taskID, escalType.String()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check open escalations: %w", err)
	}
	return count > 0, nil
}

func (r *EscalationRepository) ListOpen(ctx context.Context) ([]*escalation.Escalation, error) {
	var rows []models.EscalationModel
	err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.StatusIn(vo.OpenStatuses)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open escalations: %w", err)
	}

	out := make([]*escalation.Escalation, 0, len(rows))
	for i := range rows {
		e, err := r.mapper.ToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/mappers"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
	"github.com/civictrack/civictrack/internal/shared/db"
)

// classificationColumns are the only columns UpdateClassification writes.
var classificationColumns = []string{
	"category",
	"severity",
	"inferred_category",
	"category_confidence",
	"inferred_severity",
	"severity_confidence",
	"overall_confidence",
	"model_version",
	"classification_scores",
	"inferred_at",
	"needs_review",
	"pipeline_processed_at",
	"updated_at",
}

const defaultDuplicateCandidateLimit = 200

type ReportRepository struct {
	db     *gorm.DB
	mapper mappers.ReportMapper
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{
		db:     db,
		mapper: mappers.NewReportMapper(),
	}
}

func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) error {
	model, err := r.mapper.ToModel(rep)
	if err != nil {
		return err
	}
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.Create(model).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return rep.SetID(model.ID)
}

func (r *ReportRepository) Update(ctx context.Context, rep *report.Report) error {
	model, err := r.mapper.ToModel(rep)
	if err != nil {
		return err
	}
	tx := db.GetTxFromContext(ctx, r.db)

	// Select("*") writes zero values too, so cleared holds and flags persist.
	result := tx.Model(&models.ReportModel{ID: model.ID}).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("report %d: %w", model.ID, report.ErrReportNotFound)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id uint) (*report.Report, error) {
	return r.get(db.GetTxFromContext(ctx, r.db), id)
}

func (r *ReportRepository) GetByIDForUpdate(ctx context.Context, id uint) (*report.Report, error) {
	tx := db.GetTxFromContext(ctx, r.db)
	return r.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *ReportRepository) get(tx *gorm.DB, id uint) (*report.Report, error) {
	var model models.ReportModel
	if err := tx.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report %d: %w", id, report.ErrReportNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return r.mapper.ToDomain(&model)
}

func (r *ReportRepository) UpdateClassification(ctx context.Context, rep *report.Report) error {
	model, err := r.mapper.ToModel(rep)
	if err != nil {
		return err
	}
	tx := db.GetTxFromContext(ctx, r.db)

	result := tx.Model(&models.ReportModel{ID: model.ID}).
		Select(classificationColumns).
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update report classification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("report %d: %w", model.ID, report.ErrReportNotFound)
	}
	return nil
}

// FindDuplicateCandidates narrows by category, time window and bounding box.
// Callers apply the exact distance check.
func (r *ReportRepository) FindDuplicateCandidates(ctx context.Context, f report.DuplicateFilter) ([]*report.Report, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultDuplicateCandidateLimit
	}

	query := db.GetTxFromContext(ctx, r.db).
		Model(&models.ReportModel{}).
		Where("category = ?", f.Category.String()).
		Where("created_at >= ?", f.Since).
		Where("is_duplicate = ?", false).
		Where("latitude BETWEEN ? AND ?", f.MinLatitude, f.MaxLatitude).
		Where("longitude BETWEEN ? AND ?", f.MinLongitude, f.MaxLongitude)
	if f.ExcludeID != 0 {
		query = query.Where("id <> ?", f.ExcludeID)
	}
	if f.BeforeID != 0 {
		query = query.Where("id < ?", f.BeforeID)
	}

	var rows []models.ReportModel
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find duplicate candidates: %w", err)
	}

	out := make([]*report.Report, 0, len(rows))
	for i := range rows {
		rep, err := r.mapper.ToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

func (r *ReportRepository) ListUnprocessed(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.ReportModel{}).
		Where("status IN ?", []string{vo.StatusReceived.String(), vo.StatusPendingClassification.String()}).
		Where("pipeline_processed_at IS NULL").
		Where("needs_review = ?", false).
		Where("created_at < ?", createdBefore).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed reports: %w", err)
	}
	return ids, nil
}

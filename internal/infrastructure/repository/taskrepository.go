package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/mappers"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
	"github.com/civictrack/civictrack/internal/shared/db"
)

type TaskRepository struct {
	db     *gorm.DB
	mapper mappers.ReportMapper
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{
		db:     db,
		mapper: mappers.NewReportMapper(),
	}
}

func (r *TaskRepository) Create(ctx context.Context, t *report.Task) error {
	model := r.mapper.TaskToModel(t)
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.Create(model).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return t.SetID(model.ID)
}

func (r *TaskRepository) Update(ctx context.Context, t *report.Task) error {
	model := r.mapper.TaskToModel(t)
	tx := db.GetTxFromContext(ctx, r.db)

	result := tx.Model(&models.TaskModel{ID: model.ID}).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", model.ID, report.ErrTaskNotFound)
	}
	return nil
}

func (r *TaskRepository) UpdateSLAFlags(ctx context.Context, t *report.Task, statuses []vo.TaskStatus) (bool, error) {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.TaskModel{}).
		Scopes(db.StatusIn(statuses)).
		Where("id = ? AND officer_id = ?", t.ID(), t.OfficerID()).
		Updates(map[string]any{
			"sla_deadline":     t.SLADeadline(),
			"sla_warning_sent": t.SLAWarningSent(),
			"sla_violated":     t.SLAViolated(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update task SLA flags: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *TaskRepository) GetByReportID(ctx context.Context, reportID uint) (*report.Task, error) {
	var model models.TaskModel
	result := db.GetTxFromContext(ctx, r.db).
		Where("report_id = ?", reportID).
		Limit(1).
		Find(&model)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.mapper.TaskToDomain(&model)
}

func (r *TaskRepository) ListByStatuses(ctx context.Context, statuses []vo.TaskStatus) ([]*report.Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	var rows []models.TaskModel
	err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.StatusIn(statuses)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := make([]*report.Task, 0, len(rows))
	for i := range rows {
		t, err := r.mapper.TaskToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TaskRepository) CountOpenByOfficer(ctx context.Context, officerID uint) (int64, error) {
	return r.countByOfficer(ctx, officerID, vo.OpenTaskStatuses)
}

func (r *TaskRepository) CountResolvedByOfficer(ctx context.Context, officerID uint) (int64, error) {
	return r.countByOfficer(ctx, officerID, []vo.TaskStatus{vo.TaskResolved})
}

func (r *TaskRepository) countByOfficer(ctx context.Context, officerID uint, statuses []vo.TaskStatus) (int64, error) {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.TaskModel{}).
		Scopes(db.StatusIn(statuses)).
		Where("officer_id = ?", officerID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count officer tasks: %w", err)
	}
	return count, nil
}

type resolutionRow struct {
	CreatedAt  time.Time
	ResolvedAt *time.Time
	ClosedAt   *time.Time
}

func (r *TaskRepository) ResolutionDurations(ctx context.Context, officerID uint, since time.Time) ([]time.Duration, error) {
	var rows []resolutionRow
	err := db.GetTxFromContext(ctx, r.db).
		Table(models.TableReportTasks+" AS t").
		Select("rp.created_at, rp.resolved_at, rp.closed_at").
		Joins("JOIN "+models.TableReports+" AS rp ON rp.id = t.report_id").
		Where("t.officer_id = ?", officerID).
		Where("rp.status IN ?", []string{vo.StatusResolved.String(), vo.StatusClosed.String()}).
		Where("(rp.closed_at >= ? OR rp.resolved_at >= ?)", since, since).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load resolution durations: %w", err)
	}

	out := make([]time.Duration, 0, len(rows))
	for _, row := range rows {
		end := row.ClosedAt
		if end == nil {
			end = row.ResolvedAt
		}
		if end == nil || end.Before(since) {
			continue
		}
		out = append(out, end.Sub(row.CreatedAt))
	}
	return out, nil
}

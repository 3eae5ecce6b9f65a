package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/mappers"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
	"github.com/civictrack/civictrack/internal/shared/db"
)

// OfficerRepository reads department and staff reference data.
type OfficerRepository struct {
	db *gorm.DB
}

func NewOfficerRepository(db *gorm.DB) *OfficerRepository {
	return &OfficerRepository{db: db}
}

func (r *OfficerRepository) GetOfficer(ctx context.Context, id uint) (*officer.Officer, error) {
	var model models.OfficerModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("officer %d: %w", id, officer.ErrOfficerNotFound)
		}
		return nil, fmt.Errorf("failed to get officer: %w", err)
	}
	return mappers.OfficerToDomain(&model)
}

func (r *OfficerRepository) GetDepartment(ctx context.Context, id uint) (*officer.Department, error) {
	var model models.DepartmentModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("department %d: %w", id, officer.ErrDepartmentNotFound)
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return mappers.DepartmentToDomain(&model)
}

func (r *OfficerRepository) ListActiveOfficers(ctx context.Context, departmentID uint) ([]*officer.Officer, error) {
	var rows []models.OfficerModel
	err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.Active()).
		Where("department_id = ? AND role = ?", departmentID, string(officer.RoleOfficer)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list officers: %w", err)
	}
	return officersToDomain(rows)
}

func (r *OfficerRepository) ListActiveDepartments(ctx context.Context) ([]*officer.Department, error) {
	var rows []models.DepartmentModel
	err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.Active()).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	out := make([]*officer.Department, 0, len(rows))
	for i := range rows {
		d, err := mappers.DepartmentToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *OfficerRepository) ListByRole(ctx context.Context, role officer.Role) ([]*officer.Officer, error) {
	var rows []models.OfficerModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("role = ?", string(role)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list officers by role: %w", err)
	}
	return officersToDomain(rows)
}

func officersToDomain(rows []models.OfficerModel) ([]*officer.Officer, error) {
	out := make([]*officer.Officer, 0, len(rows))
	for i := range rows {
		o, err := mappers.OfficerToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

package mappers

import (
	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
)

func OfficerToDomain(model *models.OfficerModel) (*officer.Officer, error) {
	return officer.ReconstructOfficer(model.ID, model.Name, model.Email, officer.Role(model.Role),
		model.DepartmentID, model.Active, model.CreatedAt)
}

func DepartmentToDomain(model *models.DepartmentModel) (*officer.Department, error) {
	return officer.ReconstructDepartment(model.ID, model.Name, model.Code, model.Active, model.CreatedAt)
}

package seeds

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
	"github.com/civictrack/civictrack/internal/shared/biztime"
)

// SeedAutomationActor makes sure the reserved automation user exists so that
// history rows written by the pipeline and the monitors reference a real actor.
func SeedAutomationActor(db *gorm.DB) error {
	now := biztime.NowUTC()
	actor := models.OfficerModel{
		ID:        officer.AutomationActorID,
		Name:      "automation",
		Email:     "automation@civictrack.local",
		Role:      string(officer.RoleSystem),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&actor).Error
}

// SeedDepartments inserts departments whose names the classification
// routing keywords resolve to. Existing rows are left alone.
func SeedDepartments(db *gorm.DB) error {
	now := biztime.NowUTC()
	names := []struct {
		name string
		code string
	}{
		{"Roads & Public Works", "RPW"},
		{"Electrical Department", "ELEC"},
		{"Solid Waste Management", "SWM"},
		{"Water Supply", "WAT"},
		{"Storm Water Drainage", "SWD"},
		{"Traffic Police", "TRF"},
		{"Parks & Horticulture", "PRK"},
	}
	for _, n := range names {
		dept := models.DepartmentModel{Name: n.name, Code: n.code, Active: true, CreatedAt: now, UpdatedAt: now}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&dept).Error; err != nil {
			return err
		}
	}
	return nil
}

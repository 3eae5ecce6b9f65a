package migrations

import (
	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
)

func MigrateReportTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ReportModel{},
		&models.TaskModel{},
		&models.StatusHistoryModel{},
	)
}

func MigrateEscalationTables(db *gorm.DB) error {
	return db.AutoMigrate(&models.EscalationModel{})
}

func MigrateOfficerTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DepartmentModel{},
		&models.OfficerModel{},
	)
}

func CreateNotificationsTable(db *gorm.DB) error {
	return db.AutoMigrate(&models.NotificationModel{})
}

// MigrateAll creates or updates every table the engine owns.
func MigrateAll(db *gorm.DB) error {
	for _, migrate := range []func(*gorm.DB) error{
		MigrateOfficerTables,
		MigrateReportTables,
		MigrateEscalationTables,
		CreateNotificationsTable,
	} {
		if err := migrate(db); err != nil {
			return err
		}
	}
	return nil
}

// Tables lists the tables MigrateAll manages, in creation order.
func Tables() []string {
	return []string{
		models.TableDepartments,
		models.TableOfficers,
		models.TableReports,
		models.TableReportTasks,
		models.TableStatusHistory,
		models.TableEscalations,
		models.TableNotifications,
	}
}

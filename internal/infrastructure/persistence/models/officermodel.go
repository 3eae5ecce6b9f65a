package models

import "time"

const (
	TableDepartments = "departments"
	TableOfficers    = "officers"
)

type DepartmentModel struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:100;not null"`
	Code      string    `gorm:"size:20"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DepartmentModel) TableName() string {
	return TableDepartments
}

// OfficerModel is any staff user the engine assigns work to or notifies,
// including the automation actor.
type OfficerModel struct {
	ID           uint      `gorm:"primaryKey"`
	Name         string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:255;uniqueIndex"`
	Role         string    `gorm:"size:20;not null;index"`
	DepartmentID *uint     `gorm:"index"`
	Active       bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (OfficerModel) TableName() string {
	return TableOfficers
}

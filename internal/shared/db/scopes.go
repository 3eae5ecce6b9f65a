// Package db provides database utilities including transaction management and query scopes.
package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Active keeps rows whose active flag is set.
//
// Example usage:
//
//	db.Scopes(db.Active()).Where("department_id = ?", id).Find(&officers)
func Active() func(db *gorm.DB) *gorm.DB {
	return ActiveWithAlias("")
}

// ActiveWithAlias is Active for queries that join tables.
func ActiveWithAlias(alias string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if alias == "" {
			return db.Where("active = ?", true)
		}
		return db.Where(alias+".active = ?", true)
	}
}

// StatusIn filters on the status column. Any string-backed status type works.
// An empty set matches nothing.
func StatusIn[S fmt.Stringer](statuses []S) func(db *gorm.DB) *gorm.DB {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = s.String()
	}
	return func(db *gorm.DB) *gorm.DB {
		if len(values) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("status IN ?", values)
	}
}

package officer

import (
	"fmt"
	"time"
)

// AutomationActorID is the reserved user that authors every automated write.
// The row is seeded by the migrate command and never deactivated.
const AutomationActorID uint = 1

type Role string

const (
	RoleOfficer    Role = "officer"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleOfficer, RoleSupervisor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Officer is the subset of a user record the assignment engine reads.
type Officer struct {
	id           uint
	name         string
	email        string
	role         Role
	departmentID *uint
	active       bool
	createdAt    time.Time
}

func ReconstructOfficer(id uint, name, email string, role Role, departmentID *uint, active bool, createdAt time.Time) (*Officer, error) {
	if id == 0 {
		return nil, fmt.Errorf("officer ID cannot be zero")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role: %s", role)
	}
	return &Officer{
		id:           id,
		name:         name,
		email:        email,
		role:         role,
		departmentID: departmentID,
		active:       active,
		createdAt:    createdAt,
	}, nil
}

func (o *Officer) ID() uint {
	return o.id
}

func (o *Officer) Name() string {
	return o.name
}

func (o *Officer) Email() string {
	return o.email
}

func (o *Officer) Role() Role {
	return o.role
}

func (o *Officer) DepartmentID() *uint {
	return o.departmentID
}

func (o *Officer) IsActive() bool {
	return o.active
}

func (o *Officer) CreatedAt() time.Time {
	return o.createdAt
}

// BelongsTo reports whether the officer is a member of departmentID.
func (o *Officer) BelongsTo(departmentID uint) bool {
	return o.departmentID != nil && *o.departmentID == departmentID
}

func (o *Officer) IsAutomation() bool {
	return o.id == AutomationActorID
}

package officer

import (
	"context"
	"errors"
)

var (
	ErrOfficerNotFound    = errors.New("officer not found")
	ErrDepartmentNotFound = errors.New("department not found")
)

type Repository interface {
	GetOfficer(ctx context.Context, id uint) (*Officer, error)
	GetDepartment(ctx context.Context, id uint) (*Department, error)
	// ListActiveOfficers returns active officers of a department ordered by id.
	ListActiveOfficers(ctx context.Context, departmentID uint) ([]*Officer, error)
	ListActiveDepartments(ctx context.Context) ([]*Department, error)
	ListByRole(ctx context.Context, role Role) ([]*Officer, error)
}

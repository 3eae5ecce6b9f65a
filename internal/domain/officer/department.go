package officer

import (
	"fmt"
	"time"
)

type Department struct {
	id        uint
	name      string
	code      string
	active    bool
	createdAt time.Time
}

func ReconstructDepartment(id uint, name, code string, active bool, createdAt time.Time) (*Department, error) {
	if id == 0 {
		return nil, fmt.Errorf("department ID cannot be zero")
	}
	if name == "" {
		return nil, fmt.Errorf("department name is required")
	}
	return &Department{
		id:        id,
		name:      name,
		code:      code,
		active:    active,
		createdAt: createdAt,
	}, nil
}

func (d *Department) ID() uint {
	return d.id
}

func (d *Department) Name() string {
	return d.name
}

func (d *Department) Code() string {
	return d.code
}

func (d *Department) IsActive() bool {
	return d.active
}

func (d *Department) CreatedAt() time.Time {
	return d.createdAt
}

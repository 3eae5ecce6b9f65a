package escalation

import (
	"context"
	"errors"

	vo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
)

var ErrEscalationNotFound = errors.New("escalation not found")

type Repository interface {
	Create(ctx context.Context, e *Escalation) error
	Update(ctx context.Context, e *Escalation) error
	GetByID(ctx context.Context, id uint) (*Escalation, error)
	// HasOpen reports whether an unresolved escalation of escalType exists for taskID.
	HasOpen(ctx context.Context, taskID uint, escalType vo.EscalationType) (bool, error)
	ListOpen(ctx context.Context) ([]*Escalation, error)
}

package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/civictrack/civictrack/internal/domain/escalation"
	vo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
	reportvo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
)

type EscalationMapper interface {
	ToModel(e *escalation.Escalation) (*models.EscalationModel, error)
	ToDomain(model *models.EscalationModel) (*escalation.Escalation, error)
}

type EscalationMapperImpl struct{}

func NewEscalationMapper() EscalationMapper {
	return &EscalationMapperImpl{}
}

func (m *EscalationMapperImpl) ToModel(e *escalation.Escalation) (*models.EscalationModel, error) {
	model := &models.EscalationModel{
		ID:           e.ID(),
		ReportID:     e.ReportID(),
		TaskID:       e.TaskID(),
		Type:         e.Type().String(),
		Severity:     e.Severity().String(),
		Status:       e.Status().String(),
		Reason:       e.Reason(),
		RaisedBy:     e.RaisedBy(),
		SystemRaised: e.SystemRaised(),
		AssigneeID:   e.AssigneeID(),
		ResolvedBy:   e.ResolvedBy(),
		Resolution:   e.Resolution(),
		ResolvedAt:   e.ResolvedAt(),
		CreatedAt:    e.CreatedAt(),
		UpdatedAt:    e.UpdatedAt(),
	}
	if len(e.Metadata()) > 0 {
		raw, err := json.Marshal(e.Metadata())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal escalation metadata: %w", err)
		}
		model.Metadata = datatypes.JSON(raw)
	}
	return model, nil
}

func (m *EscalationMapperImpl) ToDomain(model *models.EscalationModel) (*escalation.Escalation, error) {
	if model == nil {
		return nil, nil
	}
	var metadata map[string]any
	if len(model.Metadata) > 0 {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation metadata: %w", err)
		}
	}
	e, err := escalation.ReconstructEscalation(escalation.EscalationState{
		ID:           model.ID,
		ReportID:     model.ReportID,
		TaskID:       model.TaskID,
		Type:         vo.EscalationType(model.Type),
		Severity:     reportvo.Severity(model.Severity),
		Status:       vo.EscalationStatus(model.Status),
		Reason:       model.Reason,
		Metadata:     metadata,
		RaisedBy:     model.RaisedBy,
		SystemRaised: model.SystemRaised,
		AssigneeID:   model.AssigneeID,
		ResolvedBy:   model.ResolvedBy,
		Resolution:   model.Resolution,
		ResolvedAt:   model.ResolvedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct escalation %d: %w", model.ID, err)
	}
	return e, nil
}

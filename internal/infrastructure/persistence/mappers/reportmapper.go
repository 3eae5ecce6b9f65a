package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/models"
)

// ReportMapper converts between the report aggregate, its task and history
// rows and their persistence models.
type ReportMapper interface {
	ToModel(r *report.Report) (*models.ReportModel, error)
	ToDomain(model *models.ReportModel) (*report.Report, error)
	TaskToModel(t *report.Task) *models.TaskModel
	TaskToDomain(model *models.TaskModel) (*report.Task, error)
	HistoryToModel(h *report.StatusHistory) *models.StatusHistoryModel
	HistoryToDomain(model *models.StatusHistoryModel) (*report.StatusHistory, error)
}

type ReportMapperImpl struct{}

func NewReportMapper() ReportMapper {
	return &ReportMapperImpl{}
}

func (m *ReportMapperImpl) ToModel(r *report.Report) (*models.ReportModel, error) {
	model := &models.ReportModel{
		ID:                  r.ID(),
		Number:              r.Number(),
		SubmitterID:         r.SubmitterID(),
		DepartmentID:        r.DepartmentID(),
		Title:               r.Title(),
		Description:         r.Description(),
		Category:            r.Category().String(),
		Status:              r.Status().String(),
		Severity:            r.Severity().String(),
		IsDuplicate:         r.IsDuplicate(),
		DuplicateOfID:       r.DuplicateOfID(),
		NeedsReview:         r.NeedsReview(),
		ManuallyClassified:  r.ManuallyClassified(),
		ManuallyAssigned:    r.ManuallyAssigned(),
		PipelineProcessedAt: r.PipelineProcessedAt(),
		Version:             r.Version(),
		CreatedAt:           r.CreatedAt(),
		UpdatedAt:           r.UpdatedAt(),
		ResolvedAt:          r.ResolvedAt(),
		ClosedAt:            r.ClosedAt(),
	}

	if loc := r.Location(); loc != nil {
		lat, lon := loc.Latitude, loc.Longitude
		model.Latitude = &lat
		model.Longitude = &lon
	}

	if c := r.Classification(); c != nil {
		category := c.Category.String()
		severity := c.Severity.String()
		catConf, sevConf, overall := c.CategoryConfidence, c.SeverityConfidence, c.OverallConfidence
		inferredAt := c.InferredAt
		model.InferredCategory = &category
		model.CategoryConfidence = &catConf
		model.InferredSeverity = &severity
		model.SeverityConfidence = &sevConf
		model.OverallConfidence = &overall
		model.ModelVersion = c.ModelVersion
		model.InferredAt = &inferredAt
		if len(c.Scores) > 0 {
			scores, err := json.Marshal(c.Scores)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal classification scores: %w", err)
			}
			model.ClassificationScores = datatypes.JSON(scores)
		}
	}

	if h := r.Hold(); h != nil {
		heldAt := h.HeldAt
		model.HoldReason = h.Reason
		model.HoldUntil = h.Until
		model.HeldAt = &heldAt
		model.HoldPreviousStatus = h.PreviousStatus.String()
	}

	return model, nil
}

func (m *ReportMapperImpl) ToDomain(model *models.ReportModel) (*report.Report, error) {
	if model == nil {
		return nil, nil
	}

	state := report.ReportState{
		ID:                  model.ID,
		Number:              model.Number,
		SubmitterID:         model.SubmitterID,
		DepartmentID:        model.DepartmentID,
		Title:               model.Title,
		Description:         model.Description,
		Category:            vo.Category(model.Category),
		Status:              vo.ReportStatus(model.Status),
		Severity:            vo.Severity(model.Severity),
		IsDuplicate:         model.IsDuplicate,
		DuplicateOfID:       model.DuplicateOfID,
		NeedsReview:         model.NeedsReview,
		ManuallyClassified:  model.ManuallyClassified,
		ManuallyAssigned:    model.ManuallyAssigned,
		PipelineProcessedAt: model.PipelineProcessedAt,
		Version:             model.Version,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
		ResolvedAt:          model.ResolvedAt,
		ClosedAt:            model.ClosedAt,
	}

	if model.Latitude != nil && model.Longitude != nil {
		state.Location = &report.Location{Latitude: *model.Latitude, Longitude: *model.Longitude}
	}

	if model.InferredAt != nil {
		c := &report.Classification{
			ModelVersion: model.ModelVersion,
			InferredAt:   *model.InferredAt,
		}
		if model.InferredCategory != nil {
			c.Category = vo.Category(*model.InferredCategory)
		}
		if model.InferredSeverity != nil {
			c.Severity = vo.Severity(*model.InferredSeverity)
		}
		if model.CategoryConfidence != nil {
			c.CategoryConfidence = *model.CategoryConfidence
		}
		if model.SeverityConfidence != nil {
			c.SeverityConfidence = *model.SeverityConfidence
		}
		if model.OverallConfidence != nil {
			c.OverallConfidence = *model.OverallConfidence
		}
		if len(model.ClassificationScores) > 0 {
			if err := json.Unmarshal(model.ClassificationScores, &c.Scores); err != nil {
				return nil, fmt.Errorf("failed to unmarshal classification scores: %w", err)
			}
		}
		state.Classification = c
	}

	if model.HeldAt != nil {
		state.Hold = &report.Hold{
			Reason:         model.HoldReason,
			Until:          model.HoldUntil,
			HeldAt:         *model.HeldAt,
			PreviousStatus: vo.ReportStatus(model.HoldPreviousStatus),
		}
	}

	r, err := report.ReconstructReport(state)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct report %d: %w", model.ID, err)
	}
	return r, nil
}

func (m *ReportMapperImpl) TaskToModel(t *report.Task) *models.TaskModel {
	return &models.TaskModel{
		ID:              t.ID(),
		ReportID:        t.ReportID(),
		OfficerID:       t.OfficerID(),
		AssignedBy:      t.AssignedBy(),
		Status:          t.Status().String(),
		Priority:        t.Priority(),
		Notes:           t.Notes(),
		SLADeadline:     t.SLADeadline(),
		SLAWarningSent:  t.SLAWarningSent(),
		SLAViolated:     t.SLAViolated(),
		AssignedAt:      t.AssignedAt(),
		AcknowledgedAt:  t.AcknowledgedAt(),
		StartedAt:       t.StartedAt(),
		ResolvedAt:      t.ResolvedAt(),
		StatusChangedAt: t.StatusChangedAt(),
		CreatedAt:       t.CreatedAt(),
		UpdatedAt:       t.UpdatedAt(),
	}
}

func (m *ReportMapperImpl) TaskToDomain(model *models.TaskModel) (*report.Task, error) {
	if model == nil {
		return nil, nil
	}
	t, err := report.ReconstructTask(report.TaskState{
		ID:              model.ID,
		ReportID:        model.ReportID,
		OfficerID:       model.OfficerID,
		AssignedBy:      model.AssignedBy,
		Status:          vo.TaskStatus(model.Status),
		Priority:        model.Priority,
		Notes:           model.Notes,
		SLADeadline:     model.SLADeadline,
		SLAWarningSent:  model.SLAWarningSent,
		SLAViolated:     model.SLAViolated,
		AssignedAt:      model.AssignedAt,
		AcknowledgedAt:  model.AcknowledgedAt,
		StartedAt:       model.StartedAt,
		ResolvedAt:      model.ResolvedAt,
		StatusChangedAt: model.StatusChangedAt,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct task %d: %w", model.ID, err)
	}
	return t, nil
}

func (m *ReportMapperImpl) HistoryToModel(h *report.StatusHistory) *models.StatusHistoryModel {
	model := &models.StatusHistoryModel{
		ID:        h.ID(),
		ReportID:  h.ReportID(),
		NewStatus: h.NewStatus().String(),
		ChangedBy: h.ActorID(),
		Notes:     h.Note(),
		CreatedAt: h.CreatedAt(),
	}
	if old := h.OldStatus(); old != nil {
		s := old.String()
		model.OldStatus = &s
	}
	return model
}

func (m *ReportMapperImpl) HistoryToDomain(model *models.StatusHistoryModel) (*report.StatusHistory, error) {
	if model == nil {
		return nil, nil
	}
	var old *vo.ReportStatus
	if model.OldStatus != nil {
		s := vo.ReportStatus(*model.OldStatus)
		old = &s
	}
	return report.ReconstructStatusHistory(model.ID, model.ReportID, old, vo.ReportStatus(model.NewStatus),
		model.ChangedBy, model.Notes, model.CreatedAt), nil
}

package assignment

import (
	"context"
	"fmt"

	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	apperrors "github.com/civictrack/civictrack/internal/shared/errors"
)

type BulkError struct {
	ReportID uint   `json:"report_id"`
	Error    string `json:"error"`
}

// BulkResult reports per-item outcomes; one failing item never blocks the rest.
type BulkResult struct {
	Total         int         `json:"total"`
	Successful    int         `json:"successful"`
	Failed        int         `json:"failed"`
	SuccessfulIDs []uint      `json:"successful_ids"`
	FailedIDs     []uint      `json:"failed_ids"`
	Errors        []BulkError `json:"errors"`
}

func newBulkResult(total int) *BulkResult {
	return &BulkResult{
		Total:         total,
		SuccessfulIDs: make([]uint, 0, total),
		FailedIDs:     []uint{},
		Errors:        []BulkError{},
	}
}

func (b *BulkResult) succeed(id uint) {
	b.Successful++
	b.SuccessfulIDs = append(b.SuccessfulIDs, id)
}

func (b *BulkResult) fail(id uint, err error) {
	b.Failed++
	b.FailedIDs = append(b.FailedIDs, id)
	b.Errors = append(b.Errors, BulkError{ReportID: id, Error: err.Error()})
}

type BulkAssignDepartmentCommand struct {
	ReportIDs    []uint
	DepartmentID uint
	ActorID      uint
	Notes        string
}

type BulkAssignOfficerCommand struct {
	ReportIDs  []uint
	OfficerID  uint
	AssignerID uint
	Notes      string
}

type BulkUpdateStatusCommand struct {
	ReportIDs []uint
	Status    vo.ReportStatus
	ActorID   uint
	Notes     string
}

type BulkAutoAssignCommand struct {
	ReportIDs  []uint
	AssignerID uint
	Strategy   Strategy
}

func (s *Service) BulkAssignDepartment(ctx context.Context, cmd BulkAssignDepartmentCommand) *BulkResult {
	s.logger.Infow("executing bulk assign department",
		"count", len(cmd.ReportIDs),
		"department_id", cmd.DepartmentID)

	res := newBulkResult(len(cmd.ReportIDs))
	for _, id := range cmd.ReportIDs {
		_, err := s.AssignDepartment(ctx, AssignDepartmentCommand{
			ReportID:     id,
			DepartmentID: cmd.DepartmentID,
			ActorID:      cmd.ActorID,
			Notes:        cmd.Notes,
			AutoStatus:   true,
		})
		if err != nil {
			res.fail(id, err)
			continue
		}
		res.succeed(id)
	}

	s.logBulk("bulk assign department", res)
	return res
}

func (s *Service) BulkAssignOfficer(ctx context.Context, cmd BulkAssignOfficerCommand) *BulkResult {
	s.logger.Infow("executing bulk assign officer",
		"count", len(cmd.ReportIDs),
		"officer_id", cmd.OfficerID)

	res := newBulkResult(len(cmd.ReportIDs))
	for _, id := range cmd.ReportIDs {
		_, err := s.AssignOfficer(ctx, AssignOfficerCommand{
			ReportID:         id,
			OfficerID:        cmd.OfficerID,
			AssignerID:       cmd.AssignerID,
			Notes:            cmd.Notes,
			AutoStatus:       true,
			ValidateCapacity: true,
		})
		if err != nil {
			res.fail(id, err)
			continue
		}
		res.succeed(id)
	}

	s.logBulk("bulk assign officer", res)
	return res
}

// BulkUpdateStatus checks every report against the target first, then commits
// each report that passed in its own transaction. Rows are re-checked under
// their row lock at commit time.
func (s *Service) BulkUpdateStatus(ctx context.Context, cmd BulkUpdateStatusCommand) *BulkResult {
	s.logger.Infow("executing bulk update status",
		"count", len(cmd.ReportIDs),
		"status", cmd.Status)

	res := newBulkResult(len(cmd.ReportIDs))
	if !cmd.Status.IsValid() {
		err := apperrors.NewValidationError(fmt.Sprintf("invalid report status: %s", cmd.Status))
		for _, id := range cmd.ReportIDs {
			res.fail(id, err)
		}
		return res
	}

	valid := make([]uint, 0, len(cmd.ReportIDs))
	for _, id := range cmd.ReportIDs {
		if err := s.precheckStatus(ctx, id, cmd.Status); err != nil {
			res.fail(id, err)
			continue
		}
		valid = append(valid, id)
	}

	for _, id := range valid {
		_, err := s.UpdateStatus(ctx, UpdateStatusCommand{
			ReportID: id,
			Status:   cmd.Status,
			ActorID:  cmd.ActorID,
			Notes:    cmd.Notes,
		})
		if err != nil {
			res.fail(id, err)
			continue
		}
		res.succeed(id)
	}

	s.logBulk("bulk update status", res)
	return res
}

func (s *Service) BulkAutoAssignOfficers(ctx context.Context, cmd BulkAutoAssignCommand) *BulkResult {
	s.logger.Infow("executing bulk auto assign officers",
		"count", len(cmd.ReportIDs),
		"strategy", cmd.Strategy)

	res := newBulkResult(len(cmd.ReportIDs))
	for _, id := range cmd.ReportIDs {
		_, err := s.AutoAssignOfficer(ctx, AutoAssignOfficerCommand{
			ReportID:   id,
			AssignerID: cmd.AssignerID,
			Strategy:   cmd.Strategy,
		})
		if err != nil {
			res.fail(id, err)
			continue
		}
		res.succeed(id)
	}

	s.logBulk("bulk auto assign officers", res)
	return res
}

func (s *Service) precheckStatus(ctx context.Context, reportID uint, target vo.ReportStatus) error {
	r, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return mapReportLookupError(err)
	}
	task, err := s.taskRepo.GetByReportID(ctx, reportID)
	if err != nil {
		return apperrors.NewInternalError("failed to load task").WithCause(err)
	}
	if err := s.validator.Validate(r, target, task != nil); err != nil {
		return toAppError(err)
	}
	return nil
}

func (s *Service) logBulk(op string, res *BulkResult) {
	s.logger.Infow(op+" completed",
		"total", res.Total,
		"successful", res.Successful,
		"failed", res.Failed)
}

package report

import (
	"fmt"
	"time"

	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

// StatusHistory is one append-only row of a report's lifecycle log.
type StatusHistory struct {
	id        uint
	reportID  uint
	oldStatus *vo.ReportStatus
	newStatus vo.ReportStatus
	actorID   uint
	note      string
	createdAt time.Time
}

func NewStatusHistory(reportID uint, oldStatus *vo.ReportStatus, newStatus vo.ReportStatus, actorID uint, note string, at time.Time) (*StatusHistory, error) {
	if reportID == 0 {
		return nil, fmt.Errorf("report ID is required")
	}
	if actorID == 0 {
		return nil, fmt.Errorf("actor ID is required")
	}
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("invalid status: %s", newStatus)
	}
	if oldStatus != nil && !oldStatus.IsValid() {
		return nil, fmt.Errorf("invalid previous status: %s", *oldStatus)
	}
	return &StatusHistory{
		reportID:  reportID,
		oldStatus: oldStatus,
		newStatus: newStatus,
		actorID:   actorID,
		note:      note,
		createdAt: at,
	}, nil
}

func ReconstructStatusHistory(id, reportID uint, oldStatus *vo.ReportStatus, newStatus vo.ReportStatus, actorID uint, note string, createdAt time.Time) *StatusHistory {
	return &StatusHistory{
		id:        id,
		reportID:  reportID,
		oldStatus: oldStatus,
		newStatus: newStatus,
		actorID:   actorID,
		note:      note,
		createdAt: createdAt,
	}
}

func (h *StatusHistory) ID() uint {
	return h.id
}

func (h *StatusHistory) ReportID() uint {
	return h.reportID
}

func (h *StatusHistory) OldStatus() *vo.ReportStatus {
	return h.oldStatus
}

func (h *StatusHistory) NewStatus() vo.ReportStatus {
	return h.newStatus
}

func (h *StatusHistory) ActorID() uint {
	return h.actorID
}

func (h *StatusHistory) Note() string {
	return h.note
}

func (h *StatusHistory) CreatedAt() time.Time {
	return h.createdAt
}

func (h *StatusHistory) SetID(id uint) {
	if h.id == 0 {
		h.id = id
	}
}

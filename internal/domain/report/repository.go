package report

import (
	"context"
	"time"

	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

// ReportRepository lookups return an error wrapping ErrReportNotFound when
// the row does not exist.
type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	Update(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uint) (*Report, error)
	// GetByIDForUpdate locks the report row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uint) (*Report, error)
	// UpdateClassification writes classification metadata, the inferred
	// category and severity, and the review and processed flags. Status,
	// department and duplicate links are left untouched.
	UpdateClassification(ctx context.Context, r *Report) error
	FindDuplicateCandidates(ctx context.Context, filter DuplicateFilter) ([]*Report, error)
	// ListUnprocessed returns ids of pre-assignment reports the pipeline
	// has not finished, created before the cutoff, oldest first.
	ListUnprocessed(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error)
}

// DuplicateFilter bounds the duplicate search to a category, a bounding box
// and a trailing time window.
type DuplicateFilter struct {
	ExcludeID    uint
	BeforeID     uint
	Category     vo.Category
	Since        time.Time
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
	Limit        int
}

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	// UpdateSLAFlags writes only the SLA deadline and flags, and only while
	// the stored task still has one of statuses and the same officer. It
	// reports false when the row no longer matches.
	UpdateSLAFlags(ctx context.Context, t *Task, statuses []vo.TaskStatus) (bool, error)
	// GetByReportID returns nil without error when the report has no task.
	GetByReportID(ctx context.Context, reportID uint) (*Task, error)
	ListByStatuses(ctx context.Context, statuses []vo.TaskStatus) ([]*Task, error)
	CountOpenByOfficer(ctx context.Context, officerID uint) (int64, error)
	CountResolvedByOfficer(ctx context.Context, officerID uint) (int64, error)
	// ResolutionDurations returns created->closed spans of the officer's
	// resolved or closed reports closed since the given time.
	ResolutionDurations(ctx context.Context, officerID uint, since time.Time) ([]time.Duration, error)
}

type HistoryRepository interface {
	Append(ctx context.Context, h *StatusHistory) error
	ListByReport(ctx context.Context, reportID uint) ([]*StatusHistory, error)
}

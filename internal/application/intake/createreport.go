package intake

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sethvargo/go-retry"

	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	"github.com/civictrack/civictrack/internal/shared/errors"
	"github.com/civictrack/civictrack/internal/shared/logger"
	"github.com/civictrack/civictrack/internal/shared/utils"
)

const (
	numberAttempts    = 5
	defaultRetryDelay = 100 * time.Millisecond
)

type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Enqueuer hands a new report to the classification workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, reportID uint) error
}

type CreateReportCommand struct {
	SubmitterID uint     `json:"submitter_id" validate:"required"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Category    string   `json:"category" validate:"omitempty,oneof=pothole streetlight garbage water_leak drainage road_damage traffic_signal tree_fall other"`
	Severity    string   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

type CreateReportResult struct {
	ReportID  uint
	Number    string
	Status    string
	Enqueued  bool
	CreatedAt time.Time
}

type CreateReportUseCase struct {
	txManager   TransactionManager
	reportRepo  report.ReportRepository
	historyRepo report.HistoryRepository
	numbers     report.NumberGenerator
	queue       Enqueuer
	audit       events.AuditPublisher
	policy      *bluemonday.Policy
	retryBase   time.Duration
	logger      logger.Interface
	now         func() time.Time
}

func NewCreateReportUseCase(
	txManager TransactionManager,
	reportRepo report.ReportRepository,
	historyRepo report.HistoryRepository,
	numbers report.NumberGenerator,
	queue Enqueuer,
	audit events.AuditPublisher,
	logger logger.Interface,
) *CreateReportUseCase {
	return &CreateReportUseCase{
		txManager:   txManager,
		reportRepo:  reportRepo,
		historyRepo: historyRepo,
		numbers:     numbers,
		queue:       queue,
		audit:       audit,
		policy:      bluemonday.StrictPolicy(),
		retryBase:   defaultRetryDelay,
		logger:      logger,
		now:         biztime.NowUTC,
	}
}

// SetRetryBase overrides the first backoff delay of number allocation.
func (uc *CreateReportUseCase) SetRetryBase(d time.Duration) {
	if d > 0 {
		uc.retryBase = d
	}
}

func (uc *CreateReportUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

func (uc *CreateReportUseCase) Execute(ctx context.Context, cmd CreateReportCommand) (*CreateReportResult, error) {
	uc.logger.Infow("executing create report use case", "submitter_id", cmd.SubmitterID)

	if err := utils.ValidateStruct(cmd); err != nil {
		uc.logger.Warnw("invalid create report command", "error", err)
		return nil, err
	}
	if (cmd.Latitude == nil) != (cmd.Longitude == nil) {
		return nil, errors.NewValidationError("latitude and longitude must be provided together")
	}

	title := uc.sanitize(cmd.Title)
	if title == "" {
		return nil, errors.NewValidationError("title is required")
	}
	description := uc.sanitize(cmd.Description)

	var location *report.Location
	if cmd.Latitude != nil && cmd.Longitude != nil {
		location = &report.Location{Latitude: *cmd.Latitude, Longitude: *cmd.Longitude}
	}

	newReport, err := report.NewReport(
		cmd.SubmitterID,
		title,
		description,
		vo.Category(cmd.Category),
		vo.Severity(cmd.Severity),
		location,
	)
	if err != nil {
		uc.logger.Errorw("failed to create report entity", "error", err)
		return nil, errors.NewValidationError(err.Error())
	}

	backoff := retry.WithMaxRetries(numberAttempts-1, retry.NewExponential(uc.retryBase))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := uc.save(ctx, newReport)
		if err != nil && errors.IsTransientError(err) {
			uc.logger.Warnw("report number collision, retrying",
				"attempt", attempt,
				"error", err)
			newReport.ResetNumber()
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if errors.IsTransientError(err) {
			uc.logger.Errorw("report number allocation exhausted", "attempts", attempt, "error", err)
			return nil, errors.NewValidationError("unable to allocate report number, please retry").WithCause(err)
		}
		uc.logger.Errorw("failed to save report", "error", err)
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to save report").WithCause(err)
	}

	if uc.audit != nil {
		if err := uc.audit.Publish(ctx, events.AuditEvent{
			Action:       events.ActionReportCreated,
			ActorID:      newReport.SubmitterID(),
			ResourceType: events.ResourceReport,
			ResourceID:   newReport.ID(),
			Metadata:     map[string]any{"number": newReport.Number(), "category": newReport.Category().String()},
			OccurredAt:   newReport.CreatedAt(),
		}); err != nil {
			uc.logger.Warnw("failed to publish audit event", "report_id", newReport.ID(), "error", err)
		}
	}

	enqueued := true
	if err := uc.queue.Enqueue(ctx, newReport.ID()); err != nil {
		// the recovery sweep picks up received reports that never reached the queue
		enqueued = false
		uc.logger.Errorw("failed to enqueue report for classification",
			"report_id", newReport.ID(),
			"error", err)
	}

	uc.logger.Infow("report created successfully",
		"report_id", newReport.ID(),
		"number", newReport.Number(),
		"enqueued", enqueued)

	return &CreateReportResult{
		ReportID:  newReport.ID(),
		Number:    newReport.Number(),
		Status:    newReport.Status().String(),
		Enqueued:  enqueued,
		CreatedAt: newReport.CreatedAt(),
	}, nil
}

// save allocates a number and writes the report with its first history row.
// A unique violation on the number comes back as a transient error.
func (uc *CreateReportUseCase) save(ctx context.Context, r *report.Report) error {
	number, err := uc.numbers.Generate(ctx, uc.now())
	if err != nil {
		return errors.NewInternalError("failed to generate report number").WithCause(err)
	}
	if err := r.SetNumber(number); err != nil {
		return errors.NewInternalError("failed to set report number").WithCause(err)
	}

	return uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.reportRepo.Create(txCtx, r); err != nil {
			if errors.IsDuplicateError(err) {
				return errors.NewTransientError("report number already taken", number).WithCause(err)
			}
			return errors.NewInternalError("failed to create report").WithCause(err)
		}
		h, err := report.NewStatusHistory(r.ID(), nil, r.Status(), r.SubmitterID(), "report received", r.CreatedAt())
		if err != nil {
			return errors.NewInternalError("failed to build status history").WithCause(err)
		}
		if err := uc.historyRepo.Append(txCtx, h); err != nil {
			return errors.NewInternalError("failed to record status history").WithCause(err)
		}
		return nil
	})
}

// sanitize strips markup and keeps plain text entities readable.
func (uc *CreateReportUseCase) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(uc.policy.Sanitize(s)))
}

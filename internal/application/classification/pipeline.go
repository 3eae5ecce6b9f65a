package classification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	apperrors "github.com/civictrack/civictrack/internal/shared/errors"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

// Pipeline outcomes reported to metrics.
const (
	OutcomeSkipped    = "skipped"
	OutcomeDuplicate  = "duplicate"
	OutcomeClassified = "classified"
	OutcomeReview     = "needs_review"
	OutcomeError      = "error"
)

type Result struct {
	ReportID          uint            `json:"report_id"`
	Status            vo.ReportStatus `json:"status"`
	Stages            []StageResult   `json:"stages"`
	Errors            []string        `json:"errors,omitempty"`
	Skipped           bool            `json:"skipped"`
	SkipReason        string          `json:"skip_reason,omitempty"`
	OverallConfidence float64         `json:"overall_confidence"`
	Category          vo.Category     `json:"category,omitempty"`
	Severity          vo.Severity     `json:"severity,omitempty"`
	DepartmentID      *uint           `json:"department_id,omitempty"`
	OfficerID         *uint           `json:"officer_id,omitempty"`
	DuplicateOf       *uint           `json:"duplicate_of,omitempty"`
	NeedsReview       bool            `json:"needs_review"`
}

func (r *Result) stage(name string, status StageStatus, detail string) {
	r.Stages = append(r.Stages, StageResult{Name: name, Status: status, Detail: detail})
}

func (r *Result) fail(name string, err error) {
	r.stage(name, StageFailed, err.Error())
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", name, err))
	r.NeedsReview = true
}

// Pipeline classifies a report, detects duplicates and routes it. Status
// changes go through the lifecycle service as the automation actor; the
// pipeline itself writes classification metadata only.
type Pipeline struct {
	reportRepo  report.ReportRepository
	officerRepo officer.Repository
	lifecycle   Lifecycle
	classifier  TextClassifier
	embedder    Embedder
	opts        Options
	metrics     Metrics
	logger      logger.Interface
	now         func() time.Time
}

func NewPipeline(
	reportRepo report.ReportRepository,
	officerRepo officer.Repository,
	lifecycle Lifecycle,
	classifier TextClassifier,
	embedder Embedder,
	opts Options,
	logger logger.Interface,
) *Pipeline {
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.Strategy == "" {
		opts.Strategy = assignment.StrategyBalanced
	}
	return &Pipeline{
		reportRepo:  reportRepo,
		officerRepo: officerRepo,
		lifecycle:   lifecycle,
		classifier:  classifier,
		embedder:    embedder,
		opts:        opts,
		metrics:     nopMetrics{},
		logger:      logger,
		now:         biztime.NowUTC,
	}
}

func (p *Pipeline) SetMetrics(m Metrics) {
	if m != nil {
		p.metrics = m
	}
}

func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// ProcessReport runs every stage for reportID. force re-runs a report that
// was already processed; the other skip conditions still apply.
func (p *Pipeline) ProcessReport(ctx context.Context, reportID uint, force bool) (*Result, error) {
	logger.ForReport(p.logger, reportID).Infow("processing report", "force", force)

	r, err := p.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		p.metrics.ObservePipeline(OutcomeError)
		if errors.Is(err, report.ErrReportNotFound) {
			return nil, apperrors.NewNotFoundError("report not found").WithCause(err)
		}
		return nil, apperrors.NewInternalError("failed to load report").WithCause(err)
	}

	result := &Result{ReportID: r.ID(), Status: r.Status()}
	reason := skipReason(r)
	if force && r.IsPipelineProcessed() && !r.ManuallyClassified() && !r.IsDuplicate() && !r.ManuallyAssigned() && !r.Status().IsTerminal() {
		reason = ""
	}
	if reason != "" {
		result.Skipped = true
		result.SkipReason = reason
		result.stage(StageSkipGuard, StageSkipped, reason)
		p.metrics.ObservePipeline(OutcomeSkipped)
		p.logger.Infow("report skipped by pipeline", "report_id", r.ID(), "reason", reason)
		return result, nil
	}
	result.stage(StageSkipGuard, StageOK, "")

	if err := p.run(ctx, r, result); err != nil {
		p.metrics.ObservePipeline(OutcomeError)
		p.logger.Errorw("classification pipeline failed",
			"report_id", r.ID(),
			"error", err)
		if ferr := p.updateMetadata(ctx, r.ID(), true, false); ferr != nil {
			p.logger.Errorw("failed to flag report for review",
				"report_id", r.ID(),
				"error", ferr)
		}
		if apperrors.IsAppError(err) {
			return result, err
		}
		return result, apperrors.NewInternalError("classification pipeline failed").WithCause(err)
	}

	switch {
	case result.DuplicateOf != nil:
		p.metrics.ObservePipeline(OutcomeDuplicate)
	case result.NeedsReview:
		p.metrics.ObservePipeline(OutcomeReview)
	default:
		p.metrics.ObservePipeline(OutcomeClassified)
	}
	p.logger.Infow("report processed",
		"report_id", r.ID(),
		"status", result.Status,
		"confidence", result.OverallConfidence,
		"needs_review", result.NeedsReview)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, r *report.Report, result *Result) error {
	now := p.now()

	if r.Status() == vo.StatusReceived {
		res, err := p.lifecycle.UpdateStatus(ctx, assignment.UpdateStatusCommand{
			ReportID: r.ID(),
			Status:   vo.StatusPendingClassification,
			ActorID:  officer.AutomationActorID,
			Notes:    "automatic classification started",
		})
		if err != nil {
			return err
		}
		result.Status = res.Status
	}

	if done, err := p.runDuplicateStage(ctx, r, result, now); err != nil || done {
		return err
	}

	text := r.Text()
	category, catRes := r.Category(), labelResult{}
	severity, sevRes := r.Severity(), labelResult{}

	if p.classifier == nil {
		result.stage(StageCategory, StageDefaulted, "no classifier configured")
		result.stage(StageSeverity, StageDefaulted, "no classifier configured")
		result.NeedsReview = true
	} else {
		if c, res, err := p.classifyCategory(ctx, text); err != nil {
			p.metrics.ObserveStageFailure(StageCategory)
			p.logger.Warnw("category classification failed, keeping submitted category",
				"report_id", r.ID(),
				"category", category,
				"error", err)
			result.fail(StageCategory, err)
		} else {
			category, catRes = c, res
			if res.defaulted {
				result.stage(StageCategory, StageDefaulted, "unknown label, using other")
			} else {
				result.stage(StageCategory, StageOK, c.String())
			}
		}

		if s, res, err := p.scoreSeverity(ctx, text); err != nil {
			p.metrics.ObserveStageFailure(StageSeverity)
			p.logger.Warnw("severity scoring failed, keeping submitted severity",
				"report_id", r.ID(),
				"severity", severity,
				"error", err)
			result.fail(StageSeverity, err)
		} else {
			severity, sevRes = s, res
			if res.defaulted {
				result.stage(StageSeverity, StageDefaulted, "unknown label, using medium")
			} else {
				result.stage(StageSeverity, StageOK, s.String())
			}
		}
	}

	var deptConfidence float64
	dept, err := p.routeDepartment(ctx, category)
	switch {
	case err != nil:
		p.metrics.ObserveStageFailure(StageDepartment)
		result.fail(StageDepartment, err)
	case dept == nil:
		result.stage(StageDepartment, StageDefaulted, "no department")
		result.NeedsReview = true
	default:
		deptConfidence = departmentMatchConfidence
		id := dept.ID()
		result.DepartmentID = &id
		result.stage(StageDepartment, StageOK, dept.Name())
	}

	overall := OverallConfidence(catRes.confidence, sevRes.confidence, deptConfidence)
	result.OverallConfidence = overall
	result.Category = category
	result.Severity = severity
	accepted := catRes.confidence >= p.opts.Thresholds.Accept && overall >= p.opts.Thresholds.Accept
	if !accepted {
		result.NeedsReview = true
	}

	// classification lands before any assignment so priority sees the inferred severity
	if err := r.ApplyClassification(report.Classification{
		Category:           category,
		CategoryConfidence: catRes.confidence,
		Severity:           severity,
		SeverityConfidence: sevRes.confidence,
		OverallConfidence:  overall,
		ModelVersion:       p.opts.ModelVersion,
		Scores:             mergeScores(catRes.scores, sevRes.scores),
		InferredAt:         now,
	}); err != nil {
		return apperrors.NewInternalError("invalid classification").WithCause(err)
	}
	if result.NeedsReview {
		r.FlagForReview()
	}
	if err := p.reportRepo.UpdateClassification(ctx, r); err != nil {
		return apperrors.NewInternalError("failed to store classification").WithCause(err)
	}

	if !accepted {
		result.stage(StageStatusUpdate, StageSkipped,
			fmt.Sprintf("confidence %.2f below %.2f", overall, p.opts.Thresholds.Accept))
		return p.finish(ctx, r.ID(), result)
	}

	res, err := p.lifecycle.UpdateStatus(ctx, assignment.UpdateStatusCommand{
		ReportID: r.ID(),
		Status:   vo.StatusClassified,
		ActorID:  officer.AutomationActorID,
		Notes:    fmt.Sprintf("classified as %s/%s (confidence %.2f)", category, severity, overall),
	})
	if err != nil {
		return err
	}
	result.Status = res.Status
	result.stage(StageStatusUpdate, StageOK, res.Status.String())

	p.autoAssign(ctx, r.ID(), result)
	return p.finish(ctx, r.ID(), result)
}

// runDuplicateStage reports done=true when the report was marked duplicate.
func (p *Pipeline) runDuplicateStage(ctx context.Context, r *report.Report, result *Result, now time.Time) (bool, error) {
	switch {
	case !p.opts.DuplicateDetection:
		result.stage(StageDuplicate, StageSkipped, "disabled")
		return false, nil
	case p.embedder == nil:
		result.stage(StageDuplicate, StageSkipped, "no embedder configured")
		return false, nil
	case r.Location() == nil:
		result.stage(StageDuplicate, StageSkipped, "no location")
		return false, nil
	}

	match, err := p.findDuplicate(ctx, r, now)
	if err != nil {
		p.metrics.ObserveStageFailure(StageDuplicate)
		p.logger.Warnw("duplicate detection failed", "report_id", r.ID(), "error", err)
		result.fail(StageDuplicate, err)
		return false, nil
	}
	if match == nil || match.similarity < p.opts.Thresholds.Duplicate {
		result.stage(StageDuplicate, StageOK, "no duplicate")
		return false, nil
	}

	needsReview := match.similarity < p.opts.Thresholds.DuplicateHighConfidence
	res, err := p.lifecycle.MarkDuplicate(ctx, assignment.MarkDuplicateCommand{
		ReportID:     r.ID(),
		CanonicalID:  match.reportID,
		Similarity:   match.similarity,
		ModelVersion: p.opts.ModelVersion,
		ActorID:      officer.AutomationActorID,
		NeedsReview:  needsReview,
	})
	if err != nil {
		return true, err
	}

	canonical := match.reportID
	result.DuplicateOf = &canonical
	result.Status = res.Status
	result.OverallConfidence = match.similarity
	result.NeedsReview = result.NeedsReview || needsReview
	result.stage(StageDuplicate, StageOK,
		fmt.Sprintf("duplicate of %d (similarity %.2f, %.0fm)", canonical, match.similarity, match.distance))
	p.logger.Infow("report marked duplicate",
		"report_id", r.ID(),
		"canonical_id", canonical,
		"similarity", match.similarity)

	return true, p.finish(ctx, r.ID(), result)
}

// autoAssign routes the report when confidence allows. Failures here leave
// the report classified and flagged for review.
func (p *Pipeline) autoAssign(ctx context.Context, reportID uint, result *Result) {
	t := p.opts.Thresholds
	if result.DepartmentID == nil || result.OverallConfidence < t.AutoAssignDepartment {
		result.stage(StageAutoAssign, StageSkipped,
			fmt.Sprintf("confidence %.2f below %.2f or no department", result.OverallConfidence, t.AutoAssignDepartment))
		return
	}

	res, err := p.lifecycle.AssignDepartment(ctx, assignment.AssignDepartmentCommand{
		ReportID:     reportID,
		DepartmentID: *result.DepartmentID,
		ActorID:      officer.AutomationActorID,
		Notes:        "routed by automatic classification",
		AutoStatus:   true,
	})
	if err != nil {
		p.metrics.ObserveStageFailure(StageAutoAssign)
		p.logger.Warnw("automatic department assignment failed", "report_id", reportID, "error", err)
		result.fail(StageAutoAssign, err)
		return
	}
	result.Status = res.Status

	if result.OverallConfidence < t.AutoAssignOfficer {
		result.stage(StageAutoAssign, StageOK, "department assigned")
		return
	}

	res, err = p.lifecycle.AutoAssignOfficer(ctx, assignment.AutoAssignOfficerCommand{
		ReportID:   reportID,
		AssignerID: officer.AutomationActorID,
		Strategy:   p.opts.Strategy,
		Notes:      "assigned by automatic classification",
	})
	if err != nil {
		p.metrics.ObserveStageFailure(StageAutoAssign)
		p.logger.Warnw("automatic officer assignment failed", "report_id", reportID, "error", err)
		result.fail(StageAutoAssign, err)
		return
	}
	result.Status = res.Status
	result.OfficerID = res.OfficerID
	result.stage(StageAutoAssign, StageOK, "department and officer assigned")
}

// finish marks the report processed on a fresh copy so metadata written by
// the lifecycle service is kept.
func (p *Pipeline) finish(ctx context.Context, reportID uint, result *Result) error {
	return p.updateMetadata(ctx, reportID, result.NeedsReview, true)
}

func (p *Pipeline) updateMetadata(ctx context.Context, reportID uint, review, processed bool) error {
	r, err := p.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("failed to reload report: %w", err)
	}
	if review {
		r.FlagForReview()
	}
	if processed {
		r.MarkPipelineProcessed(p.now())
	}
	if err := p.reportRepo.UpdateClassification(ctx, r); err != nil {
		return apperrors.NewInternalError("failed to store classification").WithCause(err)
	}
	return nil
}

func mergeScores(maps ...map[string]float64) map[string]float64 {
	var out map[string]float64
	for _, m := range maps {
		for k, v := range m {
			if out == nil {
				out = make(map[string]float64)
			}
			out[k] = v
		}
	}
	return out
}

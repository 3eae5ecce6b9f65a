package classification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

const (
	StageSkipGuard    = "skip_guard"
	StageDuplicate    = "duplicate_detection"
	StageCategory     = "category_classification"
	StageSeverity     = "severity_scoring"
	StageDepartment   = "department_routing"
	StageStatusUpdate = "status_update"
	StageAutoAssign   = "auto_assignment"
)

type StageStatus string

const (
	StageOK        StageStatus = "ok"
	StageSkipped   StageStatus = "skipped"
	StageFailed    StageStatus = "failed"
	StageDefaulted StageStatus = "defaulted"
)

type StageResult struct {
	Name   string      `json:"name"`
	Status StageStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// skipReason returns why r must not be processed again, or "".
func skipReason(r *report.Report) string {
	switch {
	case r.IsPipelineProcessed():
		return "already processed"
	case r.ManuallyClassified():
		return "manually classified"
	case r.IsDuplicate():
		return "already marked duplicate"
	case r.ManuallyAssigned():
		return "manually assigned"
	case r.Status().IsTerminal():
		return fmt.Sprintf("terminal status %s", r.Status())
	}
	return ""
}

type duplicateMatch struct {
	reportID   uint
	similarity float64
	distance   float64
}

// findDuplicate returns the most similar earlier report within the category
// radius and time window, or nil when nothing qualifies as a candidate.
func (p *Pipeline) findDuplicate(ctx context.Context, r *report.Report, now time.Time) (*duplicateMatch, error) {
	loc := r.Location()
	radius := r.Category().DuplicateRadiusMeters()
	minLat, maxLat, minLon, maxLon := boundingBox(loc.Latitude, loc.Longitude, radius)

	candidates, err := p.reportRepo.FindDuplicateCandidates(ctx, report.DuplicateFilter{
		ExcludeID:    r.ID(),
		BeforeID:     r.ID(),
		Category:     r.Category(),
		Since:        now.Add(-p.opts.Thresholds.DuplicateWindow),
		MinLatitude:  minLat,
		MaxLatitude:  maxLat,
		MinLongitude: minLon,
		MaxLongitude: maxLon,
		Limit:        duplicateCandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search duplicate candidates: %w", err)
	}

	var best *duplicateMatch
	var vec []float64
	for _, c := range candidates {
		if c.ID() >= r.ID() || c.Location() == nil {
			continue
		}
		dist := HaversineMeters(loc.Latitude, loc.Longitude, c.Location().Latitude, c.Location().Longitude)
		if dist > radius {
			continue
		}
		if vec == nil {
			vec, err = p.embedder.Embed(ctx, r.Text())
			if err != nil {
				return nil, fmt.Errorf("failed to embed report text: %w", err)
			}
		}
		other, err := p.embedder.Embed(ctx, c.Text())
		if err != nil {
			return nil, fmt.Errorf("failed to embed candidate %d: %w", c.ID(), err)
		}
		sim := CosineSimilarity(vec, other)
		if best == nil || sim > best.similarity {
			best = &duplicateMatch{reportID: c.ID(), similarity: sim, distance: dist}
		}
	}
	return best, nil
}

type labelResult struct {
	confidence float64
	scores     map[string]float64
	defaulted  bool
}

func (p *Pipeline) classifyCategory(ctx context.Context, text string) (vo.Category, labelResult, error) {
	labels := make([]string, len(vo.AllCategories))
	for i, c := range vo.AllCategories {
		labels[i] = c.String()
	}
	pred, err := p.classifier.Classify(ctx, text, labels)
	if err != nil {
		return "", labelResult{}, err
	}
	category, err := vo.NewCategory(strings.ToLower(strings.TrimSpace(pred.Label)))
	if err != nil {
		p.logger.Warnw("classifier returned unknown category, using other",
			"label", pred.Label,
			"confidence", pred.Confidence)
		return vo.CategoryOther, labelResult{confidence: otherFallbackConfidence, scores: pred.Scores, defaulted: true}, nil
	}
	return category, labelResult{confidence: clampUnit(pred.Confidence), scores: pred.Scores}, nil
}

func (p *Pipeline) scoreSeverity(ctx context.Context, text string) (vo.Severity, labelResult, error) {
	labels := make([]string, len(vo.AllSeverities))
	for i, s := range vo.AllSeverities {
		labels[i] = s.String()
	}
	pred, err := p.classifier.Classify(ctx, text, labels)
	if err != nil {
		return "", labelResult{}, err
	}
	severity, err := vo.NewSeverity(strings.ToLower(strings.TrimSpace(pred.Label)))
	if err != nil {
		p.logger.Warnw("classifier returned unknown severity, using medium",
			"label", pred.Label,
			"confidence", pred.Confidence)
		return vo.SeverityMedium, labelResult{confidence: severityFallbackConfidence, scores: pred.Scores, defaulted: true}, nil
	}
	return severity, labelResult{confidence: clampUnit(pred.Confidence), scores: pred.Scores}, nil
}

// routeDepartment matches the category's keywords against active department
// names. It returns nil for "other" or when no name matches.
func (p *Pipeline) routeDepartment(ctx context.Context, category vo.Category) (*officer.Department, error) {
	keywords := category.DepartmentKeywords()
	if len(keywords) == 0 {
		return nil, nil
	}
	departments, err := p.officerRepo.ListActiveDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	fold := cases.Fold()
	for _, kw := range keywords {
		needle := fold.String(kw)
		for _, d := range departments {
			if strings.Contains(fold.String(d.Name()), needle) {
				return d, nil
			}
		}
	}
	return nil, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package classification

import (
	"time"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/shared/config"
)

const (
	categoryWeight   = 0.5
	severityWeight   = 0.3
	departmentWeight = 0.2

	// confidence recorded when a category label falls back to other
	otherFallbackConfidence = 0.30
	// confidence recorded when a severity label falls back to medium
	severityFallbackConfidence = 0.50
	departmentMatchConfidence  = 0.90

	duplicateCandidateLimit = 50
)

type Thresholds struct {
	Accept                  float64
	AutoAssignDepartment    float64
	AutoAssignOfficer       float64
	Duplicate               float64
	DuplicateHighConfidence float64
	DuplicateWindow         time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Accept:                  0.40,
		AutoAssignDepartment:    0.60,
		AutoAssignOfficer:       0.80,
		Duplicate:               0.85,
		DuplicateHighConfidence: 0.95,
		DuplicateWindow:         30 * 24 * time.Hour,
	}
}

// Options configures a Pipeline. Zero values fall back to the defaults.
type Options struct {
	Thresholds         Thresholds
	DuplicateDetection bool
	ModelVersion       string
	Strategy           assignment.Strategy
}

func OptionsFromConfig(cfg config.ClassificationConfig) (Options, error) {
	t := DefaultThresholds()
	if cfg.AcceptThreshold > 0 {
		t.Accept = cfg.AcceptThreshold
	}
	if cfg.AutoAssignThreshold > 0 {
		t.AutoAssignDepartment = cfg.AutoAssignThreshold
	}
	if cfg.AutoAssignOfficerThreshold > 0 {
		t.AutoAssignOfficer = cfg.AutoAssignOfficerThreshold
	}
	if cfg.DuplicateThreshold > 0 {
		t.Duplicate = cfg.DuplicateThreshold
	}
	if cfg.DuplicateHighConfidence > 0 {
		t.DuplicateHighConfidence = cfg.DuplicateHighConfidence
	}
	if cfg.DuplicateWindowDays > 0 {
		t.DuplicateWindow = time.Duration(cfg.DuplicateWindowDays) * 24 * time.Hour
	}

	strategy, err := assignment.ParseStrategy(cfg.AssignmentStrategy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Thresholds:         t,
		DuplicateDetection: cfg.DuplicateDetection,
		ModelVersion:       cfg.ModelVersion,
		Strategy:           strategy,
	}, nil
}

// OverallConfidence weights the three stage confidences.
func OverallConfidence(category, severity, department float64) float64 {
	return categoryWeight*category + severityWeight*severity + departmentWeight*department
}

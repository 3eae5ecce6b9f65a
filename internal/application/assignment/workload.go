package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	"github.com/civictrack/civictrack/internal/shared/biztime"
	apperrors "github.com/civictrack/civictrack/internal/shared/errors"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

type Strategy string

const (
	StrategyLeastBusy  Strategy = "least_busy"
	StrategyBalanced   Strategy = "balanced"
	StrategyRoundRobin Strategy = "round_robin"
)

// ParseStrategy maps an empty string to StrategyBalanced and rejects unknown names.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyBalanced, nil
	case StrategyLeastBusy, StrategyBalanced, StrategyRoundRobin:
		return Strategy(s), nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown assignment strategy: %s", s))
}

type CapacityLevel string

const (
	CapacityLow    CapacityLevel = "low"
	CapacityMedium CapacityLevel = "medium"
	CapacityHigh   CapacityLevel = "high"
)

const (
	defaultAvgResolutionDays = 7.0
	resolutionWindow         = 30 * 24 * time.Hour
)

type OfficerWorkload struct {
	OfficerID         uint          `json:"officer_id"`
	ActiveReports     int64         `json:"active_reports"`
	ResolvedReports   int64         `json:"resolved_reports"`
	AvgResolutionDays float64       `json:"avg_resolution_time_days"`
	WorkloadScore     float64       `json:"workload_score"`
	Capacity          CapacityLevel `json:"capacity_level"`
}

// ComputeWorkloadScore is lower for less loaded, faster officers.
func ComputeWorkloadScore(activeReports int64, avgResolutionDays float64) float64 {
	return float64(activeReports) + 2*(avgResolutionDays/7)
}

func CapacityFor(activeReports int64, avgResolutionDays float64) CapacityLevel {
	switch {
	case activeReports <= 3 && avgResolutionDays <= 5:
		return CapacityLow
	case activeReports <= 7 && avgResolutionDays <= 10:
		return CapacityMedium
	}
	return CapacityHigh
}

type WorkloadBalancer struct {
	taskRepo    report.TaskRepository
	officerRepo officer.Repository
	cursor      RoundRobinCursor
	logger      logger.Interface
	now         func() time.Time
}

func NewWorkloadBalancer(
	taskRepo report.TaskRepository,
	officerRepo officer.Repository,
	logger logger.Interface,
) *WorkloadBalancer {
	return &WorkloadBalancer{
		taskRepo:    taskRepo,
		officerRepo: officerRepo,
		logger:      logger,
		now:         biztime.NowUTC,
	}
}

// SetRoundRobinCursor enables true rotation for StrategyRoundRobin. Without a
// cursor the strategy behaves like StrategyLeastBusy.
func (b *WorkloadBalancer) SetRoundRobinCursor(cursor RoundRobinCursor) {
	b.cursor = cursor
}

func (b *WorkloadBalancer) SetClock(now func() time.Time) {
	b.now = now
}

func (b *WorkloadBalancer) GetOfficerWorkload(ctx context.Context, officerID uint) (*OfficerWorkload, error) {
	if _, err := b.officerRepo.GetOfficer(ctx, officerID); err != nil {
		if errors.Is(err, officer.ErrOfficerNotFound) {
			return nil, apperrors.NewNotFoundError("officer not found", fmt.Sprintf("officer_id=%d", officerID))
		}
		return nil, apperrors.NewInternalError("failed to load officer").WithCause(err)
	}
	return b.workloadFor(ctx, officerID)
}

func (b *WorkloadBalancer) GetDepartmentWorkloads(ctx context.Context, departmentID uint) ([]*OfficerWorkload, error) {
	officers, err := b.officerRepo.ListActiveOfficers(ctx, departmentID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list department officers").WithCause(err)
	}

	workloads := make([]*OfficerWorkload, 0, len(officers))
	for _, o := range officers {
		w, err := b.workloadFor(ctx, o.ID())
		if err != nil {
			return nil, err
		}
		workloads = append(workloads, w)
	}
	return workloads, nil
}

// SelectBestOfficer returns nil without error when no officer qualifies.
func (b *WorkloadBalancer) SelectBestOfficer(
	ctx context.Context,
	departmentID uint,
	strategy Strategy,
	excludeHighWorkload bool,
) (*officer.Officer, error) {
	officers, err := b.officerRepo.ListActiveOfficers(ctx, departmentID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list department officers").WithCause(err)
	}

	candidates := make([]*officer.Officer, 0, len(officers))
	workloads := make([]*OfficerWorkload, 0, len(officers))
	for _, o := range officers {
		if !o.IsActive() || !o.BelongsTo(departmentID) {
			continue
		}
		w, err := b.workloadFor(ctx, o.ID())
		if err != nil {
			return nil, err
		}
		if excludeHighWorkload && w.Capacity == CapacityHigh {
			continue
		}
		candidates = append(candidates, o)
		workloads = append(workloads, w)
	}

	if len(candidates) == 0 {
		b.logger.Infow("no eligible officer in department",
			"department_id", departmentID,
			"strategy", strategy,
			"exclude_high_workload", excludeHighWorkload)
		return nil, nil
	}

	var idx int
	switch strategy {
	case StrategyLeastBusy:
		idx = pickLeastBusy(workloads)
	case StrategyRoundRobin:
		idx = b.pickRoundRobin(ctx, departmentID, workloads)
	default:
		idx = pickBalanced(workloads)
	}

	b.logger.Debugw("officer selected",
		"department_id", departmentID,
		"strategy", strategy,
		"officer_id", candidates[idx].ID(),
		"workload_score", workloads[idx].WorkloadScore)

	return candidates[idx], nil
}

func (b *WorkloadBalancer) workloadFor(ctx context.Context, officerID uint) (*OfficerWorkload, error) {
	active, err := b.taskRepo.CountOpenByOfficer(ctx, officerID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count active reports").WithCause(err)
	}
	resolved, err := b.taskRepo.CountResolvedByOfficer(ctx, officerID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count resolved reports").WithCause(err)
	}
	durations, err := b.taskRepo.ResolutionDurations(ctx, officerID, biztime.StartOfDayUTC(b.now().Add(-resolutionWindow)))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load resolution times").WithCause(err)
	}

	avg := averageDays(durations)
	return &OfficerWorkload{
		OfficerID:         officerID,
		ActiveReports:     active,
		ResolvedReports:   resolved,
		AvgResolutionDays: avg,
		WorkloadScore:     ComputeWorkloadScore(active, avg),
		Capacity:          CapacityFor(active, avg),
	}, nil
}

func averageDays(durations []time.Duration) float64 {
	if len(durations) == 0 {
		return defaultAvgResolutionDays
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total.Hours() / 24 / float64(len(durations))
}

// Ties keep the earlier candidate.
func pickLeastBusy(workloads []*OfficerWorkload) int {
	best := 0
	for i, w := range workloads {
		if w.ActiveReports < workloads[best].ActiveReports {
			best = i
		}
	}
	return best
}

func pickBalanced(workloads []*OfficerWorkload) int {
	best := 0
	for i, w := range workloads {
		if w.WorkloadScore < workloads[best].WorkloadScore {
			best = i
		}
	}
	return best
}

func (b *WorkloadBalancer) pickRoundRobin(ctx context.Context, departmentID uint, workloads []*OfficerWorkload) int {
	if b.cursor == nil {
		return pickLeastBusy(workloads)
	}
	n, err := b.cursor.Next(ctx, departmentID)
	if err != nil {
		b.logger.Warnw("round robin cursor unavailable, falling back to least busy",
			"department_id", departmentID,
			"error", err)
		return pickLeastBusy(workloads)
	}
	if n < 1 {
		n = 1
	}
	return int((n - 1) % int64(len(workloads)))
}

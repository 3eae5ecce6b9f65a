package classification

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

type mockReportRepository struct {
	reports map[uint]*report.Report
	filters []report.DuplicateFilter

	UpdateClassificationFunc func(ctx context.Context, r *report.Report) error
	classificationWrites     int
}

func (m *mockReportRepository) Create(ctx context.Context, r *report.Report) error {
	m.reports[r.ID()] = r
	return nil
}

func (m *mockReportRepository) Update(ctx context.Context, r *report.Report) error {
	m.reports[r.ID()] = r
	return nil
}

func (m *mockReportRepository) GetByID(ctx context.Context, id uint) (*report.Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %d: %w", id, report.ErrReportNotFound)
	}
	return r, nil
}

func (m *mockReportRepository) GetByIDForUpdate(ctx context.Context, id uint) (*report.Report, error) {
	return m.GetByID(ctx, id)
}

func (m *mockReportRepository) UpdateClassification(ctx context.Context, r *report.Report) error {
	m.classificationWrites++
	if m.UpdateClassificationFunc != nil {
		return m.UpdateClassificationFunc(ctx, r)
	}
	return nil
}

func (m *mockReportRepository) FindDuplicateCandidates(ctx context.Context, f report.DuplicateFilter) ([]*report.Report, error) {
	m.filters = append(m.filters, f)
	var out []*report.Report
	for _, r := range m.reports {
		if r.ID() == f.ExcludeID || r.ID() >= f.BeforeID || r.Category() != f.Category {
			continue
		}
		if r.CreatedAt().Before(f.Since) || r.IsDuplicate() || r.Location() == nil {
			continue
		}
		loc := r.Location()
		if loc.Latitude < f.MinLatitude || loc.Latitude > f.MaxLatitude ||
			loc.Longitude < f.MinLongitude || loc.Longitude > f.MaxLongitude {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (m *mockReportRepository) ListUnprocessed(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error) {
	return nil, nil
}

type mockOfficerRepository struct {
	departments []*officer.Department
	err         error
}

func (m *mockOfficerRepository) GetOfficer(ctx context.Context, id uint) (*officer.Officer, error) {
	return nil, officer.ErrOfficerNotFound
}

func (m *mockOfficerRepository) GetDepartment(ctx context.Context, id uint) (*officer.Department, error) {
	for _, d := range m.departments {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, officer.ErrDepartmentNotFound
}

func (m *mockOfficerRepository) ListActiveOfficers(ctx context.Context, departmentID uint) ([]*officer.Officer, error) {
	return nil, nil
}

func (m *mockOfficerRepository) ListActiveDepartments(ctx context.Context) ([]*officer.Department, error) {
	return m.departments, m.err
}

func (m *mockOfficerRepository) ListByRole(ctx context.Context, role officer.Role) ([]*officer.Officer, error) {
	return nil, nil
}

// fakeLifecycle applies status changes straight to the stored reports and
// records every call.
type fakeLifecycle struct {
	repo      *mockReportRepository
	now       time.Time
	officerID uint

	statusCalls     []assignment.UpdateStatusCommand
	departmentCalls []assignment.AssignDepartmentCommand
	officerCalls    []assignment.AutoAssignOfficerCommand
	duplicateCalls  []assignment.MarkDuplicateCommand

	UpdateStatusFunc      func(cmd assignment.UpdateStatusCommand) error
	AutoAssignOfficerFunc func(cmd assignment.AutoAssignOfficerCommand) error
}

func (l *fakeLifecycle) result(r *report.Report, prev vo.ReportStatus) *assignment.Result {
	return &assignment.Result{
		ReportID:       r.ID(),
		ReportNumber:   r.Number(),
		Status:         r.Status(),
		PreviousStatus: prev,
		DepartmentID:   r.DepartmentID(),
		Changed:        prev != r.Status(),
	}
}

func (l *fakeLifecycle) UpdateStatus(ctx context.Context, cmd assignment.UpdateStatusCommand) (*assignment.Result, error) {
	l.statusCalls = append(l.statusCalls, cmd)
	if l.UpdateStatusFunc != nil {
		if err := l.UpdateStatusFunc(cmd); err != nil {
			return nil, err
		}
	}
	r, err := l.repo.GetByID(ctx, cmd.ReportID)
	if err != nil {
		return nil, err
	}
	prev := r.Status()
	r.ApplyStatus(cmd.Status, l.now)
	return l.result(r, prev), nil
}

func (l *fakeLifecycle) AssignDepartment(ctx context.Context, cmd assignment.AssignDepartmentCommand) (*assignment.Result, error) {
	l.departmentCalls = append(l.departmentCalls, cmd)
	r, err := l.repo.GetByID(ctx, cmd.ReportID)
	if err != nil {
		return nil, err
	}
	prev := r.Status()
	if err := r.AssignDepartment(cmd.DepartmentID, l.now); err != nil {
		return nil, err
	}
	if cmd.AutoStatus && prev.IsPreAssignment() {
		r.ApplyStatus(vo.StatusAssignedToDepartment, l.now)
	}
	return l.result(r, prev), nil
}

func (l *fakeLifecycle) AutoAssignOfficer(ctx context.Context, cmd assignment.AutoAssignOfficerCommand) (*assignment.Result, error) {
	l.officerCalls = append(l.officerCalls, cmd)
	if l.AutoAssignOfficerFunc != nil {
		if err := l.AutoAssignOfficerFunc(cmd); err != nil {
			return nil, err
		}
	}
	r, err := l.repo.GetByID(ctx, cmd.ReportID)
	if err != nil {
		return nil, err
	}
	prev := r.Status()
	r.ApplyStatus(vo.StatusAssignedToOfficer, l.now)
	res := l.result(r, prev)
	id := l.officerID
	res.OfficerID = &id
	return res, nil
}

func (l *fakeLifecycle) MarkDuplicate(ctx context.Context, cmd assignment.MarkDuplicateCommand) (*assignment.Result, error) {
	l.duplicateCalls = append(l.duplicateCalls, cmd)
	r, err := l.repo.GetByID(ctx, cmd.ReportID)
	if err != nil {
		return nil, err
	}
	prev := r.Status()
	if err := r.MarkDuplicate(cmd.CanonicalID, cmd.Similarity, cmd.ModelVersion, l.now); err != nil {
		return nil, err
	}
	r.ApplyStatus(vo.StatusDuplicate, l.now)
	if cmd.NeedsReview {
		r.FlagForReview()
	}
	return l.result(r, prev), nil
}

// fakeClassifier answers category and severity questions from fixed
// predictions, telling them apart by the label set it is given.
type fakeClassifier struct {
	category    *Prediction
	severity    *Prediction
	categoryErr error
	severityErr error
	calls       int
}

func (c *fakeClassifier) Classify(ctx context.Context, text string, labels []string) (*Prediction, error) {
	c.calls++
	if slices.Contains(labels, vo.CategoryPothole.String()) {
		return c.category, c.categoryErr
	}
	return c.severity, c.severityErr
}

// fakeEmbedder returns the vector registered for a text, or a unit vector.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0}, nil
}

type recordingMetrics struct {
	outcomes []string
	failures []string
}

func (m *recordingMetrics) ObservePipeline(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) ObserveStageFailure(stage string) {
	m.failures = append(m.failures, stage)
}

type fixture struct {
	now        time.Time
	reports    *mockReportRepository
	officers   *mockOfficerRepository
	lifecycle  *fakeLifecycle
	classifier *fakeClassifier
	embedder   *fakeEmbedder
	metrics    *recordingMetrics
	pipeline   *Pipeline
}

func newFixture(opts Options) *fixture {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		now:      now,
		reports:  &mockReportRepository{reports: make(map[uint]*report.Report)},
		officers: &mockOfficerRepository{},
		classifier: &fakeClassifier{
			category: &Prediction{Label: "pothole", Confidence: 0.95},
			severity: &Prediction{Label: "high", Confidence: 0.90},
		},
		embedder: &fakeEmbedder{vectors: make(map[string][]float64)},
		metrics:  &recordingMetrics{},
	}
	f.lifecycle = &fakeLifecycle{repo: f.reports, now: now, officerID: 11}
	f.addDepartment(3, "Roads & Public Works")
	f.addDepartment(4, "Water Supply")

	f.pipeline = NewPipeline(f.reports, f.officers, f.lifecycle, f.classifier, f.embedder, opts, logger.NewNopLogger())
	f.pipeline.SetClock(func() time.Time { return now })
	f.pipeline.SetMetrics(f.metrics)
	return f
}

func (f *fixture) addDepartment(id uint, name string) {
	d, err := officer.ReconstructDepartment(id, name, "", true, f.now)
	if err != nil {
		panic(err)
	}
	f.officers.departments = append(f.officers.departments, d)
}

type reportOpt func(*report.ReportState)

func withStatus(status vo.ReportStatus) reportOpt {
	return func(s *report.ReportState) { s.Status = status }
}

func withCategory(c vo.Category) reportOpt {
	return func(s *report.ReportState) { s.Category = c }
}

func withLocation(lat, lon float64) reportOpt {
	return func(s *report.ReportState) { s.Location = &report.Location{Latitude: lat, Longitude: lon} }
}

func withTitle(title string) reportOpt {
	return func(s *report.ReportState) { s.Title = title }
}

func withAge(age time.Duration) reportOpt {
	return func(s *report.ReportState) { s.CreatedAt = s.CreatedAt.Add(-age) }
}

func withState(fn func(*report.ReportState)) reportOpt {
	return fn
}

func (f *fixture) addReport(id uint, opts ...reportOpt) *report.Report {
	state := report.ReportState{
		ID:          id,
		Number:      report.FormatNumber("CIV", 2026, "GEN", int64(id), 6),
		SubmitterID: 500,
		Title:       fmt.Sprintf("report %d", id),
		Category:    vo.CategoryOther,
		Status:      vo.StatusReceived,
		Severity:    vo.SeverityMedium,
		Version:     1,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	for _, opt := range opts {
		opt(&state)
	}
	r, err := report.ReconstructReport(state)
	if err != nil {
		panic(err)
	}
	f.reports.reports[id] = r
	return r
}

func (f *fixture) report(id uint) *report.Report {
	return f.reports.reports[id]
}

package monitor

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/domain/escalation"
	escvo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

type mockTxManager struct{}

func (mockTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockTaskRepository struct {
	tasks   map[uint]*report.Task
	updates int
	listErr error
	// afterList runs once the snapshot has been taken
	afterList func()
}

func (m *mockTaskRepository) Create(ctx context.Context, t *report.Task) error {
	m.tasks[t.ID()] = t
	return nil
}

func (m *mockTaskRepository) Update(ctx context.Context, t *report.Task) error {
	m.updates++
	m.tasks[t.ID()] = t
	return nil
}

func (m *mockTaskRepository) UpdateSLAFlags(ctx context.Context, t *report.Task, statuses []vo.TaskStatus) (bool, error) {
	stored, ok := m.tasks[t.ID()]
	if !ok || stored.OfficerID() != t.OfficerID() || !slices.Contains(statuses, stored.Status()) {
		return false, nil
	}
	m.updates++
	return true, nil
}

func (m *mockTaskRepository) GetByReportID(ctx context.Context, reportID uint) (*report.Task, error) {
	for _, t := range m.tasks {
		if t.ReportID() == reportID {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTaskRepository) ListByStatuses(ctx context.Context, statuses []vo.TaskStatus) ([]*report.Task, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*report.Task
	for _, t := range m.tasks {
		for _, s := range statuses {
			if t.Status() == s {
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	if m.afterList != nil {
		m.afterList()
	}
	return out, nil
}

func (m *mockTaskRepository) CountOpenByOfficer(ctx context.Context, officerID uint) (int64, error) {
	return 0, nil
}

func (m *mockTaskRepository) CountResolvedByOfficer(ctx context.Context, officerID uint) (int64, error) {
	return 0, nil
}

func (m *mockTaskRepository) ResolutionDurations(ctx context.Context, officerID uint, since time.Time) ([]time.Duration, error) {
	return nil, nil
}

type mockReportRepository struct {
	reports map[uint]*report.Report
}

func (m *mockReportRepository) Create(ctx context.Context, r *report.Report) error { return nil }
func (m *mockReportRepository) Update(ctx context.Context, r *report.Report) error { return nil }

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
	return nil
}

func (m *mockReportRepository) FindDuplicateCandidates(ctx context.Context, f report.DuplicateFilter) ([]*report.Report, error) {
	return nil, nil
}

func (m *mockReportRepository) ListUnprocessed(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error) {
	return nil, nil
}

type mockEscalationRepository struct {
	escalations []*escalation.Escalation
	createErr   error
}

func (m *mockEscalationRepository) Create(ctx context.Context, e *escalation.Escalation) error {
	if m.createErr != nil {
		return m.createErr
	}
	if err := e.SetID(uint(len(m.escalations) + 1)); err != nil {
		return err
	}
	m.escalations = append(m.escalations, e)
	return nil
}

func (m *mockEscalationRepository) Update(ctx context.Context, e *escalation.Escalation) error {
	return nil
}

func (m *mockEscalationRepository) GetByID(ctx context.Context, id uint) (*escalation.Escalation, error) {
	for _, e := range m.escalations {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, escalation.ErrEscalationNotFound
}

func (m *mockEscalationRepository) HasOpen(ctx context.Context, taskID uint, escType escvo.EscalationType) (bool, error) {
	for _, e := range m.escalations {
		if e.TaskID() != nil && *e.TaskID() == taskID && e.Type() == escType && e.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEscalationRepository) ListOpen(ctx context.Context) ([]*escalation.Escalation, error) {
	var out []*escalation.Escalation
	for _, e := range m.escalations {
		if e.IsOpen() {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockOfficerRepository struct {
	byRole map[officer.Role][]*officer.Officer
}

func (m *mockOfficerRepository) GetOfficer(ctx context.Context, id uint) (*officer.Officer, error) {
	return nil, officer.ErrOfficerNotFound
}

func (m *mockOfficerRepository) GetDepartment(ctx context.Context, id uint) (*officer.Department, error) {
	return nil, officer.ErrDepartmentNotFound
}

func (m *mockOfficerRepository) ListActiveOfficers(ctx context.Context, departmentID uint) ([]*officer.Officer, error) {
	return nil, nil
}

func (m *mockOfficerRepository) ListActiveDepartments(ctx context.Context) ([]*officer.Department, error) {
	return nil, nil
}

func (m *mockOfficerRepository) ListByRole(ctx context.Context, role officer.Role) ([]*officer.Officer, error) {
	return m.byRole[role], nil
}

type mockNotifier struct {
	sent []assignment.Notification
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, n assignment.Notification) error {
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockNotifier) ofType(notificationType string) []assignment.Notification {
	var out []assignment.Notification
	for _, n := range m.sent {
		if n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out
}

type mockAudit struct {
	events []events.AuditEvent
}

func (m *mockAudit) Publish(ctx context.Context, e events.AuditEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *mockAudit) actions() []string {
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Action
	}
	return out
}

type recordingMetrics struct {
	escalations []string
	slaEvents   []string
}

func (m *recordingMetrics) ObserveEscalation(t string) { m.escalations = append(m.escalations, t) }
func (m *recordingMetrics) ObserveSLAEvent(e string)   { m.slaEvents = append(m.slaEvents, e) }

const (
	officerID = uint(20)
	adminID   = uint(900)
)

type fixture struct {
	now         time.Time
	tasks       *mockTaskRepository
	reports     *mockReportRepository
	escalations *mockEscalationRepository
	officers    *mockOfficerRepository
	notifier    *mockNotifier
	audit       *mockAudit
	metrics     *recordingMetrics
	sla         *SLAMonitor
	stale       *StaleMonitor
}

func newFixture() *fixture {
	f := &fixture{
		now:         time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC),
		tasks:       &mockTaskRepository{tasks: make(map[uint]*report.Task)},
		reports:     &mockReportRepository{reports: make(map[uint]*report.Report)},
		escalations: &mockEscalationRepository{},
		officers:    &mockOfficerRepository{byRole: make(map[officer.Role][]*officer.Officer)},
		notifier:    &mockNotifier{},
		audit:       &mockAudit{},
		metrics:     &recordingMetrics{},
	}
	admin, err := officer.ReconstructOfficer(adminID, "admin", "", officer.RoleAdmin, nil, true, f.now)
	if err != nil {
		panic(err)
	}
	f.officers.byRole[officer.RoleAdmin] = []*officer.Officer{admin}

	log := logger.NewNopLogger()
	clock := func() time.Time { return f.now }
	f.sla = NewSLAMonitor(mockTxManager{}, f.tasks, f.reports, f.escalations, f.officers, f.notifier, f.audit,
		WarningPolicy{Fraction: 0.2, Min: 2 * time.Hour}, log)
	f.sla.SetClock(clock)
	f.sla.SetMetrics(f.metrics)
	f.stale = NewStaleMonitor(mockTxManager{}, f.tasks, f.escalations, f.officers, f.notifier, f.audit, log)
	f.stale.SetClock(clock)
	f.stale.SetMetrics(f.metrics)
	return f
}

func (f *fixture) addReport(id uint, severity vo.Severity) *report.Report {
	r, err := report.ReconstructReport(report.ReportState{
		ID:          id,
		Number:      report.FormatNumber("CIV", 2026, "GEN", int64(id), 6),
		SubmitterID: 500,
		Title:       fmt.Sprintf("report %d", id),
		Category:    vo.CategoryPothole,
		Status:      vo.StatusAssignedToOfficer,
		Severity:    severity,
		Version:     1,
		CreatedAt:   f.now.Add(-30 * day),
		UpdatedAt:   f.now,
	})
	if err != nil {
		panic(err)
	}
	f.reports.reports[id] = r
	return r
}

type taskOpt func(*report.TaskState)

func withDeadline(d time.Time) taskOpt {
	return func(s *report.TaskState) { s.SLADeadline = &d }
}

func withViolated() taskOpt {
	return func(s *report.TaskState) { s.SLAViolated = true }
}

// addTask creates task id for report id, assigned ago and in status since
// the same moment.
func (f *fixture) addTask(id uint, status vo.TaskStatus, ago time.Duration, opts ...taskOpt) *report.Task {
	at := f.now.Add(-ago)
	state := report.TaskState{
		ID:              id,
		ReportID:        id,
		OfficerID:       officerID,
		AssignedBy:      officer.AutomationActorID,
		Status:          status,
		Priority:        5,
		AssignedAt:      at,
		StatusChangedAt: at,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	for _, opt := range opts {
		opt(&state)
	}
	t, err := report.ReconstructTask(state)
	if err != nil {
		panic(err)
	}
	f.tasks.tasks[id] = t
	return t
}

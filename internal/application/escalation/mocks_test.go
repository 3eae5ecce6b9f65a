package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/internal/application/assignment"
	escdomain "github.com/civictrack/civictrack/internal/domain/escalation"
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

type mockEscalationRepository struct {
	escalations []*escdomain.Escalation
	updates     int
	listErr     error
}

func (m *mockEscalationRepository) Create(ctx context.Context, e *escdomain.Escalation) error {
	if err := e.SetID(uint(len(m.escalations) + 1)); err != nil {
		return err
	}
	m.escalations = append(m.escalations, e)
	return nil
}

func (m *mockEscalationRepository) Update(ctx context.Context, e *escdomain.Escalation) error {
	m.updates++
	return nil
}

func (m *mockEscalationRepository) GetByID(ctx context.Context, id uint) (*escdomain.Escalation, error) {
	for _, e := range m.escalations {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("escalation %d: %w", id, escdomain.ErrEscalationNotFound)
}

func (m *mockEscalationRepository) HasOpen(ctx context.Context, taskID uint, escType escvo.EscalationType) (bool, error) {
	for _, e := range m.escalations {
		if e.TaskID() != nil && *e.TaskID() == taskID && e.Type() == escType && e.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEscalationRepository) ListOpen(ctx context.Context) ([]*escdomain.Escalation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*escdomain.Escalation
	for _, e := range m.escalations {
		if e.IsOpen() {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockReportRepository struct {
	GetByIDFunc func(ctx context.Context, id uint) (*report.Report, error)
}

func (m *mockReportRepository) Create(ctx context.Context, r *report.Report) error { return nil }
func (m *mockReportRepository) Update(ctx context.Context, r *report.Report) error { return nil }

func (m *mockReportRepository) GetByID(ctx context.Context, id uint) (*report.Report, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, report.ErrReportNotFound
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

type mockTaskRepository struct {
	GetByReportIDFunc func(ctx context.Context, reportID uint) (*report.Task, error)
}

func (m *mockTaskRepository) Create(ctx context.Context, t *report.Task) error { return nil }
func (m *mockTaskRepository) Update(ctx context.Context, t *report.Task) error { return nil }

func (m *mockTaskRepository) UpdateSLAFlags(ctx context.Context, t *report.Task, statuses []vo.TaskStatus) (bool, error) {
	return true, nil
}

func (m *mockTaskRepository) GetByReportID(ctx context.Context, reportID uint) (*report.Task, error) {
	if m.GetByReportIDFunc != nil {
		return m.GetByReportIDFunc(ctx, reportID)
	}
	return nil, nil
}

func (m *mockTaskRepository) ListByStatuses(ctx context.Context, statuses []vo.TaskStatus) ([]*report.Task, error) {
	return nil, nil
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

type mockOfficerRepository struct {
	officers map[uint]*officer.Officer
}

func (m *mockOfficerRepository) GetOfficer(ctx context.Context, id uint) (*officer.Officer, error) {
	if o, ok := m.officers[id]; ok {
		return o, nil
	}
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
	var out []*officer.Officer
	for _, o := range m.officers {
		if o.Role() == role {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockNotifier struct {
	sent []assignment.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n assignment.Notification) error {
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) recipients() []uint {
	out := make([]uint, len(m.sent))
	for i, n := range m.sent {
		out[i] = n.UserID
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

const (
	adminID     = uint(900)
	officerID   = uint(20)
	citizenDesk = uint(30)
	inactiveID  = uint(40)
	reportID    = uint(7)
	taskID      = uint(70)
)

type fixture struct {
	now         time.Time
	escalations *mockEscalationRepository
	reports     *mockReportRepository
	tasks       *mockTaskRepository
	officers    *mockOfficerRepository
	notifier    *mockNotifier
	audit       *mockAudit
	svc         *Service
}

func newFixture() *fixture {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		now:         now,
		escalations: &mockEscalationRepository{},
		reports:     &mockReportRepository{},
		tasks:       &mockTaskRepository{},
		officers:    &mockOfficerRepository{officers: make(map[uint]*officer.Officer)},
		notifier:    &mockNotifier{},
		audit:       &mockAudit{},
	}
	f.addOfficer(adminID, officer.RoleAdmin, true)
	f.addOfficer(officerID, officer.RoleOfficer, true)
	f.addOfficer(citizenDesk, officer.RoleOfficer, true)
	f.addOfficer(inactiveID, officer.RoleOfficer, false)
	f.addOfficer(officer.AutomationActorID, officer.RoleSystem, true)

	r, err := report.ReconstructReport(report.ReportState{
		ID:          reportID,
		Number:      report.FormatNumber("CIV", 2026, "GEN", int64(reportID), 6),
		SubmitterID: 500,
		Title:       "broken streetlight",
		Category:    vo.CategoryStreetlight,
		Status:      vo.StatusAssignedToOfficer,
		Severity:    vo.SeverityHigh,
		Version:     1,
		CreatedAt:   now.Add(-48 * time.Hour),
		UpdatedAt:   now,
	})
	if err != nil {
		panic(err)
	}
	f.reports.GetByIDFunc = func(ctx context.Context, id uint) (*report.Report, error) {
		if id == reportID {
			return r, nil
		}
		return nil, report.ErrReportNotFound
	}

	f.svc = NewService(mockTxManager{}, f.escalations, f.reports, f.tasks, f.officers,
		f.notifier, f.audit, logger.NewNopLogger())
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addOfficer(id uint, role officer.Role, active bool) {
	o, err := officer.ReconstructOfficer(id, fmt.Sprintf("officer %d", id), "", role, nil, active, f.now)
	if err != nil {
		panic(err)
	}
	f.officers.officers[id] = o
}

func (f *fixture) withTask() {
	at := f.now.Add(-24 * time.Hour)
	t, err := report.ReconstructTask(report.TaskState{
		ID:              taskID,
		ReportID:        reportID,
		OfficerID:       officerID,
		AssignedBy:      adminID,
		Status:          vo.TaskInProgress,
		Priority:        6,
		AssignedAt:      at,
		StatusChangedAt: at,
		CreatedAt:       at,
		UpdatedAt:       at,
	})
	if err != nil {
		panic(err)
	}
	f.tasks.GetByReportIDFunc = func(ctx context.Context, id uint) (*report.Task, error) {
		if id == reportID {
			return t, nil
		}
		return nil, nil
	}
}

package assignment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/civictrack/civictrack/internal/domain/officer"
	"github.com/civictrack/civictrack/internal/domain/report"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/domain/shared/events"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockReportRepository struct {
	CreateFunc                  func(ctx context.Context, r *report.Report) error
	UpdateFunc                  func(ctx context.Context, r *report.Report) error
	GetByIDFunc                 func(ctx context.Context, id uint) (*report.Report, error)
	GetByIDForUpdateFunc        func(ctx context.Context, id uint) (*report.Report, error)
	UpdateClassificationFunc    func(ctx context.Context, r *report.Report) error
	FindDuplicateCandidatesFunc func(ctx context.Context, f report.DuplicateFilter) ([]*report.Report, error)
	ListUnprocessedFunc         func(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error)
}

func (m *mockReportRepository) Create(ctx context.Context, r *report.Report) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	return nil
}

func (m *mockReportRepository) Update(ctx context.Context, r *report.Report) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, r)
	}
	return nil
}

func (m *mockReportRepository) GetByID(ctx context.Context, id uint) (*report.Report, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, report.ErrReportNotFound
}

func (m *mockReportRepository) GetByIDForUpdate(ctx context.Context, id uint) (*report.Report, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *mockReportRepository) UpdateClassification(ctx context.Context, r *report.Report) error {
	if m.UpdateClassificationFunc != nil {
		return m.UpdateClassificationFunc(ctx, r)
	}
	return nil
}

func (m *mockReportRepository) FindDuplicateCandidates(ctx context.Context, f report.DuplicateFilter) ([]*report.Report, error) {
	if m.FindDuplicateCandidatesFunc != nil {
		return m.FindDuplicateCandidatesFunc(ctx, f)
	}
	return nil, nil
}

func (m *mockReportRepository) ListUnprocessed(ctx context.Context, createdBefore time.Time, limit int) ([]uint, error) {
	if m.ListUnprocessedFunc != nil {
		return m.ListUnprocessedFunc(ctx, createdBefore, limit)
	}
	return nil, nil
}

type mockTaskRepository struct {
	CreateFunc                 func(ctx context.Context, t *report.Task) error
	UpdateFunc                 func(ctx context.Context, t *report.Task) error
	GetByReportIDFunc          func(ctx context.Context, reportID uint) (*report.Task, error)
	ListByStatusesFunc         func(ctx context.Context, statuses []vo.TaskStatus) ([]*report.Task, error)
	CountOpenByOfficerFunc     func(ctx context.Context, officerID uint) (int64, error)
	CountResolvedByOfficerFunc func(ctx context.Context, officerID uint) (int64, error)
	ResolutionDurationsFunc    func(ctx context.Context, officerID uint, since time.Time) ([]time.Duration, error)
}

func (m *mockTaskRepository) Create(ctx context.Context, t *report.Task) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	return nil
}

func (m *mockTaskRepository) Update(ctx context.Context, t *report.Task) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, t)
	}
	return nil
}

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
	if m.ListByStatusesFunc != nil {
		return m.ListByStatusesFunc(ctx, statuses)
	}
	return nil, nil
}

func (m *mockTaskRepository) CountOpenByOfficer(ctx context.Context, officerID uint) (int64, error) {
	if m.CountOpenByOfficerFunc != nil {
		return m.CountOpenByOfficerFunc(ctx, officerID)
	}
	return 0, nil
}

func (m *mockTaskRepository) CountResolvedByOfficer(ctx context.Context, officerID uint) (int64, error) {
	if m.CountResolvedByOfficerFunc != nil {
		return m.CountResolvedByOfficerFunc(ctx, officerID)
	}
	return 0, nil
}

func (m *mockTaskRepository) ResolutionDurations(ctx context.Context, officerID uint, since time.Time) ([]time.Duration, error) {
	if m.ResolutionDurationsFunc != nil {
		return m.ResolutionDurationsFunc(ctx, officerID, since)
	}
	return nil, nil
}

type mockHistoryRepository struct {
	AppendFunc       func(ctx context.Context, h *report.StatusHistory) error
	ListByReportFunc func(ctx context.Context, reportID uint) ([]*report.StatusHistory, error)
}

func (m *mockHistoryRepository) Append(ctx context.Context, h *report.StatusHistory) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, h)
	}
	return nil
}

func (m *mockHistoryRepository) ListByReport(ctx context.Context, reportID uint) ([]*report.StatusHistory, error) {
	if m.ListByReportFunc != nil {
		return m.ListByReportFunc(ctx, reportID)
	}
	return nil, nil
}

type mockOfficerRepository struct {
	GetOfficerFunc            func(ctx context.Context, id uint) (*officer.Officer, error)
	GetDepartmentFunc         func(ctx context.Context, id uint) (*officer.Department, error)
	ListActiveOfficersFunc    func(ctx context.Context, departmentID uint) ([]*officer.Officer, error)
	ListActiveDepartmentsFunc func(ctx context.Context) ([]*officer.Department, error)
	ListByRoleFunc            func(ctx context.Context, role officer.Role) ([]*officer.Officer, error)
}

func (m *mockOfficerRepository) GetOfficer(ctx context.Context, id uint) (*officer.Officer, error) {
	if m.GetOfficerFunc != nil {
		return m.GetOfficerFunc(ctx, id)
	}
	return nil, officer.ErrOfficerNotFound
}

func (m *mockOfficerRepository) GetDepartment(ctx context.Context, id uint) (*officer.Department, error) {
	if m.GetDepartmentFunc != nil {
		return m.GetDepartmentFunc(ctx, id)
	}
	return nil, officer.ErrDepartmentNotFound
}

func (m *mockOfficerRepository) ListActiveOfficers(ctx context.Context, departmentID uint) ([]*officer.Officer, error) {
	if m.ListActiveOfficersFunc != nil {
		return m.ListActiveOfficersFunc(ctx, departmentID)
	}
	return nil, nil
}

func (m *mockOfficerRepository) ListActiveDepartments(ctx context.Context) ([]*officer.Department, error) {
	if m.ListActiveDepartmentsFunc != nil {
		return m.ListActiveDepartmentsFunc(ctx)
	}
	return nil, nil
}

func (m *mockOfficerRepository) ListByRole(ctx context.Context, role officer.Role) ([]*officer.Officer, error) {
	if m.ListByRoleFunc != nil {
		return m.ListByRoleFunc(ctx, role)
	}
	return nil, nil
}

type mockAuditPublisher struct {
	mu     sync.Mutex
	events []events.AuditEvent
	err    error
}

func (m *mockAuditPublisher) Publish(ctx context.Context, e events.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

type mockLocker struct {
	acquired []string
	released []string
	err      error
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.acquired = append(m.acquired, key)
	return func(context.Context) error {
		m.released = append(m.released, key)
		return nil
	}, nil
}

type mockCursor struct {
	values map[uint]int64
	err    error
}

func (m *mockCursor) Next(ctx context.Context, departmentID uint) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.values == nil {
		m.values = make(map[uint]int64)
	}
	m.values[departmentID]++
	return m.values[departmentID], nil
}

// fixture wires func-field mocks to in-memory maps so multi-step flows can be
// exercised end to end.
type fixture struct {
	now         time.Time
	reports     map[uint]*report.Report
	tasks       map[uint]*report.Task
	history     []*report.StatusHistory
	officers    map[uint]*officer.Officer
	departments map[uint]*officer.Department
	durations   map[uint][]time.Duration
	nextTaskID  uint

	tx          *mockTxManager
	reportRepo  *mockReportRepository
	taskRepo    *mockTaskRepository
	historyRepo *mockHistoryRepository
	officerRepo *mockOfficerRepository
	audit       *mockAuditPublisher
	notifier    *mockNotifier
	balancer    *WorkloadBalancer
	svc         *Service
}

func newFixture() *fixture {
	f := &fixture{
		now:         time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC),
		reports:     make(map[uint]*report.Report),
		tasks:       make(map[uint]*report.Task),
		officers:    make(map[uint]*officer.Officer),
		departments: make(map[uint]*officer.Department),
		durations:   make(map[uint][]time.Duration),
		nextTaskID:  100,
		tx:          &mockTxManager{},
		audit:       &mockAuditPublisher{},
		notifier:    &mockNotifier{},
	}

	f.reportRepo = &mockReportRepository{
		GetByIDFunc: func(ctx context.Context, id uint) (*report.Report, error) {
			r, ok := f.reports[id]
			if !ok {
				return nil, fmt.Errorf("report %d: %w", id, report.ErrReportNotFound)
			}
			return r, nil
		},
		UpdateFunc: func(ctx context.Context, r *report.Report) error {
			f.reports[r.ID()] = r
			return nil
		},
	}
	f.taskRepo = &mockTaskRepository{
		CreateFunc: func(ctx context.Context, t *report.Task) error {
			f.nextTaskID++
			if err := t.SetID(f.nextTaskID); err != nil {
				return err
			}
			f.tasks[t.ReportID()] = t
			return nil
		},
		UpdateFunc: func(ctx context.Context, t *report.Task) error {
			f.tasks[t.ReportID()] = t
			return nil
		},
		GetByReportIDFunc: func(ctx context.Context, reportID uint) (*report.Task, error) {
			return f.tasks[reportID], nil
		},
		ListByStatusesFunc: func(ctx context.Context, statuses []vo.TaskStatus) ([]*report.Task, error) {
			var out []*report.Task
			for _, t := range f.tasks {
				for _, s := range statuses {
					if t.Status() == s {
						out = append(out, t)
					}
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
			return out, nil
		},
		CountOpenByOfficerFunc: func(ctx context.Context, officerID uint) (int64, error) {
			var n int64
			for _, t := range f.tasks {
				if t.OfficerID() == officerID && t.IsOpen() {
					n++
				}
			}
			return n, nil
		},
		CountResolvedByOfficerFunc: func(ctx context.Context, officerID uint) (int64, error) {
			var n int64
			for _, t := range f.tasks {
				if t.OfficerID() == officerID && t.Status() == vo.TaskResolved {
					n++
				}
			}
			return n, nil
		},
		ResolutionDurationsFunc: func(ctx context.Context, officerID uint, since time.Time) ([]time.Duration, error) {
			return f.durations[officerID], nil
		},
	}
	f.historyRepo = &mockHistoryRepository{
		AppendFunc: func(ctx context.Context, h *report.StatusHistory) error {
			h.SetID(uint(len(f.history) + 1))
			f.history = append(f.history, h)
			return nil
		},
	}
	f.officerRepo = &mockOfficerRepository{
		GetOfficerFunc: func(ctx context.Context, id uint) (*officer.Officer, error) {
			o, ok := f.officers[id]
			if !ok {
				return nil, officer.ErrOfficerNotFound
			}
			return o, nil
		},
		GetDepartmentFunc: func(ctx context.Context, id uint) (*officer.Department, error) {
			d, ok := f.departments[id]
			if !ok {
				return nil, officer.ErrDepartmentNotFound
			}
			return d, nil
		},
		ListActiveOfficersFunc: func(ctx context.Context, departmentID uint) ([]*officer.Officer, error) {
			var out []*officer.Officer
			for _, o := range f.officers {
				if o.IsActive() && o.BelongsTo(departmentID) {
					out = append(out, o)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
			return out, nil
		},
	}

	log := logger.NewNopLogger()
	f.balancer = NewWorkloadBalancer(f.taskRepo, f.officerRepo, log)
	f.balancer.SetClock(func() time.Time { return f.now })
	f.svc = NewService(f.tx, f.reportRepo, f.taskRepo, f.historyRepo, f.officerRepo, f.balancer, f.audit, f.notifier, log)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addDepartment(id uint, name string) {
	d, err := officer.ReconstructDepartment(id, name, "", true, f.now)
	if err != nil {
		panic(err)
	}
	f.departments[id] = d
}

func (f *fixture) addOfficer(id uint, departmentID uint) *officer.Officer {
	dept := departmentID
	o, err := officer.ReconstructOfficer(id, fmt.Sprintf("officer-%d", id), "", officer.RoleOfficer, &dept, true, f.now)
	if err != nil {
		panic(err)
	}
	f.officers[id] = o
	return o
}

type reportOpt func(*report.ReportState)

func withDepartment(id uint) reportOpt {
	return func(s *report.ReportState) { s.DepartmentID = &id }
}

func withStatus(status vo.ReportStatus) reportOpt {
	return func(s *report.ReportState) { s.Status = status }
}

func withSeverity(sev vo.Severity) reportOpt {
	return func(s *report.ReportState) { s.Severity = sev }
}

func withAge(age time.Duration) reportOpt {
	return func(s *report.ReportState) { s.CreatedAt = s.CreatedAt.Add(-age) }
}

func (f *fixture) addReport(id uint, opts ...reportOpt) *report.Report {
	state := report.ReportState{
		ID:          id,
		Number:      report.FormatNumber("CIV", 2026, "GEN", int64(id), 6),
		SubmitterID: 500,
		Title:       fmt.Sprintf("report %d", id),
		Category:    vo.CategoryPothole,
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
	f.reports[id] = r
	return r
}

// addTask attaches an open task to officerID for reportID.
func (f *fixture) addTask(reportID, officerID uint, status vo.TaskStatus) *report.Task {
	f.nextTaskID++
	t, err := report.ReconstructTask(report.TaskState{
		ID:              f.nextTaskID,
		ReportID:        reportID,
		OfficerID:       officerID,
		AssignedBy:      officer.AutomationActorID,
		Status:          status,
		Priority:        5,
		AssignedAt:      f.now,
		StatusChangedAt: f.now,
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	})
	if err != nil {
		panic(err)
	}
	f.tasks[reportID] = t
	return t
}

func (f *fixture) historyFor(reportID uint) []*report.StatusHistory {
	var out []*report.StatusHistory
	for _, h := range f.history {
		if h.ReportID() == reportID {
			out = append(out, h)
		}
	}
	return out
}

package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/civictrack/civictrack/internal/domain/report"
	"github.com/civictrack/civictrack/internal/domain/shared/events"
)

type mockTxManager struct{}

func (m *mockTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockReportRepository struct {
	CreateFunc func(ctx context.Context, r *report.Report) error
}

func (m *mockReportRepository) Create(ctx context.Context, r *report.Report) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	return nil
}

func (m *mockReportRepository) Update(ctx context.Context, r *report.Report) error {
	return nil
}

func (m *mockReportRepository) GetByID(ctx context.Context, id uint) (*report.Report, error) {
	return nil, report.ErrReportNotFound
}

func (m *mockReportRepository) GetByIDForUpdate(ctx context.Context, id uint) (*report.Report, error) {
	return nil, report.ErrReportNotFound
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

type mockHistoryRepository struct {
	rows []*report.StatusHistory
}

func (m *mockHistoryRepository) Append(ctx context.Context, h *report.StatusHistory) error {
	m.rows = append(m.rows, h)
	return nil
}

func (m *mockHistoryRepository) ListByReport(ctx context.Context, reportID uint) ([]*report.StatusHistory, error) {
	return m.rows, nil
}

// memoryCounter is a process-local SequenceCounter.
type memoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func (c *memoryCounter) Increment(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]int64)
	}
	c.values[key]++
	return c.values[key], nil
}

type mockQueue struct {
	ids []uint
	err error
}

func (m *mockQueue) Enqueue(ctx context.Context, reportID uint) error {
	if m.err != nil {
		return m.err
	}
	m.ids = append(m.ids, reportID)
	return nil
}

type mockAudit struct {
	events []events.AuditEvent
}

func (m *mockAudit) Publish(ctx context.Context, e events.AuditEvent) error {
	m.events = append(m.events, e)
	return nil
}

// uniqueNumbers emulates the unique index on report numbers.
type uniqueNumbers struct {
	mu     sync.Mutex
	taken  map[string]bool
	nextID uint
}

func (u *uniqueNumbers) create(ctx context.Context, r *report.Report) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.taken == nil {
		u.taken = make(map[string]bool)
	}
	if u.taken[r.Number()] {
		return fmt.Errorf("Error 1062 (23000): Duplicate entry '%s' for key 'idx_report_number'", r.Number())
	}
	u.taken[r.Number()] = true
	u.nextID++
	return r.SetID(u.nextID)
}

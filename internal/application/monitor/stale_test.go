package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civictrack/civictrack/internal/application/assignment"
	escvo "github.com/civictrack/civictrack/internal/domain/escalation/valueobjects"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

func TestMatchStaleRule(t *testing.T) {
	rules := DefaultStaleRules()

	tests := []struct {
		name     string
		status   vo.TaskStatus
		age      time.Duration
		stale    bool
		escType  escvo.EscalationType
		severity vo.Severity
	}{
		{"fresh assignment", vo.TaskAssigned, 6 * day, false, "", ""},
		{"unacknowledged", vo.TaskAssigned, 8 * day, true, escvo.TypeStaleUnacknowledged, vo.SeverityMedium},
		{"acknowledged at threshold", vo.TaskAcknowledged, 10 * day, false, "", ""},
		{"not started", vo.TaskAcknowledged, 11 * day, true, escvo.TypeStaleNotStarted, vo.SeverityMedium},
		{"in progress two weeks", vo.TaskInProgress, 15 * day, true, escvo.TypeStaleInProgress, vo.SeverityHigh},
		{"in progress three weeks", vo.TaskInProgress, 22 * day, true, escvo.TypeStaleInProgress, vo.SeverityCritical},
		{"on hold a month", vo.TaskOnHold, 31 * day, true, escvo.TypeStaleOnHold, vo.SeverityMedium},
		{"on hold six weeks", vo.TaskOnHold, 46 * day, true, escvo.TypeStaleOnHold, vo.SeverityHigh},
		{"on hold recently", vo.TaskOnHold, 29 * day, false, "", ""},
		{"resolved", vo.TaskResolved, 100 * day, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := MatchStaleRule(rules, tt.status, tt.age)
			assert.Equal(t, tt.stale, ok)
			if !tt.stale {
				return
			}
			assert.Equal(t, tt.escType, rule.Type)
			assert.Equal(t, tt.severity, rule.Severity)
		})
	}
}

func TestStaleMonitor_Execute(t *testing.T) {
	f := newFixture()
	f.addTask(1, vo.TaskAssigned, 8*day)
	f.addTask(2, vo.TaskAssigned, 6*day)
	f.addTask(3, vo.TaskAcknowledged, 11*day)
	f.addTask(4, vo.TaskInProgress, 15*day)
	f.addTask(5, vo.TaskInProgress, 22*day)
	f.addTask(6, vo.TaskOnHold, 31*day)
	f.addTask(7, vo.TaskOnHold, 46*day)
	f.addTask(8, vo.TaskResolved, 100*day)

	n, err := f.stale.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	got := make(map[uint]vo.Severity)
	for _, esc := range f.escalations.escalations {
		require.NotNil(t, esc.TaskID())
		got[*esc.TaskID()] = esc.Severity()
		assert.True(t, esc.SystemRaised())
	}
	assert.Equal(t, map[uint]vo.Severity{
		1: vo.SeverityMedium,
		3: vo.SeverityMedium,
		4: vo.SeverityHigh,
		5: vo.SeverityCritical,
		6: vo.SeverityMedium,
		7: vo.SeverityHigh,
	}, got)
	assert.Len(t, f.notifier.ofType(assignment.NotificationEscalation), 12)
	assert.Len(t, f.metrics.escalations, 6)

	n, err = f.stale.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.escalations.escalations, 6)
}

func TestStaleMonitor_MeasuresFromStatusChange(t *testing.T) {
	f := newFixture()
	// acknowledged long ago, started two days ago
	f.addTask(1, vo.TaskAcknowledged, 40*day)
	require.NoError(t, f.tasks.tasks[1].ApplyStatus(vo.TaskInProgress, f.now.Add(-2*day)))

	n, err := f.stale.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStaleMonitor_CreateFailureContinues(t *testing.T) {
	f := newFixture()
	f.escalations.createErr = assert.AnError
	f.addTask(1, vo.TaskAssigned, 8*day)
	f.addTask(2, vo.TaskAssigned, 9*day)

	n, err := f.stale.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.notifier.sent)
}

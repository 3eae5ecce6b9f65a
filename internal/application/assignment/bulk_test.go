package assignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
)

func TestBulkUpdateStatus_RejectRequiresTask(t *testing.T) {
	f := newFixture()
	f.addReport(1, withStatus(vo.StatusReceived))
	f.addReport(2, withStatus(vo.StatusReceived))
	f.addReport(3, withDepartment(3), withStatus(vo.StatusInProgress))
	f.addTask(3, 10, vo.TaskInProgress)
	f.addReport(4, withStatus(vo.StatusClassified))

	res := f.svc.BulkUpdateStatus(context.Background(), BulkUpdateStatusCommand{
		ReportIDs: []uint{1, 2, 3, 4},
		Status:    vo.StatusRejected,
		ActorID:   actorID,
	})

	// 1, 2 and 4 have no task, rejecting requires one; only 3 passes
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, []uint{3}, res.SuccessfulIDs)
	assert.ElementsMatch(t, []uint{1, 2, 4}, res.FailedIDs)
}

func TestBulkUpdateStatus_PartialSuccess(t *testing.T) {
	f := newFixture()
	f.addReport(1, withStatus(vo.StatusReceived))
	f.addReport(2, withStatus(vo.StatusClassified))
	f.addReport(3, withStatus(vo.StatusClosed))

	res := f.svc.BulkUpdateStatus(context.Background(), BulkUpdateStatusCommand{
		ReportIDs: []uint{1, 2, 3},
		Status:    vo.StatusOnHold,
		ActorID:   actorID,
		Notes:     "storm backlog",
	})

	assert.Equal(t, res.Total-1, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []uint{3}, res.FailedIDs)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, uint(3), res.Errors[0].ReportID)
	assert.Contains(t, res.Errors[0].Error, "closed")
	assert.Equal(t, vo.StatusOnHold, f.reports[1].Status())
	assert.Equal(t, vo.StatusOnHold, f.reports[2].Status())
	assert.Equal(t, vo.StatusClosed, f.reports[3].Status())
	assert.Len(t, f.history, 2)
}

func TestBulkUpdateStatus_UnknownReport(t *testing.T) {
	f := newFixture()
	f.addReport(1)

	res := f.svc.BulkUpdateStatus(context.Background(), BulkUpdateStatusCommand{
		ReportIDs: []uint{1, 99},
		Status:    vo.StatusPendingClassification,
		ActorID:   actorID,
	})

	assert.Equal(t, []uint{1}, res.SuccessfulIDs)
	assert.Equal(t, []uint{99}, res.FailedIDs)
}

func TestBulkUpdateStatus_InvalidTargetFailsEveryRow(t *testing.T) {
	f := newFixture()
	f.addReport(1)
	f.addReport(2)

	res := f.svc.BulkUpdateStatus(context.Background(), BulkUpdateStatusCommand{
		ReportIDs: []uint{1, 2},
		Status:    vo.ReportStatus("nope"),
		ActorID:   actorID,
	})

	assert.Equal(t, 0, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.Empty(t, f.history)
}

func TestBulkAssignDepartment(t *testing.T) {
	f := newFixture()
	f.addDepartment(3, "Roads")
	f.addReport(1)
	f.addReport(2, withStatus(vo.StatusRejected))
	f.addReport(3, withStatus(vo.StatusClassified))

	res := f.svc.BulkAssignDepartment(context.Background(), BulkAssignDepartmentCommand{
		ReportIDs:    []uint{1, 2, 3},
		DepartmentID: 3,
		ActorID:      actorID,
	})

	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, []uint{1, 3}, res.SuccessfulIDs)
	assert.Equal(t, []uint{2}, res.FailedIDs)
	assert.Equal(t, vo.StatusAssignedToDepartment, f.reports[3].Status())
}

func TestBulkAssignOfficer(t *testing.T) {
	f := newFixture()
	f.addDepartment(3, "Roads")
	f.addDepartment(4, "Water")
	f.addOfficer(10, 3)
	f.addReport(1, withDepartment(3), withStatus(vo.StatusAssignedToDepartment))
	f.addReport(2, withDepartment(4), withStatus(vo.StatusAssignedToDepartment))
	f.addReport(3)

	res := f.svc.BulkAssignOfficer(context.Background(), BulkAssignOfficerCommand{
		ReportIDs:  []uint{1, 2, 3},
		OfficerID:  10,
		AssignerID: actorID,
	})

	assert.Equal(t, []uint{1}, res.SuccessfulIDs)
	assert.Equal(t, []uint{2, 3}, res.FailedIDs)
	assert.Equal(t, uint(10), f.tasks[1].OfficerID())
}

func TestBulkAutoAssignOfficers_RoundRobin(t *testing.T) {
	f := newFixture()
	f.addDepartment(3, "Roads")
	f.addOfficer(10, 3)
	f.addOfficer(11, 3)
	f.balancer.SetRoundRobinCursor(&mockCursor{})
	for id := uint(1); id <= 3; id++ {
		f.addReport(id, withDepartment(3), withStatus(vo.StatusAssignedToDepartment))
	}

	res := f.svc.BulkAutoAssignOfficers(context.Background(), BulkAutoAssignCommand{
		ReportIDs:  []uint{1, 2, 3},
		AssignerID: actorID,
		Strategy:   StrategyRoundRobin,
	})

	require.Equal(t, 3, res.Successful)
	assert.Equal(t, uint(10), f.tasks[1].OfficerID())
	assert.Equal(t, uint(11), f.tasks[2].OfficerID())
	assert.Equal(t, uint(10), f.tasks[3].OfficerID())
}

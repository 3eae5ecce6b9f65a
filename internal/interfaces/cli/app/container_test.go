package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/civictrack/civictrack/internal/application/escalation"
	"github.com/civictrack/civictrack/internal/application/intake"
	"github.com/civictrack/civictrack/internal/domain/officer"
	vo "github.com/civictrack/civictrack/internal/domain/report/valueobjects"
	"github.com/civictrack/civictrack/internal/infrastructure/config"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/migrations"
	"github.com/civictrack/civictrack/internal/infrastructure/persistence/seeds"
	"github.com/civictrack/civictrack/internal/infrastructure/queue"
	sharedConfig "github.com/civictrack/civictrack/internal/shared/config"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

func setupContainer(t *testing.T) *Container {
	t.Setenv("ANTHROPIC_API_KEY", "")
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migrations.MigrateAll(gdb))
	require.NoError(t, seeds.SeedAutomationActor(gdb))
	require.NoError(t, seeds.SeedDepartments(gdb))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(mr.Close)

	cfg := &config.Config{
		Numbering: sharedConfig.NumberingConfig{Prefix: "CIV", CityCode: "BLR", PadWidth: 6},
		Classification: sharedConfig.ClassificationConfig{
			DuplicateDetection: true,
			ModelVersion:       "test",
		},
		Worker: sharedConfig.WorkerConfig{Concurrency: 1, PollTimeout: 50 * time.Millisecond},
	}
	c, err := NewContainer(cfg, gdb, client, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func TestContainer_IntakeToPipeline(t *testing.T) {
	c := setupContainer(t)
	ctx := context.Background()

	created, err := c.Intake.Execute(ctx, intake.CreateReportCommand{
		SubmitterID: 500,
		Title:       "Pothole on MG Road",
		Description: "Large pothole near the metro station",
		Category:    "pothole",
	})
	require.NoError(t, err)
	assert.True(t, created.Enqueued)
	assert.Regexp(t, `^CIV-\d{4}-BLR-000001$`, created.Number)

	depth, err := c.Queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Depth{Pending: 1}, depth)

	// without a classifier the report is routed but left for manual review
	result, err := c.Pipeline.ProcessReport(ctx, created.ReportID, false)
	require.NoError(t, err)
	assert.True(t, result.NeedsReview)
	assert.Equal(t, vo.StatusPendingClassification, result.Status)
	require.NotNil(t, result.DepartmentID)

	again, err := c.Pipeline.ProcessReport(ctx, created.ReportID, false)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

func TestContainer_MonitorsRunOnEmptyDatabase(t *testing.T) {
	c := setupContainer(t)
	ctx := context.Background()

	n, err := c.SLA.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.Stale.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.Recovery.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContainer_EscalationLifecycle(t *testing.T) {
	c := setupContainer(t)
	ctx := context.Background()

	created, err := c.Intake.Execute(ctx, intake.CreateReportCommand{
		SubmitterID: 500,
		Title:       "Streetlight out",
		Category:    "streetlight",
	})
	require.NoError(t, err)

	raised, err := c.Escalations.Raise(ctx, escalation.RaiseCommand{
		ReportID: created.ReportID,
		Severity: "high",
		Reason:   "dark junction near the school",
		RaisedBy: officer.AutomationActorID,
	})
	require.NoError(t, err)
	assert.True(t, raised.SystemRaised)
	assert.Nil(t, raised.TaskID)

	open, err := c.Escalations.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, raised.ID, open[0].ID)

	resolved, err := c.Escalations.Resolve(ctx, escalation.ResolveCommand{
		EscalationID: raised.ID,
		ResolvedBy:   officer.AutomationActorID,
		Resolution:   "crew dispatched",
	})
	require.NoError(t, err)
	assert.Equal(t, "resolved", resolved.Status)

	open, err = c.Escalations.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestContainer_ProbeRouter(t *testing.T) {
	c := setupContainer(t)
	engine := c.ProbeRouter("worker")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `civictrack_queue_depth{state="pending"} 0`)
}

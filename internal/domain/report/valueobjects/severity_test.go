package valueobjects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_SLAWindow(t *testing.T) {
	assert.Equal(t, 24*time.Hour, SeverityCritical.SLAWindow())
	assert.Equal(t, 72*time.Hour, SeverityHigh.SLAWindow())
	assert.Equal(t, 168*time.Hour, SeverityMedium.SLAWindow())
	assert.Equal(t, 336*time.Hour, SeverityLow.SLAWindow())
}

func TestSeverity_PriorityBonus(t *testing.T) {
	assert.Equal(t, 0, SeverityLow.PriorityBonus())
	assert.Equal(t, 1, SeverityMedium.PriorityBonus())
	assert.Equal(t, 3, SeverityHigh.PriorityBonus())
	assert.Equal(t, 5, SeverityCritical.PriorityBonus())
}

func TestNewSeverity(t *testing.T) {
	s, err := NewSeverity("high")
	assert.NoError(t, err)
	assert.Equal(t, SeverityHigh, s)

	_, err = NewSeverity("urgent")
	assert.Error(t, err)
}

func TestCategory_RadiusAndKeywords(t *testing.T) {
	assert.Equal(t, 50.0, CategoryPothole.DuplicateRadiusMeters())
	assert.Equal(t, 100.0, Category("unknown").DuplicateRadiusMeters())
	assert.Nil(t, CategoryOther.DepartmentKeywords())
	assert.Contains(t, CategoryWaterLeak.DepartmentKeywords(), "water")

	for _, c := range AllCategories {
		assert.True(t, c.IsValid())
	}
}

func TestTaskStatusFor(t *testing.T) {
	ts, ok := TaskStatusFor(StatusAcknowledged)
	assert.True(t, ok)
	assert.Equal(t, TaskAcknowledged, ts)

	_, ok = TaskStatusFor(StatusPendingVerification)
	assert.False(t, ok)

	ts, ok = TaskStatusFor(StatusClosed)
	assert.True(t, ok)
	assert.Equal(t, TaskResolved, ts)
}

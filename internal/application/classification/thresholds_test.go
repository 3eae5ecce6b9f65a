package classification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civictrack/civictrack/internal/application/assignment"
	"github.com/civictrack/civictrack/internal/shared/config"
)

func TestOptionsFromConfig_Defaults(t *testing.T) {
	opts, err := OptionsFromConfig(config.ClassificationConfig{})
	require.NoError(t, err)

	assert.Equal(t, DefaultThresholds(), opts.Thresholds)
	assert.Equal(t, assignment.StrategyBalanced, opts.Strategy)
	assert.False(t, opts.DuplicateDetection)
}

func TestOptionsFromConfig_Overrides(t *testing.T) {
	opts, err := OptionsFromConfig(config.ClassificationConfig{
		DuplicateDetection:         true,
		ModelVersion:               "claude-haiku/2026-01",
		AcceptThreshold:            0.5,
		AutoAssignThreshold:        0.7,
		AutoAssignOfficerThreshold: 0.9,
		DuplicateThreshold:         0.8,
		DuplicateHighConfidence:    0.97,
		DuplicateWindowDays:        7,
		AssignmentStrategy:         "round_robin",
	})
	require.NoError(t, err)

	assert.Equal(t, Thresholds{
		Accept:                  0.5,
		AutoAssignDepartment:    0.7,
		AutoAssignOfficer:       0.9,
		Duplicate:               0.8,
		DuplicateHighConfidence: 0.97,
		DuplicateWindow:         7 * 24 * time.Hour,
	}, opts.Thresholds)
	assert.Equal(t, assignment.StrategyRoundRobin, opts.Strategy)
	assert.True(t, opts.DuplicateDetection)
	assert.Equal(t, "claude-haiku/2026-01", opts.ModelVersion)
}

func TestOptionsFromConfig_UnknownStrategy(t *testing.T) {
	_, err := OptionsFromConfig(config.ClassificationConfig{AssignmentStrategy: "fastest"})
	assert.Error(t, err)
}

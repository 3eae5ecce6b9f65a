package classification

import (
	"context"

	"github.com/civictrack/civictrack/internal/application/assignment"
)

// Prediction is one answer from a TextClassifier over a closed label set.
type Prediction struct {
	Label      string
	Confidence float64
	Scores     map[string]float64
}

// TextClassifier picks one of labels for text. Implementations may return a
// label outside the set; the pipeline treats that as unknown.
type TextClassifier interface {
	Classify(ctx context.Context, text string, labels []string) (*Prediction, error)
}

// Embedder maps text to a dense vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Lifecycle is the subset of the assignment service the pipeline drives.
type Lifecycle interface {
	UpdateStatus(ctx context.Context, cmd assignment.UpdateStatusCommand) (*assignment.Result, error)
	AssignDepartment(ctx context.Context, cmd assignment.AssignDepartmentCommand) (*assignment.Result, error)
	AutoAssignOfficer(ctx context.Context, cmd assignment.AutoAssignOfficerCommand) (*assignment.Result, error)
	MarkDuplicate(ctx context.Context, cmd assignment.MarkDuplicateCommand) (*assignment.Result, error)
}

// Metrics records pipeline outcomes.
type Metrics interface {
	ObservePipeline(outcome string)
	ObserveStageFailure(stage string)
}

type nopMetrics struct{}

func (nopMetrics) ObservePipeline(string)     {}
func (nopMetrics) ObserveStageFailure(string) {}

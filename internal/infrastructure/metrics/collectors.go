// Package metrics exposes prometheus collectors for the lifecycle engine.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civictrack/civictrack/internal/infrastructure/queue"
	apperrors "github.com/civictrack/civictrack/internal/shared/errors"
	"github.com/civictrack/civictrack/internal/shared/logger"
)

const (
	namespace = "civictrack"

	outcomeOK = "ok"

	depthTimeout = 2 * time.Second
)

// DepthSource reports the current classification queue sizes.
type DepthSource interface {
	Depth(ctx context.Context) (queue.Depth, error)
}

// Collectors implements the metrics ports of the assignment, classification
// and monitor packages on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	assignments   *prometheus.CounterVec
	pipelineRuns  *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	escalations   *prometheus.CounterVec
	slaEvents     *prometheus.CounterVec
}

func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "operations_total",
			Help:      "Lifecycle operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Classification pipeline runs by outcome.",
		}, []string{"outcome"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Classification stage failures by stage.",
		}, []string{"stage"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "escalations_total",
			Help:      "Escalations raised by type.",
		}, []string{"type"}),
		slaEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "sla_events_total",
			Help:      "SLA deadlines set, warnings and violations.",
		}, []string{"event"}),
	}
	c.registry.MustRegister(
		c.assignments,
		c.pipelineRuns,
		c.stageFailures,
		c.escalations,
		c.slaEvents,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{Namespace: namespace}),
	)
	return c
}

// RegisterQueueDepth adds gauges that read the queue on every scrape.
func (c *Collectors) RegisterQueueDepth(source DepthSource, log logger.Interface) {
	c.registry.MustRegister(&queueDepthCollector{
		source: source,
		logger: log,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "depth"),
			"Classification queue items by state.",
			[]string{"state"}, nil,
		),
	})
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) ObserveAssignment(operation string, err error) {
	c.assignments.WithLabelValues(operation, outcomeOf(err)).Inc()
}

func (c *Collectors) ObservePipeline(outcome string) {
	c.pipelineRuns.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ObserveStageFailure(stage string) {
	c.stageFailures.WithLabelValues(stage).Inc()
}

func (c *Collectors) ObserveEscalation(escalationType string) {
	c.escalations.WithLabelValues(escalationType).Inc()
}

func (c *Collectors) ObserveSLAEvent(event string) {
	c.slaEvents.WithLabelValues(event).Inc()
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeOK
	}
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return string(appErr.Type)
	}
	return string(apperrors.ErrorTypeInternal)
}

type queueDepthCollector struct {
	source DepthSource
	logger logger.Interface
	desc   *prometheus.Desc
}

func (q *queueDepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- q.desc
}

func (q *queueDepthCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), depthTimeout)
	defer cancel()

	depth, err := q.source.Depth(ctx)
	if err != nil {
		q.logger.Warnw("failed to read queue depth", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(q.desc, prometheus.GaugeValue, float64(depth.Pending), "pending")
	ch <- prometheus.MustNewConstMetric(q.desc, prometheus.GaugeValue, float64(depth.Processing), "processing")
	ch <- prometheus.MustNewConstMetric(q.desc, prometheus.GaugeValue, float64(depth.Failed), "failed")
}

package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricPipelineNodeDuration = "pipeline_node_duration_seconds"
	MetricPipelineNodeFailures = "pipeline_node_failures_total"
)

// Metrics contains Prometheus metrics for the decision pipeline.
// All operations are thread-safe.
type Metrics struct {
	nodeDuration *prometheus.HistogramVec
	nodeFailures *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPipelineNodeDuration,
				Help:    "Histogram of pipeline node duration in seconds by node",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"node"},
		),
		nodeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPipelineNodeFailures,
				Help: "Total number of pipeline node failures by node",
			},
			[]string{"node"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	if err := registry.Register(m.nodeDuration); err != nil {
		return err
	}
	return registry.Register(m.nodeFailures)
}

// ObserveNode records one node execution.
func (m *Metrics) ObserveNode(name string, elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if !success {
		m.nodeFailures.WithLabelValues(name).Inc()
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the registration workflow.
type Metrics struct {
	StepTotal       *prometheus.CounterVec
	StepDurationMs  *prometheus.HistogramVec
	SessionsExpired prometheus.Counter
}

// New creates and registers all registration metrics.
func New() *Metrics {
	return &Metrics{
		StepTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrolld_workflow_step_total",
			Help: "Workflow step executions by step and outcome",
		}, []string{"step", "outcome"}),
		StepDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrolld_workflow_step_duration_ms",
			Help:    "Latency of workflow steps in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"step"}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "enrolld_sessions_expired_total",
			Help: "Operations rejected because the session was past its TTL",
		}),
	}
}

// ObserveStep records one step execution.
func (m *Metrics) ObserveStep(step, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.StepTotal.WithLabelValues(step, outcome).Inc()
	m.StepDurationMs.WithLabelValues(step).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// IncrementExpired counts a rejected operation on an expired session.
func (m *Metrics) IncrementExpired() {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
}

// Package observability groups the Prometheus instruments exported by the
// service and the handler that serves them.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the answer pipeline.
type Metrics struct {
	Runs            *prometheus.CounterVec
	StepFailures    *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	Tokens          *prometheus.CounterVec
	CostTotal       prometheus.Counter
	PipelineLatency prometheus.Histogram
}

// NewMetrics registers the instruments with the default registry. Call once
// per process; tests use NewMetricsWith and a private registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the instruments with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Answer pipeline runs by outcome.",
		}, []string{"outcome"}),
		StepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_step_failures_total",
			Help:      "Pipeline failures by step.",
		}, []string{"step"}),
		PersistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Best-effort persistence failures by collection.",
		}, []string{"collection"}),
		Tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Model tokens consumed by direction.",
		}, []string{"direction"}),
		CostTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cost_total",
			Help:      "Accumulated model cost in configured price units.",
		}),
		PipelineLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_latency_seconds",
			Help:      "End-to-end answer pipeline latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
	}
}

func (m *Metrics) ObservePipelineLatency(d time.Duration) {
	m.PipelineLatency.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Package metrics provides Prometheus-based recording of pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder receives run, step and retrieval events from the router.
type Recorder interface {
	ObserveRun(status string)
	ObserveStep(agent, status string, duration time.Duration)
	IncRetrievalDegraded()
}

// NoOpRecorder discards all observations.
type NoOpRecorder struct{}

// ObserveRun implements Recorder.
func (NoOpRecorder) ObserveRun(string) {}

// ObserveStep implements Recorder.
func (NoOpRecorder) ObserveStep(string, string, time.Duration) {}

// IncRetrievalDegraded implements Recorder.
func (NoOpRecorder) IncRetrievalDegraded() {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	runsTotal         *prometheus.CounterVec
	stepsTotal        *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	retrievalDegraded prometheus.Counter
}

// NewPrometheusRecorder registers the ragflow collectors with reg. A nil reg
// uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragflow_runs_total",
				Help: "Total number of pipeline runs by final status",
			},
			[]string{"status"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragflow_steps_total",
				Help: "Total number of agent steps by agent and status",
			},
			[]string{"agent", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragflow_step_duration_seconds",
				Help:    "Duration of agent steps in seconds, retrieval included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		retrievalDegraded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ragflow_retrieval_degraded_total",
				Help: "Total number of retrievals that failed and fell back to empty context",
			},
		),
	}
}

// ObserveRun records a finished run.
func (p *PrometheusRecorder) ObserveRun(status string) {
	p.runsTotal.WithLabelValues(status).Inc()
}

// ObserveStep records a finished agent step.
func (p *PrometheusRecorder) ObserveStep(agent, status string, duration time.Duration) {
	p.stepsTotal.WithLabelValues(agent, status).Inc()
	p.stepDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// IncRetrievalDegraded counts a retrieval that fell back to empty context.
func (p *PrometheusRecorder) IncRetrievalDegraded() {
	p.retrievalDegraded.Inc()
}

// Compile-time checks.
var (
	_ Recorder = NoOpRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

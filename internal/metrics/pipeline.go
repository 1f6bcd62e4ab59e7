package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics counts stage outcomes of the analysis pipeline and the
// attempts spent against the oracle. A nil *PipelineMetrics is a no-op.
type PipelineMetrics struct {
	registry *prometheus.Registry

	stageTotal     *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	oracleAttempts *prometheus.CounterVec
	extractedChars prometheus.Histogram
	warningsTotal  *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "policy",
			Subsystem:   "pipeline",
			Name:        "stage_total",
			Help:        "Pipeline stage executions by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"stage", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "policy",
			Subsystem:   "pipeline",
			Name:        "stage_duration_seconds",
			Help:        "Pipeline stage duration in seconds.",
			Buckets:     []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)
	oracleAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "policy",
			Subsystem:   "oracle",
			Name:        "attempts_total",
			Help:        "Oracle call attempts by result.",
			ConstLabels: constLabels,
		},
		[]string{"provider", "result"},
	)
	extractedChars := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "policy",
			Subsystem:   "pipeline",
			Name:        "extracted_characters",
			Help:        "Characters extracted per accepted document.",
			Buckets:     prometheus.ExponentialBuckets(100, 4, 9),
			ConstLabels: constLabels,
		},
	)
	warningsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "policy",
			Subsystem:   "oracle",
			Name:        "warnings_total",
			Help:        "Data-quality warnings raised on oracle results.",
			ConstLabels: constLabels,
		},
		[]string{"warning"},
	)

	registry.MustRegister(
		stageTotal,
		stageDuration,
		oracleAttempts,
		extractedChars,
		warningsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &PipelineMetrics{
		registry:       registry,
		stageTotal:     stageTotal,
		stageDuration:  stageDuration,
		oracleAttempts: oracleAttempts,
		extractedChars: extractedChars,
		warningsTotal:  warningsTotal,
	}
}

func (m *PipelineMetrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageTotal.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveOracleAttempt(provider, result string) {
	if m == nil {
		return
	}
	m.oracleAttempts.WithLabelValues(provider, result).Inc()
}

func (m *PipelineMetrics) ObserveExtractedChars(n int) {
	if m == nil {
		return
	}
	m.extractedChars.Observe(float64(n))
}

func (m *PipelineMetrics) ObserveWarning(warning string) {
	if m == nil {
		return
	}
	m.warningsTotal.WithLabelValues(warning).Inc()
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

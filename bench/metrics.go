package bench

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/wasm-bench/errors"
)

// Metrics collects results into a Prometheus registry so runs can be
// exported in the text exposition format and compared over time.
type Metrics struct {
	registry     *prometheus.Registry
	duration     *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	inputSize    *prometheus.GaugeVec
	artifactSize *prometheus.GaugeVec
}

var labels = []string{"benchmark", "op"}

// NewMetrics creates a collector backed by its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wasm_bench_duration_seconds",
			Help:    "Time taken by one measured iteration",
			Buckets: prometheus.ExponentialBuckets(10e-6, 4, 12),
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasm_bench_failed_iterations_total",
			Help: "Measured iterations that returned an error",
		}, labels),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wasm_bench_skipped_total",
			Help: "Benchmarks that could not be measured",
		}, append(labels, "kind")),
		inputSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wasm_bench_input_bytes",
			Help: "Size of the benchmark module",
		}, labels),
		artifactSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wasm_bench_artifact_bytes",
			Help: "Size of the compiled artifact",
		}, labels),
	}
	m.registry.MustRegister(m.duration, m.failures, m.skipped, m.inputSize, m.artifactSize)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one result.
func (m *Metrics) Observe(r *Result) {
	if r.Skipped != nil {
		kind := "unknown"
		var e *errors.Error
		if errors.As(r.Skipped, &e) {
			kind = string(e.Kind)
		}
		m.skipped.WithLabelValues(r.Name, string(r.Op), kind).Inc()
		return
	}

	duration := m.duration.WithLabelValues(r.Name, string(r.Op))
	for _, d := range r.Samples {
		duration.Observe(d.Seconds())
	}
	m.failures.WithLabelValues(r.Name, string(r.Op)).Add(float64(r.Failures))
	m.inputSize.WithLabelValues(r.Name, string(r.Op)).Set(float64(r.InputSize))
	m.artifactSize.WithLabelValues(r.Name, string(r.Op)).Set(float64(r.ArtifactSize))
}

// WriteFile writes every metric to path in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.IO(errors.PhaseHarness, "write metrics "+path, err)
	}
	return nil
}

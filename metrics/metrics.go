// Package metrics holds the prometheus collectors recorded by calibrations,
// loss models and pricing engines.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is one set of collectors registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	BootstrapRuns       *prometheus.CounterVec
	BootstrapIterations prometheus.Histogram
	BootstrapDuration   prometheus.Histogram

	LossModelEvaluations *prometheus.CounterVec
	EngineCalculations   *prometheus.CounterVec
}

// New builds and registers the collectors under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BootstrapRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "runs_total",
			Help:      "Curve bootstrap runs by result.",
		}, []string{"result"}),
		BootstrapIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "iterations",
			Help:      "Optimizer iterations per bootstrap run.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}),
		BootstrapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "duration_seconds",
			Help:      "Wall time per bootstrap run.",
			Buckets:   prometheus.DefBuckets,
		}),
		LossModelEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credit",
			Name:      "loss_model_evaluations_total",
			Help:      "Unconditional loss distributions computed, by model.",
		}, []string{"model"}),
		EngineCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "calculations_total",
			Help:      "Pricing engine calculations, by engine.",
		}, []string{"engine"}),
	}
	m.Registry.MustRegister(
		m.BootstrapRuns,
		m.BootstrapIterations,
		m.BootstrapDuration,
		m.LossModelEvaluations,
		m.EngineCalculations,
	)
	return m
}

// ObserveBootstrap records one calibration run.
func (m *Metrics) ObserveBootstrap(start time.Time, iterations int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.BootstrapRuns.WithLabelValues(result).Inc()
	m.BootstrapIterations.Observe(float64(iterations))
	m.BootstrapDuration.Observe(time.Since(start).Seconds())
}

// IncLossModel counts one loss distribution evaluation.
func (m *Metrics) IncLossModel(model string) {
	if m == nil {
		return
	}
	m.LossModelEvaluations.WithLabelValues(model).Inc()
}

// IncEngine counts one engine calculation.
func (m *Metrics) IncEngine(engine string) {
	if m == nil {
		return
	}
	m.EngineCalculations.WithLabelValues(engine).Inc()
}

var (
	once     sync.Once
	defaults *Metrics
)

// Default returns the process-wide collectors.
func Default() *Metrics {
	once.Do(func() {
		defaults = New("quantcore")
	})
	return defaults
}

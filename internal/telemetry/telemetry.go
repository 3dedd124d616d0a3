// Package telemetry exports experiment engine metrics to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"labflow/internal/core"
	"labflow/internal/measurement"
)

// Metrics holds the engine's Prometheus metrics. It implements
// core.Reporter and core.RunObserver.
type Metrics struct {
	StepsTotal       *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	WaitOverrun      prometheus.Histogram
	MeasurementValue *prometheus.GaugeVec
	Running          prometheus.Gauge
}

// New registers the metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labflow_steps_total",
				Help: "Total number of experiment steps by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labflow_step_duration_seconds",
				Help:    "Duration of executed experiment steps in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"kind"},
		),
		WaitOverrun: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "labflow_wait_overrun_seconds",
				Help:    "How far past its deadline a wait step started",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
		),
		MeasurementValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "labflow_measurement_value",
				Help: "Most recent numeric value of each measurement",
			},
			[]string{"name"},
		),
		Running: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "labflow_experiment_running",
				Help: "Whether an experiment run is active (1) or not (0)",
			},
		),
	}
}

// Report updates the metrics for one step event.
func (m *Metrics) Report(e core.Event) {
	m.StepsTotal.WithLabelValues(string(e.Kind), string(e.Outcome)).Inc()

	if e.Outcome == core.OutcomeExecuted && e.Kind != core.KindWait {
		m.StepDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
	}
	if e.Kind == core.KindWait && e.Overrun > 0 {
		m.WaitOverrun.Observe(e.Overrun.Seconds())
	}
	if e.Measurement != "" && e.Outcome == core.OutcomeExecuted {
		// Non-numeric readings are recorded in the log but not exported.
		if v, err := measurement.ToFloat(e.Value); err == nil {
			m.MeasurementValue.WithLabelValues(e.Measurement).Set(v)
		}
	}
}

func (m *Metrics) RunStarted(string, int, time.Time) {
	m.Running.Set(1)
}

func (m *Metrics) RunFinished(string, error, time.Time) {
	m.Running.Set(0)
}

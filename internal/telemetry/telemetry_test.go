package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labflow/internal/core"
)

func TestMetrics_StepsTotal(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Report(core.Event{Kind: core.KindAction, Outcome: core.OutcomeExecuted, Duration: time.Second})
	m.Report(core.Event{Kind: core.KindAction, Outcome: core.OutcomeExecuted})
	m.Report(core.Event{Kind: core.KindAction, Outcome: core.OutcomeSkipped})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("action", "executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("action", "skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}

func TestMetrics_MeasurementValue(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Report(core.Event{Kind: core.KindMeasurement, Outcome: core.OutcomeExecuted, Measurement: "od", Value: 0.42})
	m.Report(core.Event{Kind: core.KindMeasurement, Outcome: core.OutcomeExecuted, Measurement: "status", Value: "idle"})

	assert.Equal(t, 0.42, testutil.ToFloat64(m.MeasurementValue.WithLabelValues("od")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.MeasurementValue))
}

func TestMetrics_WaitOverrun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Report(core.Event{Kind: core.KindWait, Outcome: core.OutcomeExecuted})
	m.Report(core.Event{Kind: core.KindWait, Outcome: core.OutcomeExecuted, Overrun: 2 * time.Second})

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() != "labflow_wait_overrun_seconds" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(1), h.GetSampleCount())
		assert.InDelta(t, 2.0, h.GetSampleSum(), 1e-9)
	}
	assert.True(t, found, "overrun histogram not gathered")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("wait", "executed")))
}

func TestMetrics_Running(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RunStarted("r", 3, time.Now())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Running))

	m.RunFinished("r", nil, time.Now())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Running))
}

func TestMetrics_ImplementsObserver(t *testing.T) {
	var _ core.Reporter = (*Metrics)(nil)
	var _ core.RunObserver = (*Metrics)(nil)
}

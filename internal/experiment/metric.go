package experiment

import (
	"fmt"

	"labflow/internal/measurement"
	"labflow/internal/stats"
)

// Metric is a live view of a statistic over one measurement history.
// Value recomputes from the full history on every call.
type Metric struct {
	log       *measurement.Log
	name      string
	statistic stats.Statistic
}

func NewMetric(log *measurement.Log, measurementName string, statistic stats.Statistic) *Metric {
	return &Metric{log: log, name: measurementName, statistic: statistic}
}

func (m *Metric) MeasurementName() string    { return m.name }
func (m *Metric) Statistic() stats.Statistic { return m.statistic }

func (m *Metric) Value() (float64, error) {
	if m.log.Len(m.name) == 0 {
		return 0, fmt.Errorf("metric %s: %w", m, ErrNoMeasurements)
	}
	values, err := m.log.Values(m.name)
	if err != nil {
		return 0, fmt.Errorf("metric %s: %w", m, err)
	}
	v, err := m.statistic.Apply(values)
	if err != nil {
		return 0, fmt.Errorf("metric %s: %w", m, err)
	}
	return v, nil
}

func (m *Metric) String() string {
	return m.name + " " + m.statistic.String()
}

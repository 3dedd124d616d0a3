package collector

import (
	"sort"
	"time"

	"labflow/internal/core"
	"labflow/internal/measurement"
	"labflow/internal/stats"
)

// Summary contains aggregated results of one experiment run.
type Summary struct {
	RunID        string
	Duration     time.Duration
	PlannedSteps int
	Executed     int
	Skipped      int
	Failed       int
	Stopped      bool
	Overruns     int
	TotalOverrun time.Duration
	MaxOverrun   time.Duration
	Kinds        map[core.StepKind]*KindSummary
	Measurements []MeasurementSummary
	Error        string
}

// Progress is the number of steps that have reached a terminal state.
func (s *Summary) Progress() int {
	return s.Executed + s.Skipped + s.Failed
}

// KindSummary contains per-step-kind statistics.
type KindSummary struct {
	Executed int
	Skipped  int
	Failed   int
	Duration DurationMetrics
}

// DurationMetrics contains step duration statistics.
type DurationMetrics struct {
	Min time.Duration
	Max time.Duration
	Avg time.Duration
	P50 time.Duration
	P95 time.Duration
}

// MeasurementSummary describes one measurement history.
type MeasurementSummary struct {
	Name  string
	Count int
	Last  float64
	Mean  float64
	Min   float64
	Max   float64
	// Numeric is false if any value could not be read as a number; only
	// Count is meaningful then.
	Numeric bool
}

// ComputeSummary computes run statistics from events. Pure function, no side effects.
func ComputeSummary(events []core.Event, plannedSteps int, runDuration time.Duration) *Summary {
	s := &Summary{
		Duration:     runDuration,
		PlannedSteps: plannedSteps,
		Kinds:        make(map[core.StepKind]*KindSummary),
	}

	durations := make(map[core.StepKind][]time.Duration)
	for _, e := range events {
		ks, ok := s.Kinds[e.Kind]
		if !ok {
			ks = &KindSummary{}
			s.Kinds[e.Kind] = ks
		}

		switch e.Outcome {
		case core.OutcomeExecuted:
			s.Executed++
			ks.Executed++
			durations[e.Kind] = append(durations[e.Kind], e.Duration)
		case core.OutcomeSkipped:
			s.Skipped++
			ks.Skipped++
		case core.OutcomeFailed:
			s.Failed++
			ks.Failed++
			durations[e.Kind] = append(durations[e.Kind], e.Duration)
		case core.OutcomeStopped:
			s.Stopped = true
		}

		if e.Overrun > 0 {
			s.Overruns++
			s.TotalOverrun += e.Overrun
			if e.Overrun > s.MaxOverrun {
				s.MaxOverrun = e.Overrun
			}
		}
	}

	for kind, ds := range durations {
		s.Kinds[kind].Duration = ComputeDurationMetrics(ds)
	}
	return s
}

// ComputePercentile calculates the percentile value from a sorted slice of durations.
// The percentile p should be between 0 and 1 (e.g., 0.95 for p95).
// The slice must be sorted in ascending order.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	// Use the "nearest rank" method
	return sorted[int(float64(len(sorted)-1)*p)]
}

// ComputeDurationMetrics calculates duration statistics.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return DurationMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: total / time.Duration(len(sorted)),
		P50: ComputePercentile(sorted, 0.50),
		P95: ComputePercentile(sorted, 0.95),
	}
}

// SummarizeMeasurements computes per-name statistics over a measurement log,
// sorted by name.
func SummarizeMeasurements(log *measurement.Log) []MeasurementSummary {
	names := log.Names()
	out := make([]MeasurementSummary, 0, len(names))
	for _, name := range names {
		ms := MeasurementSummary{Name: name, Count: log.Len(name)}
		values, err := log.Values(name)
		if err == nil && len(values) > 0 {
			ms.Numeric = true
			ms.Last, _ = stats.Last().Apply(values)
			ms.Mean, _ = stats.Mean().Apply(values)
			ms.Min, _ = stats.Min().Apply(values)
			ms.Max, _ = stats.Max().Apply(values)
		}
		out = append(out, ms)
	}
	return out
}

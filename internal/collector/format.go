package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"labflow/internal/core"
)

// FormatText writes a run summary in human-readable format.
func FormatText(w io.Writer, s *Summary) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "labflow - Experiment Results")
	fmt.Fprintln(w, "============================")
	fmt.Fprintln(w, "")
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:          %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Duration:     %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Steps:        %d / %d\n", s.Progress(), s.PlannedSteps)
	fmt.Fprintf(w, "Executed:     %d\n", s.Executed)
	fmt.Fprintf(w, "Skipped:      %d\n", s.Skipped)
	fmt.Fprintf(w, "Failed:       %d\n", s.Failed)
	if s.Stopped {
		fmt.Fprintln(w, "Stopped:      yes")
	}
	if s.Overruns > 0 {
		fmt.Fprintf(w, "Wait overrun: %d (total %s, max %s)\n",
			s.Overruns, FormatDuration(s.TotalOverrun), FormatDuration(s.MaxOverrun))
	}

	if len(s.Kinds) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "By Kind:")
		for _, kind := range sortedKinds(s.Kinds) {
			ks := s.Kinds[kind]
			fmt.Fprintf(w, "  %-12s %d run  %d skipped  %d failed   avg=%s  p95=%s  max=%s\n",
				kind, ks.Executed, ks.Skipped, ks.Failed,
				FormatDuration(ks.Duration.Avg),
				FormatDuration(ks.Duration.P95),
				FormatDuration(ks.Duration.Max))
		}
	}

	if len(s.Measurements) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Measurements:")
		for _, m := range s.Measurements {
			if !m.Numeric {
				fmt.Fprintf(w, "  %-15s n=%d\n", m.Name, m.Count)
				continue
			}
			fmt.Fprintf(w, "  %-15s n=%d  last=%g  mean=%g  min=%g  max=%g\n",
				m.Name, m.Count, m.Last, m.Mean, m.Min, m.Max)
		}
	}

	if s.Error != "" {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "Error: %s\n", s.Error)
	}
}

// FormatJSON writes a run summary in JSON format.
func FormatJSON(w io.Writer, s *Summary) {
	output := struct {
		RunID        string                     `json:"runId,omitempty"`
		Duration     string                     `json:"duration"`
		PlannedSteps int                        `json:"plannedSteps"`
		Executed     int                        `json:"executed"`
		Skipped      int                        `json:"skipped"`
		Failed       int                        `json:"failed"`
		Stopped      bool                       `json:"stopped"`
		Overruns     int                        `json:"overruns"`
		TotalOverrun string                     `json:"totalOverrun"`
		MaxOverrun   string                     `json:"maxOverrun"`
		Kinds        map[string]jsonKindSummary `json:"kinds"`
		Measurements []jsonMeasurement          `json:"measurements"`
		Error        string                     `json:"error,omitempty"`
	}{
		RunID:        s.RunID,
		Duration:     s.Duration.Round(time.Millisecond).String(),
		PlannedSteps: s.PlannedSteps,
		Executed:     s.Executed,
		Skipped:      s.Skipped,
		Failed:       s.Failed,
		Stopped:      s.Stopped,
		Overruns:     s.Overruns,
		TotalOverrun: FormatDuration(s.TotalOverrun),
		MaxOverrun:   FormatDuration(s.MaxOverrun),
		Kinds:        make(map[string]jsonKindSummary, len(s.Kinds)),
		Measurements: make([]jsonMeasurement, 0, len(s.Measurements)),
		Error:        s.Error,
	}

	for kind, ks := range s.Kinds {
		output.Kinds[string(kind)] = jsonKindSummary{
			Executed: ks.Executed,
			Skipped:  ks.Skipped,
			Failed:   ks.Failed,
			Durations: jsonDurationMetrics{
				Min: FormatDuration(ks.Duration.Min),
				Max: FormatDuration(ks.Duration.Max),
				Avg: FormatDuration(ks.Duration.Avg),
				P50: FormatDuration(ks.Duration.P50),
				P95: FormatDuration(ks.Duration.P95),
			},
		}
	}
	for _, m := range s.Measurements {
		jm := jsonMeasurement{Name: m.Name, Count: m.Count}
		if m.Numeric {
			last, mean, lo, hi := m.Last, m.Mean, m.Min, m.Max
			jm.Last, jm.Mean, jm.Min, jm.Max = &last, &mean, &lo, &hi
		}
		output.Measurements = append(output.Measurements, jm)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P95 string `json:"p95"`
}

type jsonKindSummary struct {
	Executed  int                 `json:"executed"`
	Skipped   int                 `json:"skipped"`
	Failed    int                 `json:"failed"`
	Durations jsonDurationMetrics `json:"durations"`
}

type jsonMeasurement struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Last  *float64 `json:"last,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

func sortedKinds(kinds map[core.StepKind]*KindSummary) []core.StepKind {
	out := make([]core.StepKind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

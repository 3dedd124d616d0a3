// Package stats provides the statistics that metrics apply to measurement history.
package stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmpty is returned when a statistic that needs at least one value is
// applied to an empty history.
var ErrEmpty = errors.New("no values")

// Kind names a statistic.
type Kind string

const (
	KindLast   Kind = "last"
	KindCount  Kind = "count"
	KindSum    Kind = "sum"
	KindMean   Kind = "mean"
	KindMedian Kind = "median"
	KindMax    Kind = "max"
	KindMin    Kind = "min"
)

// Statistic is a stateless reduction over an ordered history of values.
// A positive Window restricts it to the trailing min(Window, len(values)) values.
type Statistic struct {
	Kind   Kind
	Window int
}

func Last() Statistic                { return Statistic{Kind: KindLast} }
func Count() Statistic               { return Statistic{Kind: KindCount} }
func Sum(window ...int) Statistic    { return Statistic{Kind: KindSum, Window: first(window)} }
func Mean(window ...int) Statistic   { return Statistic{Kind: KindMean, Window: first(window)} }
func Median(window ...int) Statistic { return Statistic{Kind: KindMedian, Window: first(window)} }
func Max(window ...int) Statistic    { return Statistic{Kind: KindMax, Window: first(window)} }
func Min(window ...int) Statistic    { return Statistic{Kind: KindMin, Window: first(window)} }

func first(window []int) int {
	if len(window) == 0 {
		return 0
	}
	return window[0]
}

// Parse builds a Statistic from its name, as written in config files.
func Parse(name string, window int) (Statistic, error) {
	if window < 0 {
		return Statistic{}, fmt.Errorf("negative window %d", window)
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(name)))
	if kind == "" {
		kind = KindLast
	}
	switch kind {
	case KindLast, KindCount:
		if window > 0 {
			return Statistic{}, fmt.Errorf("statistic %q does not take a window", kind)
		}
		return Statistic{Kind: kind}, nil
	case KindSum, KindMean, KindMedian, KindMax, KindMin:
		return Statistic{Kind: kind, Window: window}, nil
	}
	return Statistic{}, fmt.Errorf("unknown statistic %q", name)
}

func (s Statistic) String() string {
	if s.Window > 0 {
		return fmt.Sprintf("%s(window=%d)", s.Kind, s.Window)
	}
	return string(s.Kind)
}

// Apply computes the statistic. Pure function, no side effects.
func (s Statistic) Apply(values []float64) (float64, error) {
	switch s.Kind {
	case KindCount:
		return float64(len(values)), nil
	case KindLast:
		if len(values) == 0 {
			return 0, ErrEmpty
		}
		return values[len(values)-1], nil
	}

	vals := trailing(values, s.Window)
	switch s.Kind {
	case KindSum:
		return sum(vals), nil
	case KindMean:
		if len(vals) == 0 {
			return 0, fmt.Errorf("mean: %w", ErrEmpty)
		}
		return sum(vals) / float64(len(vals)), nil
	case KindMedian:
		if len(vals) == 0 {
			return 0, fmt.Errorf("median: %w", ErrEmpty)
		}
		return median(vals), nil
	case KindMax, KindMin:
		if len(vals) == 0 {
			return 0, fmt.Errorf("%s: %w", s.Kind, ErrEmpty)
		}
		best := vals[0]
		for _, v := range vals[1:] {
			if (s.Kind == KindMax && v > best) || (s.Kind == KindMin && v < best) {
				best = v
			}
		}
		return best, nil
	}
	return 0, fmt.Errorf("unknown statistic %q", s.Kind)
}

// trailing returns the last n values, or all of them when n is zero or
// exceeds the history.
func trailing(values []float64, n int) []float64 {
	if n <= 0 || n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

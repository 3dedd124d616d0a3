// Package measurement stores recorded measurement history and persists it to CSV.
package measurement

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotNumeric is returned when a recorded value cannot be used as a number.
var ErrNotNumeric = errors.New("value is not numeric")

// Record is a single measured value and the time it was logged.
type Record struct {
	Timestamp time.Time
	Value     any
}

// Log holds an append-only, chronological history per measurement name.
// Safe for concurrent use: the engine appends while observers read.
type Log struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewLog() *Log {
	return &Log{records: make(map[string][]Record)}
}

// Append adds a record to the end of the named history.
func (l *Log) Append(name string, rec Record) {
	l.mu.Lock()
	l.records[name] = append(l.records[name], rec)
	l.mu.Unlock()
}

// Records returns a copy of the named history in chronological order.
func (l *Log) Records(name string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.records[name]
	if len(src) == 0 {
		return nil
	}
	out := make([]Record, len(src))
	copy(out, src)
	return out
}

// Last returns the most recent record under name.
func (l *Log) Last(name string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.records[name]
	if len(src) == 0 {
		return Record{}, false
	}
	return src[len(src)-1], true
}

// Len returns the number of records under name.
func (l *Log) Len(name string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records[name])
}

// Total returns the number of records across all names.
func (l *Log) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, recs := range l.records {
		n += len(recs)
	}
	return n
}

// Names returns the recorded measurement names, sorted.
func (l *Log) Names() []string {
	l.mu.RLock()
	names := make([]string, 0, len(l.records))
	for name := range l.records {
		names = append(names, name)
	}
	l.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Values extracts the value component of the named history as float64s.
func (l *Log) Values(name string) ([]float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.records[name]
	values := make([]float64, len(src))
	for i, rec := range src {
		v, err := ToFloat(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		values[i] = v
	}
	return values, nil
}

// Reset drops all history.
func (l *Log) Reset() {
	l.mu.Lock()
	l.records = make(map[string][]Record)
	l.mu.Unlock()
}

// ToFloat converts numeric Go values (and numeric strings) to float64.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", n, ErrNotNumeric)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%T: %w", v, ErrNotNumeric)
}

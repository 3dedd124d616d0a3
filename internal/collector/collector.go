// Package collector aggregates step events from experiment runs.
package collector

import (
	"sync"
	"time"

	"labflow/internal/core"
)

// Collector records step events and run boundaries. It implements
// core.Reporter and core.RunObserver. Thread-safe.
type Collector struct {
	mu        sync.Mutex
	events    []core.Event
	runID     string
	total     int
	startTime time.Time
	endTime   time.Time
	err       error
}

func NewCollector() *Collector {
	return &Collector{events: make([]core.Event, 0)}
}

// Report records a step event.
func (c *Collector) Report(event core.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

// RunStarted resets the collector for a new run.
func (c *Collector) RunStarted(runID string, steps int, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.runID = runID
	c.total = steps
	c.startTime = at
	c.endTime = time.Time{}
	c.err = nil
}

func (c *Collector) RunFinished(runID string, err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = at
	c.err = err
}

// Events returns a copy of collected events.
func (c *Collector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// Duration returns the run duration.
// If the run has finished, returns the duration from start to end.
// If still running, returns the duration from start to now.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startTime.IsZero() {
		return 0
	}
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}

// Compute summarises the events collected so far.
func (c *Collector) Compute() *Summary {
	events := c.Events()
	d := c.Duration()

	c.mu.Lock()
	runID, total, err := c.runID, c.total, c.err
	c.mu.Unlock()

	s := ComputeSummary(events, total, d)
	s.RunID = runID
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

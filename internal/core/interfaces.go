// Package core defines the fundamental interfaces and types for labflow.
package core

import "time"

// StepKind identifies the type of a scheduled experiment step.
type StepKind string

const (
	KindAction      StepKind = "action"
	KindMeasurement StepKind = "measurement"
	KindWait        StepKind = "wait"
	KindConditional StepKind = "conditional"
)

// Outcome is the terminal state of a step during engine traversal.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	OutcomeStopped  Outcome = "stopped"
)

// Event represents the outcome of a single step in an experiment run.
type Event struct {
	RunID     string
	Index     int // 0-based position in the step list
	Total     int
	Timestamp time.Time
	Kind      StepKind
	Name      string
	Outcome   Outcome
	Duration  time.Duration
	Overrun   time.Duration // how late a wait started relative to its deadline
	Error     string

	// Set for measurements only.
	Measurement string
	Value       any
}

// Reporter receives step events from the engine.
// Report is called synchronously on the engine goroutine.
type Reporter interface {
	Report(Event)
}

// RunObserver is implemented by reporters that also want run boundaries.
type RunObserver interface {
	RunStarted(runID string, steps int, at time.Time)
	RunFinished(runID string, err error, at time.Time)
}

// NullReporter discards all events.
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) Report(Event) {}

// MultiReporter fans an event out to every non-nil reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

func (m MultiReporter) RunStarted(runID string, steps int, at time.Time) {
	for _, r := range m {
		if obs, ok := r.(RunObserver); ok {
			obs.RunStarted(runID, steps, at)
		}
	}
}

func (m MultiReporter) RunFinished(runID string, err error, at time.Time) {
	for _, r := range m {
		if obs, ok := r.(RunObserver); ok {
			obs.RunFinished(runID, err, at)
		}
	}
}

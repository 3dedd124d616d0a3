package experiment

import (
	"context"
	"fmt"
	"time"

	"labflow/internal/core"
)

// ActionFunc performs a side effect on an instrument.
type ActionFunc func(ctx context.Context) error

// MeasureFunc reads a value from an instrument.
type MeasureFunc func(ctx context.Context) (any, error)

// Step is any schedulable unit of an experiment.
// The set of step types is closed; see Action, Measurement, Wait and Conditional.
type Step interface {
	Kind() core.StepKind
	Name() string
	step()
}

// timing records the wall-clock bounds of an execution. It is for
// introspection only; scheduling uses the experiment's logical cursor.
type timing struct {
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns how long the last execution took.
func (t *timing) Duration() (time.Duration, error) {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0, ErrNotCompleted
	}
	return t.EndTime.Sub(t.StartTime), nil
}

// Action invokes a function for its side effect.
type Action struct {
	timing
	name string
	fn   ActionFunc
}

func NewAction(name string, fn ActionFunc) *Action {
	return &Action{name: name, fn: fn}
}

func (a *Action) Kind() core.StepKind { return core.KindAction }
func (a *Action) Name() string        { return a.name }
func (a *Action) step()               {}

func (a *Action) execute(ctx context.Context, clock core.Clock) (err error) {
	a.StartTime, a.EndTime = clock.Now(), time.Time{}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		a.EndTime = clock.Now()
	}()
	return a.fn(ctx)
}

// Measurement invokes a function and records its result under MeasurementName.
type Measurement struct {
	timing
	name            string
	fn              MeasureFunc
	MeasurementName string
	value           any
}

func NewMeasurement(name string, fn MeasureFunc, measurementName string) *Measurement {
	return &Measurement{name: name, fn: fn, MeasurementName: measurementName}
}

func (m *Measurement) Kind() core.StepKind { return core.KindMeasurement }
func (m *Measurement) Name() string        { return m.name }
func (m *Measurement) step()               {}

// Value returns the value measured by the most recent execution.
func (m *Measurement) Value() any { return m.value }

func (m *Measurement) execute(ctx context.Context, clock core.Clock) (err error) {
	m.StartTime, m.EndTime = clock.Now(), time.Time{}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		m.EndTime = clock.Now()
	}()
	v, err := m.fn(ctx)
	if err != nil {
		return err
	}
	m.value = v
	return nil
}

// Wait holds the schedule for a fixed interval measured from the
// experiment's logical cursor. Immutable.
type Wait struct {
	interval time.Duration
}

func NewWait(d time.Duration) (*Wait, error) {
	if d < 0 {
		return nil, fmt.Errorf("%v: %w", d, ErrNegativeWait)
	}
	return &Wait{interval: d}, nil
}

func (w *Wait) Kind() core.StepKind     { return core.KindWait }
func (w *Wait) Name() string            { return "wait " + w.interval.String() }
func (w *Wait) Interval() time.Duration { return w.interval }
func (w *Wait) step()                   {}

// Conditional gates a single step behind a condition that is evaluated
// when the engine reaches it, never earlier.
type Conditional struct {
	inner     Step
	condition *Condition
}

func NewConditional(inner Step, condition *Condition) (*Conditional, error) {
	if _, nested := inner.(*Conditional); nested {
		return nil, ErrNestedConditional
	}
	if condition == nil {
		return nil, fmt.Errorf("conditional %s: nil condition", inner.Name())
	}
	return &Conditional{inner: inner, condition: condition}, nil
}

func (c *Conditional) Kind() core.StepKind   { return core.KindConditional }
func (c *Conditional) Name() string          { return c.inner.Name() + " if " + c.condition.String() }
func (c *Conditional) Inner() Step           { return c.inner }
func (c *Conditional) Condition() *Condition { return c.condition }
func (c *Conditional) step()                 {}

// Resolve checks the condition and returns the inner step if it holds, or
// nil if it does not.
func (c *Conditional) Resolve() (Step, error) {
	ok, err := c.condition.Check()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return c.inner, nil
}

// Package experiment sequences instrument actions, measurements and timed
// waits, optionally gated on metrics computed from earlier measurements.
//
// Steps run one at a time, in the order they were added, on a single
// goroutine. Waits are scheduled against a logical cursor that advances by
// exactly the requested interval, so per-step overhead does not accumulate
// as drift over an hours-long run.
//
// Builder methods must not be called while a run is active; they return
// ErrRunning if they are.
package experiment

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"labflow/internal/core"
	"labflow/internal/logging"
	"labflow/internal/measurement"
	"labflow/internal/ratelimit"
	"labflow/internal/stats"
)

// DefaultPollInterval is how often a wait re-checks for a stop request.
const DefaultPollInterval = 100 * time.Millisecond

type Experiment struct {
	clock        core.Clock
	logger       *log.Logger
	reporter     core.Reporter
	limiter      *ratelimit.RateLimiter
	pollInterval time.Duration

	log *measurement.Log

	mu        sync.Mutex
	steps     []Step
	csv       *measurement.CSVWriter
	cursor    time.Time
	hasCursor bool
	runID     string
	running   bool
	stopCh    chan struct{}
	stopSent  bool
	done      chan struct{}
	runErr    error
	stopped   bool
}

// Option configures an Experiment.
type Option func(*Experiment)

func WithClock(c core.Clock) Option {
	return func(e *Experiment) { e.clock = c }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithReporter sets the sink for step events. Reporters that implement
// core.RunObserver are also told when runs start and finish.
func WithReporter(r core.Reporter) Option {
	return func(e *Experiment) { e.reporter = r }
}

// WithPollInterval sets how often a wait checks for a stop request.
func WithPollInterval(d time.Duration) Option {
	return func(e *Experiment) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithCallLimiter throttles every action and measurement call.
func WithCallLimiter(l *ratelimit.RateLimiter) Option {
	return func(e *Experiment) { e.limiter = l }
}

func New(opts ...Option) *Experiment {
	e := &Experiment{
		clock:        core.RealClock{},
		logger:       logging.Discard(),
		reporter:     core.NullReporter,
		pollInterval: DefaultPollInterval,
		log:          measurement.NewLog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithPrefix("experiment")
	return e
}

// CreateMetric returns a metric over this experiment's measurement history.
func (e *Experiment) CreateMetric(measurementName string, statistic stats.Statistic) *Metric {
	return NewMetric(e.log, measurementName, statistic)
}

// SpecifyOutputDir enables CSV persistence of every measurement recorded
// from now on. The directory is created if it does not exist.
func (e *Experiment) SpecifyOutputDir(dir string) error {
	w, err := measurement.NewCSVWriter(dir)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.csv = w
	e.mu.Unlock()
	e.logger.Debug("output directory specified", "dir", dir)
	return nil
}

// AddAction appends an action, gated on cond when cond is non-nil.
func (e *Experiment) AddAction(name string, fn ActionFunc, cond *Condition) error {
	if fn == nil {
		return fmt.Errorf("action %s: %w", name, ErrNotFunc)
	}
	return e.add(NewAction(name, fn), cond)
}

// AddMeasurement appends a measurement recorded under measurementName.
func (e *Experiment) AddMeasurement(name string, fn MeasureFunc, measurementName string, cond *Condition) error {
	if fn == nil {
		return fmt.Errorf("measurement %s: %w", name, ErrNotFunc)
	}
	if measurementName == "" {
		return fmt.Errorf("measurement %s: empty measurement name", name)
	}
	return e.add(NewMeasurement(name, fn, measurementName), cond)
}

// AddWait appends a pause of d measured from the logical cursor.
func (e *Experiment) AddWait(d time.Duration, cond *Condition) error {
	w, err := NewWait(d)
	if err != nil {
		return err
	}
	return e.add(w, cond)
}

// AddBoundAction validates args against fn's parameters and appends the
// call as an action. See Bind for the accepted signatures.
func (e *Experiment) AddBoundAction(fn any, cond *Condition, args ...any) error {
	b, err := Bind(fn, args...)
	if err != nil {
		return err
	}
	return e.AddAction(b.Name, b.Action(), cond)
}

// AddBoundMeasurement validates args against fn's parameters and appends
// the call as a measurement. fn must return a value.
func (e *Experiment) AddBoundMeasurement(fn any, measurementName string, cond *Condition, args ...any) error {
	b, err := Bind(fn, args...)
	if err != nil {
		return err
	}
	measure, err := b.Measure()
	if err != nil {
		return err
	}
	return e.AddMeasurement(b.Name, measure, measurementName, cond)
}

func (e *Experiment) add(s Step, cond *Condition) error {
	if cond != nil {
		c, err := NewConditional(s, cond)
		if err != nil {
			return err
		}
		s = c
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("adding %s: %w", s.Name(), ErrRunning)
	}
	e.steps = append(e.steps, s)
	e.logger.Debug("step added", "index", len(e.steps), "kind", s.Kind(), "name", s.Name())
	return nil
}

// Steps returns a copy of the step list in execution order.
func (e *Experiment) Steps() []Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Step, len(e.steps))
	copy(out, e.steps)
	return out
}

// Measurements returns the experiment's measurement history.
func (e *Experiment) Measurements() *measurement.Log {
	return e.log
}

// CurrentTime returns the logical cursor. It is unset until the first Start.
func (e *Experiment) CurrentTime() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor, e.hasCursor
}

func (e *Experiment) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stopped reports whether the most recent run ended because of Stop or
// context cancellation.
func (e *Experiment) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// RunID identifies the most recent run.
func (e *Experiment) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// ResetExperiment clears steps, measurements and the logical cursor.
// It does nothing while a run is active.
func (e *Experiment) ResetExperiment() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.logger.Warn("experiment is running, stop it before resetting")
		return
	}
	e.steps = nil
	e.log.Reset()
	e.cursor, e.hasCursor = time.Time{}, false
	e.logger.Debug("experiment reset")
}

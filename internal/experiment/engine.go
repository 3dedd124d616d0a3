package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"labflow/internal/core"
	"labflow/internal/measurement"
)

// Start runs the experiment. In background mode it spawns a single worker
// goroutine and returns at once; use Wait for the result. Otherwise it runs
// on the caller and blocks for the whole experiment.
//
// Starting an experiment that is already running logs a warning and does
// nothing. Cancelling ctx has the same effect as Stop. ctx is also passed
// to every action and measurement, which may use it to bound their own
// execution; the engine does not interrupt a call in progress.
func (e *Experiment) Start(ctx context.Context, background bool) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Warn("experiment is already running")
		return nil
	}
	e.running = true
	e.stopped = false
	e.runErr = nil
	e.stopSent = false
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	e.runID = uuid.NewString()
	e.cursor, e.hasCursor = e.clock.Now(), true
	steps := make([]Step, len(e.steps))
	copy(steps, e.steps)
	r := &run{
		Experiment: e,
		id:         e.runID,
		steps:      steps,
		stop:       e.stopCh,
	}
	done := e.done
	e.mu.Unlock()

	if background {
		go r.loop(ctx, done)
		return nil
	}
	return r.loop(ctx, done)
}

// Wait blocks until the current or most recent run finishes and returns
// its error. It returns nil if the experiment was never started.
func (e *Experiment) Wait() error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// Stop asks a running experiment to end. The step in progress is not
// interrupted: no new step starts, and a wait in progress returns at its
// next poll. Stopping an idle experiment logs a warning and does nothing.
func (e *Experiment) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		e.logger.Warn("experiment is not running")
		return
	}
	if e.stopSent {
		return
	}
	e.stopSent = true
	close(e.stopCh)
	e.logger.Info("experiment stop signal sent", "run", e.runID)
}

// run holds the state of a single traversal of the step list.
type run struct {
	*Experiment
	id    string
	steps []Step
	stop  <-chan struct{}
}

func (r *run) loop(ctx context.Context, done chan struct{}) error {
	start, _ := r.CurrentTime()
	r.logger.Info("experiment started", "run", r.id, "steps", len(r.steps), "start", start.Format(time.DateTime))
	if obs, ok := r.reporter.(core.RunObserver); ok {
		obs.RunStarted(r.id, len(r.steps), start)
	}

	stopped, err := r.execute(ctx)

	switch {
	case err != nil:
		r.logger.Error("experiment failed", "run", r.id, "err", err)
	case stopped:
		r.logger.Info("experiment stopped", "run", r.id)
	default:
		r.logger.Info("experiment finished", "run", r.id)
	}
	if obs, ok := r.reporter.(core.RunObserver); ok {
		obs.RunFinished(r.id, err, r.clock.Now())
	}

	r.mu.Lock()
	r.running = false
	r.stopped = stopped
	r.runErr = err
	r.mu.Unlock()
	close(done)
	return err
}

// execute walks the steps in order. It returns stopped=true if a stop was
// requested before the list was exhausted.
func (r *run) execute(ctx context.Context) (bool, error) {
	for i, s := range r.steps {
		if r.stopRequested(ctx) {
			r.report(i, s, core.OutcomeStopped, nil)
			return true, nil
		}
		r.logger.Debug("step", "n", i+1, "of", len(r.steps), "kind", s.Kind(), "name", s.Name())

		cont, err := r.perform(ctx, i, s)
		if err != nil {
			return false, fmt.Errorf("step %d (%s): %w", i+1, s.Name(), err)
		}
		if !cont {
			return true, nil
		}
	}
	return false, nil
}

func (r *run) stopRequested(ctx context.Context) bool {
	select {
	case <-r.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// perform dispatches a single step. It returns false if the run must end
// because a stop was requested.
func (r *run) perform(ctx context.Context, i int, s Step) (bool, error) {
	switch step := s.(type) {
	case *Measurement:
		if !r.throttle(ctx) {
			r.report(i, step, core.OutcomeStopped, nil)
			return false, nil
		}
		if err := step.execute(ctx, r.clock); err != nil {
			r.report(i, step, core.OutcomeFailed, err)
			return false, err
		}
		rec := measurement.Record{Timestamp: r.clock.Now(), Value: step.Value()}
		r.log.Append(step.MeasurementName, rec)
		if err := r.persist(step.MeasurementName, rec); err != nil {
			r.report(i, step, core.OutcomeFailed, err)
			return false, err
		}
		r.report(i, step, core.OutcomeExecuted, nil)

	case *Action:
		if !r.throttle(ctx) {
			r.report(i, step, core.OutcomeStopped, nil)
			return false, nil
		}
		if err := step.execute(ctx, r.clock); err != nil {
			r.report(i, step, core.OutcomeFailed, err)
			return false, err
		}
		r.report(i, step, core.OutcomeExecuted, nil)

	case *Wait:
		return r.wait(ctx, i, step), nil

	case *Conditional:
		inner, err := step.Resolve()
		if err != nil {
			r.report(i, step, core.OutcomeFailed, err)
			return false, fmt.Errorf("checking condition %s: %w", step.Condition(), err)
		}
		if inner == nil {
			r.logger.Debug("condition not met, skipping", "n", i+1, "condition", step.Condition())
			r.report(i, step.Inner(), core.OutcomeSkipped, nil)
			return true, nil
		}
		return r.perform(ctx, i, inner)

	default:
		r.logger.Error("unknown step type", "n", i+1, "type", fmt.Sprintf("%T", s))
		return false, fmt.Errorf("%T: %w", s, ErrUnknownStep)
	}
	return true, nil
}

// wait sleeps until cursor+interval in poll-sized increments, then moves
// the cursor forward by exactly the interval. It returns false if a stop
// was requested while waiting.
func (r *run) wait(ctx context.Context, i int, w *Wait) bool {
	cursor, _ := r.CurrentTime()
	deadline := cursor.Add(w.Interval())
	r.logger.Debug("waiting", "n", i+1, "for", w.Interval(), "from", cursor.Format(time.DateTime))

	var overrun time.Duration
	if now := r.clock.Now(); now.After(deadline) {
		overrun = now.Sub(deadline)
		r.logger.Warn("wait deadline already passed", "n", i+1, "overage", overrun)
	}

	for {
		remaining := deadline.Sub(r.clock.Now())
		if remaining <= 0 {
			break
		}
		select {
		case <-r.stop:
			r.report(i, w, core.OutcomeStopped, nil)
			return false
		case <-ctx.Done():
			r.report(i, w, core.OutcomeStopped, nil)
			return false
		case <-r.clock.After(min(r.pollInterval, remaining)):
		}
	}

	r.mu.Lock()
	r.cursor = r.cursor.Add(w.Interval())
	r.mu.Unlock()

	r.reporter.Report(core.Event{
		RunID:     r.id,
		Index:     i,
		Total:     len(r.steps),
		Timestamp: r.clock.Now(),
		Kind:      core.KindWait,
		Name:      w.Name(),
		Outcome:   core.OutcomeExecuted,
		Duration:  w.Interval(),
		Overrun:   overrun,
	})
	return true
}

// throttle waits for the call limiter, if any. It returns false if the run
// was cancelled while waiting.
func (r *run) throttle(ctx context.Context) bool {
	if r.limiter == nil {
		return true
	}
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-wctx.Done():
		}
	}()
	return r.limiter.Wait(wctx) == nil
}

func (r *run) persist(name string, rec measurement.Record) error {
	r.mu.Lock()
	w := r.csv
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	if err := w.Write(name, rec); err != nil {
		return fmt.Errorf("persisting %s: %w", name, err)
	}
	r.logger.Debug("measurement written", "name", name, "file", w.Path(name))
	return nil
}

func (r *run) report(i int, s Step, outcome core.Outcome, err error) {
	ev := core.Event{
		RunID:     r.id,
		Index:     i,
		Total:     len(r.steps),
		Timestamp: r.clock.Now(),
		Kind:      s.Kind(),
		Name:      s.Name(),
		Outcome:   outcome,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	switch step := s.(type) {
	case *Action:
		if outcome == core.OutcomeExecuted || outcome == core.OutcomeFailed {
			ev.Duration, _ = step.Duration()
		}
	case *Measurement:
		ev.Measurement = step.MeasurementName
		if outcome == core.OutcomeExecuted || outcome == core.OutcomeFailed {
			ev.Duration, _ = step.Duration()
		}
		if outcome == core.OutcomeExecuted {
			ev.Value = step.Value()
		}
	}
	r.reporter.Report(ev)
}

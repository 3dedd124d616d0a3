package core

import (
	"errors"
	"testing"
	"time"
)

type recordingReporter struct {
	events []Event
}

func (r *recordingReporter) Report(e Event) {
	r.events = append(r.events, e)
}

func TestNullReporter(t *testing.T) {
	// NullReporter should not panic when Report is called
	NullReporter.Report(Event{Name: "test", Outcome: OutcomeExecuted})
}

func TestMultiReporter_FansOutInOrder(t *testing.T) {
	a := &recordingReporter{}
	b := &recordingReporter{}
	multi := MultiReporter{a, nil, b}

	multi.Report(Event{Index: 0, Kind: KindAction})
	multi.Report(Event{Index: 1, Kind: KindWait})

	for name, r := range map[string]*recordingReporter{"a": a, "b": b} {
		if len(r.events) != 2 {
			t.Fatalf("reporter %s: expected 2 events, got %d", name, len(r.events))
		}
		if r.events[0].Kind != KindAction || r.events[1].Kind != KindWait {
			t.Errorf("reporter %s: events out of order: %+v", name, r.events)
		}
	}
}

type observingReporter struct {
	recordingReporter
	started  []string
	finished []error
}

func (o *observingReporter) RunStarted(runID string, steps int, at time.Time) {
	o.started = append(o.started, runID)
}

func (o *observingReporter) RunFinished(runID string, err error, at time.Time) {
	o.finished = append(o.finished, err)
}

func TestMultiReporter_ForwardsRunBoundaries(t *testing.T) {
	obs := &observingReporter{}
	plain := &recordingReporter{}
	multi := MultiReporter{plain, obs}

	var _ RunObserver = multi

	boom := errors.New("boom")
	multi.RunStarted("run-1", 3, time.Now())
	multi.RunFinished("run-1", boom, time.Now())

	if len(obs.started) != 1 || obs.started[0] != "run-1" {
		t.Errorf("expected RunStarted to be forwarded, got %v", obs.started)
	}
	if len(obs.finished) != 1 || !errors.Is(obs.finished[0], boom) {
		t.Errorf("expected RunFinished to be forwarded with error, got %v", obs.finished)
	}
}

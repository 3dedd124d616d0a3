package experiment

import "errors"

var (
	// ErrRunning is returned by builder calls made while a run is active.
	ErrRunning = errors.New("experiment is running")

	// ErrNoMeasurements is returned when a metric is evaluated before any
	// value has been recorded under its measurement name. Experiments must
	// schedule at least one measurement of that name before the first
	// condition that reads it.
	ErrNoMeasurements = errors.New("no measurements recorded")

	ErrUnknownStep       = errors.New("unknown step type")
	ErrNestedConditional = errors.New("conditional steps cannot be nested")
	ErrNegativeWait      = errors.New("wait duration must not be negative")
	ErrNotCompleted      = errors.New("step has not completed")
	ErrPanic             = errors.New("step panicked")

	// Build-time validation of bound functions.
	ErrNotFunc      = errors.New("not a function")
	ErrArity        = errors.New("wrong number of arguments")
	ErrTypeMismatch = errors.New("argument type mismatch")
	ErrSignature    = errors.New("unsupported function signature")
)

package bridge

import "errors"

// Producer contract violations. These are returned to the offending producer
// call, wrapped with the adapter name.
var (
	// ErrAlreadySettled is returned when a producer signals after the
	// adapter has already received a terminal signal.
	ErrAlreadySettled = errors.New("adapter already settled")

	// ErrNilError is returned by OnError(nil).
	ErrNilError = errors.New("OnError called with nil error")
)

// ErrConcurrentConsume is yielded when a second consumer ranges over a Stream
// that is still being drained.
var ErrConcurrentConsume = errors.New("stream is already being consumed")

// Violation kinds reported to metrics.Collector.
const (
	violationAlreadySettled = "already_settled"
	violationNilError       = "nil_error"
	violationLateValue      = "value_after_terminal"
)

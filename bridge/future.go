package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/observer"
)

// Future is a single-result adapter. It remembers the latest delivered value
// and settles exactly once: with that value (or the zero value of T if none
// was delivered) on OnComplete, or with the producer's error on OnError.
//
// Future is safe for concurrent use by one producer and any number of
// waiters.
type Future[T any] struct {
	name      string
	logger    *log.Logger
	collector *metrics.Collector

	mu       sync.Mutex
	hasValue bool
	latest   T
	settled  bool
	value    T
	err      error
	done     chan struct{}
}

// NewFuture creates an unsettled Future.
func NewFuture[T any](opts ...Option) *Future[T] {
	o := buildOptions("future", opts)
	o.collector.IncFutureCreated()
	return &Future[T]{
		name:      o.name,
		logger:    o.logger,
		collector: o.collector,
		done:      make(chan struct{}),
	}
}

// Name returns the adapter name.
func (f *Future[T]) Name() string {
	return f.name
}

// OnNext records value as the latest candidate result. Never blocks.
// Returns ErrAlreadySettled if the future has settled.
func (f *Future[T]) OnNext(value T) error {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return f.violation(violationLateValue, ErrAlreadySettled)
	}
	f.latest = value
	f.hasValue = true
	f.mu.Unlock()

	f.collector.IncDelivered()
	return nil
}

// OnError settles the future with err.
// Returns ErrNilError for a nil err and ErrAlreadySettled if already settled.
func (f *Future[T]) OnError(err error) error {
	if err == nil {
		return f.violation(violationNilError, ErrNilError)
	}
	if !f.settle(err) {
		return f.violation(violationAlreadySettled, ErrAlreadySettled)
	}
	f.collector.IncFailure()
	f.logDebug("future failed", map[string]any{"error": err.Error()})
	return nil
}

// OnComplete settles the future with the latest delivered value, or the zero
// value of T if nothing was delivered.
// Returns ErrAlreadySettled if already settled.
func (f *Future[T]) OnComplete() error {
	if !f.settle(nil) {
		return f.violation(violationAlreadySettled, ErrAlreadySettled)
	}
	f.collector.IncCompletion()
	f.logDebug("future completed", map[string]any{})
	return nil
}

// settle records the outcome: err if non-nil, otherwise the latest value
// (zero if none was delivered). Returns false if already settled.
func (f *Future[T]) settle(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.settled = true
	if err != nil {
		f.err = err
	} else if f.hasValue {
		f.value = f.latest
	}
	close(f.done)
	return true
}

// Await blocks until the future settles or ctx is done.
// It may be called any number of times and always returns the same outcome.
// If ctx ends first, Await returns ctx.Err() and the future is unaffected.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

func (f *Future[T]) violation(kind string, err error) error {
	f.collector.IncContractViolation(kind)
	if f.logger != nil {
		f.logger.Warn("producer contract violation", map[string]any{
			"adapter": f.name,
			"kind":    kind,
		})
	}
	return fmt.Errorf("%s: %w", f.name, err)
}

func (f *Future[T]) logDebug(msg string, fields map[string]any) {
	if f.logger == nil {
		return
	}
	fields["adapter"] = f.name
	f.logger.Debug(msg, fields)
}

var _ observer.Observer[int] = (*Future[int])(nil)

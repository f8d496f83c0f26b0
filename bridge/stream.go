package bridge

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/pithecene-io/sluice/disposable"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/observer"
)

// Stream is a streaming adapter. Delivered values accumulate in an unbounded
// FIFO; a single consumer drains them through All.
//
// Thread safety:
//   - mu guards the buffer, the terminal slot and stats
//   - signal is a single-permit wake channel; producers post to it without
//     blocking and the consumer waits on it only when the buffer is empty
//   - the disposed flag is checked without mu on fast paths and re-checked
//     under mu before mutating the buffer
type Stream[T any] struct {
	name      string
	logger    *log.Logger
	collector *metrics.Collector

	mu       sync.Mutex
	buffer   []T
	terminal bool
	err      error
	stats    statsRecorder

	signal    chan struct{}
	disposed  disposable.Flag
	consuming atomic.Bool
}

// NewStream creates an empty, open Stream.
func NewStream[T any](opts ...Option) *Stream[T] {
	o := buildOptions("stream", opts)
	o.collector.IncStreamCreated()
	return &Stream[T]{
		name:      o.name,
		logger:    o.logger,
		collector: o.collector,
		buffer:    make([]T, 0, 16),
		signal:    make(chan struct{}, 1),
	}
}

// Name returns the adapter name.
func (s *Stream[T]) Name() string {
	return s.name
}

// OnNext appends value to the buffer and wakes the consumer. Never blocks.
// Returns a *disposable.DisposedError once the stream is disposed, and
// ErrAlreadySettled after a terminal signal.
func (s *Stream[T]) OnNext(value T) error {
	if err := s.disposed.Guard(s.name); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.disposed.Guard(s.name); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.terminal {
		s.mu.Unlock()
		return s.violation(violationLateValue)
	}
	s.buffer = append(s.buffer, value)
	s.stats.incDeliveredLocked()
	s.mu.Unlock()

	s.collector.IncDelivered()
	s.notify()
	return nil
}

// OnError records err as the terminal outcome. The consumer observes it only
// after every value delivered before it has been yielded.
func (s *Stream[T]) OnError(err error) error {
	if err == nil {
		if gerr := s.disposed.Guard(s.name); gerr != nil {
			return gerr
		}
		s.collector.IncContractViolation(violationNilError)
		return fmt.Errorf("%s: %w", s.name, ErrNilError)
	}
	if terr := s.terminate(err); terr != nil {
		return terr
	}
	s.collector.IncFailure()
	return nil
}

// OnComplete records successful termination.
func (s *Stream[T]) OnComplete() error {
	if err := s.terminate(nil); err != nil {
		return err
	}
	s.collector.IncCompletion()
	return nil
}

func (s *Stream[T]) terminate(err error) error {
	if gerr := s.disposed.Guard(s.name); gerr != nil {
		return gerr
	}

	s.mu.Lock()
	if gerr := s.disposed.Guard(s.name); gerr != nil {
		s.mu.Unlock()
		return gerr
	}
	if s.terminal {
		s.mu.Unlock()
		return s.violation(violationAlreadySettled)
	}
	s.terminal = true
	s.err = err
	s.mu.Unlock()

	s.notify()
	return nil
}

// notify posts the wake permit if it is not already posted.
func (s *Stream[T]) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// All returns a lazy, single-pass sequence over delivered values in arrival
// order.
//
// The sequence ends:
//   - after the last value, when the producer completed
//   - with a final (zero, err) pair, when the producer failed
//   - silently, when ctx is cancelled
//   - when the consumer stops ranging
//
// The stream is disposed on every exit path. Ranging over a disposed stream
// yields a single (zero, *disposable.DisposedError) pair.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := s.disposed.Guard(s.name); err != nil {
			yield(zero, err)
			return
		}
		if !s.consuming.CompareAndSwap(false, true) {
			yield(zero, fmt.Errorf("%s: %w", s.name, ErrConcurrentConsume))
			return
		}
		defer s.Dispose()

		for {
			value, st, err := s.next(ctx)
			switch st {
			case stepValue:
				s.collector.IncYielded()
				if !yield(value, nil) {
					return
				}
			case stepDone:
				if err != nil {
					yield(zero, err)
				}
				return
			case stepCancelled:
				s.cancelled()
				return
			case stepWait:
				select {
				case <-s.signal:
				case <-ctx.Done():
					s.cancelled()
					return
				}
			}
		}
	}
}

type step int

const (
	stepValue step = iota
	stepWait
	stepDone
	stepCancelled
)

// next dequeues the buffer head. Cancellation is checked before a value is
// dequeued, so a cancelled consumer never takes a value it will not yield.
// An empty buffer after a terminal signal reports stepDone even if ctx is
// also cancelled.
func (s *Stream[T]) next(ctx context.Context) (value T, st step, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gerr := s.disposed.Guard(s.name); gerr != nil {
		return value, stepDone, gerr
	}
	if len(s.buffer) > 0 {
		if ctx.Err() != nil {
			return value, stepCancelled, nil
		}
		value = s.buffer[0]
		var zero T
		s.buffer[0] = zero
		s.buffer = s.buffer[1:]
		s.stats.incYieldedLocked()
		return value, stepValue, nil
	}
	if s.terminal {
		return value, stepDone, s.err
	}
	return value, stepWait, nil
}

func (s *Stream[T]) cancelled() {
	s.collector.IncCancellation()
	if s.logger != nil {
		s.logger.Debug("stream cancelled", map[string]any{"adapter": s.name})
	}
}

// Collect drains All into a slice. On failure it returns the values yielded
// before the error alongside the error. Cancellation is not an error.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for v, err := range s.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Dispose tears the stream down: buffered values are discarded and every
// later operation fails with a *disposable.DisposedError. Idempotent.
// All disposes automatically; calling Dispose directly is only needed for a
// stream that is never consumed.
func (s *Stream[T]) Dispose() {
	s.disposed.Dispose(func() {
		s.mu.Lock()
		discarded := len(s.buffer)
		s.buffer = nil
		s.stats.addDiscardedLocked(discarded)
		s.mu.Unlock()

		s.collector.AddDiscarded(int64(discarded))
		s.collector.IncDisposal()
		if s.logger != nil {
			s.logger.Debug("stream disposed", map[string]any{
				"adapter":   s.name,
				"discarded": discarded,
			})
		}
		// Wake a consumer blocked on an empty buffer.
		s.notify()
	})
}

// Disposed reports whether the stream has been torn down.
func (s *Stream[T]) Disposed() bool {
	return s.disposed.Disposed()
}

// Stats returns an atomic snapshot of the stream counters.
func (s *Stream[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.snapshotLocked(len(s.buffer))
}

func (s *Stream[T]) violation(kind string) error {
	s.collector.IncContractViolation(kind)
	if s.logger != nil {
		s.logger.Warn("producer contract violation", map[string]any{
			"adapter": s.name,
			"kind":    kind,
		})
	}
	return fmt.Errorf("%s: %w", s.name, ErrAlreadySettled)
}

var _ observer.Observer[int] = (*Stream[int])(nil)

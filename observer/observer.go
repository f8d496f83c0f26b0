// Package observer defines the push-based notification contract bridged by
// package bridge.
//
// A producer delivers zero or more values through OnNext and finishes with at
// most one terminal call: OnError or OnComplete. Every method reports contract
// violations (delivery after a terminal signal, delivery to a disposed
// receiver) as a returned error instead of panicking, so producers can stop
// cleanly when the consumer has gone away.
package observer

// Observer receives notifications from a producer.
type Observer[T any] interface {
	// OnNext delivers a value.
	OnNext(value T) error
	// OnError terminates the sequence with an error.
	OnError(err error) error
	// OnComplete terminates the sequence successfully.
	OnComplete() error
}

// Observable is anything that can push notifications to an Observer.
type Observable[T any] interface {
	Subscribe(o Observer[T])
}

// SubscribeFunc adapts a plain subscribe callback into an Observable.
type SubscribeFunc[T any] func(o Observer[T])

// Subscribe calls f(o).
func (f SubscribeFunc[T]) Subscribe(o Observer[T]) {
	f(o)
}

// Funcs builds an Observer from callbacks. Nil callbacks are no-ops.
type Funcs[T any] struct {
	Next     func(T) error
	Error    func(error) error
	Complete func() error
}

// OnNext implements Observer.
func (f Funcs[T]) OnNext(value T) error {
	if f.Next == nil {
		return nil
	}
	return f.Next(value)
}

// OnError implements Observer.
func (f Funcs[T]) OnError(err error) error {
	if f.Error == nil {
		return nil
	}
	return f.Error(err)
}

// OnComplete implements Observer.
func (f Funcs[T]) OnComplete() error {
	if f.Complete == nil {
		return nil
	}
	return f.Complete()
}

var (
	_ Observable[int] = SubscribeFunc[int](nil)
	_ Observer[int]   = Funcs[int]{}
)

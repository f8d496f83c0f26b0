package bridge

import (
	"context"
	"iter"

	"github.com/pithecene-io/sluice/observer"
)

// Single creates a Future, hands it to subscribe, and returns it.
// subscribe runs synchronously on the caller's goroutine; it typically
// registers the Future with a producer that signals it later.
func Single[T any](subscribe observer.SubscribeFunc[T], opts ...Option) *Future[T] {
	f := NewFuture[T](opts...)
	subscribe(f)
	return f
}

// SingleFrom subscribes a new Future to source and returns it.
func SingleFrom[T any](source observer.Observable[T], opts ...Option) *Future[T] {
	f := NewFuture[T](opts...)
	source.Subscribe(f)
	return f
}

// Enumerate creates a Stream, hands it to subscribe, and returns the
// stream's pull sequence bound to ctx.
func Enumerate[T any](ctx context.Context, subscribe observer.SubscribeFunc[T], opts ...Option) iter.Seq2[T, error] {
	s := NewStream[T](opts...)
	subscribe(s)
	return s.All(ctx)
}

// EnumerateFrom subscribes a new Stream to source and returns the stream's
// pull sequence bound to ctx.
func EnumerateFrom[T any](ctx context.Context, source observer.Observable[T], opts ...Option) iter.Seq2[T, error] {
	s := NewStream[T](opts...)
	source.Subscribe(s)
	return s.All(ctx)
}

// Package bridge converts push-based notification producers into pull-based
// consumption.
//
// Two adapters implement observer.Observer:
//
//   - Future holds a single deferred result: the latest delivered value once
//     the producer completes, or the producer's error.
//   - Stream buffers every delivered value in an unbounded FIFO and exposes
//     them as a lazy, cancellable iter.Seq2. The producer never blocks.
//
// The bridging functions Single, SingleFrom, Enumerate and EnumerateFrom
// construct a fresh adapter, subscribe it to a producer, and return the pull
// handle.
//
// Producer misuse (a second terminal signal, a value after a terminal signal,
// OnError(nil)) is reported to the producer as a returned error and never
// alters an outcome that has already been settled.
package bridge

package bridge

// Stats is a point-in-time view of a Stream's counters.
// All fields are consistent with each other.
type Stats struct {
	// Delivered is the number of values accepted from the producer.
	Delivered int64
	// Yielded is the number of values handed to the consumer.
	Yielded int64
	// Pending is the number of values currently buffered.
	Pending int64
	// Discarded is the number of values dropped without being yielded,
	// either at teardown or because the consumer cancelled.
	Discarded int64
}

// statsRecorder holds Stream counters. Every method requires Stream.mu so
// the counters move atomically with the buffer.
type statsRecorder struct {
	stats Stats
}

func (r *statsRecorder) incDeliveredLocked() {
	r.stats.Delivered++
}

func (r *statsRecorder) incYieldedLocked() {
	r.stats.Yielded++
}

func (r *statsRecorder) addDiscardedLocked(n int) {
	r.stats.Discarded += int64(n)
}

func (r *statsRecorder) snapshotLocked(pending int) Stats {
	s := r.stats
	s.Pending = int64(pending)
	return s
}

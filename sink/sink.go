// Package sink persists values drained from a bridge stream.
//
// A Drainer pulls an iter.Seq2, batches records, and flushes them to a Sink
// on a count threshold, on an interval, and when the sequence ends. LodeSink
// writes batches to a Lode dataset on the filesystem, in memory, or on S3.
package sink

import (
	"context"
	"sync"
	"time"
)

// Record is a single archived value. Partition keys ("source", "day") are
// filled in by the sink when absent.
type Record map[string]any

// Sink abstracts batch persistence.
type Sink interface {
	// WriteRecords persists a batch of records.
	// Must preserve ordering within the batch.
	// Returns error on failure; the caller decides whether to retry.
	WriteRecords(ctx context.Context, records []Record) error

	// Close releases any resources held by the sink.
	Close() error
}

// DeriveDay formats t as the "day" partition value (YYYY-MM-DD, UTC).
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// StubSink is a test sink that keeps records in memory.
type StubSink struct {
	mu sync.Mutex

	// RecordsWritten is the total count of records written.
	RecordsWritten int64
	// Batches is the number of WriteRecords calls that succeeded.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool
	// Written stores all written records for inspection.
	Written []Record

	// ErrorOnWrite, if set, is returned by WriteRecords.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteRecords implements Sink.
func (s *StubSink) WriteRecords(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.RecordsWritten += int64(len(records))
	s.Batches++
	s.Written = append(s.Written, records...)
	return nil
}

// Close implements Sink.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// SetError sets ErrorOnWrite under the lock.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorOnWrite = err
}

// Snapshot returns a copy of the written records and the batch count.
func (s *StubSink) Snapshot() ([]Record, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.Written))
	copy(out, s.Written)
	return out, s.Batches
}

var _ Sink = (*StubSink)(nil)

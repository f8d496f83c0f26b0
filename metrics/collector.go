// Package metrics provides process-wide counters for bridge adapters, sources
// and sinks.
//
// The Collector is a leaf package with no internal dependencies. Adapters
// share one Collector; a nil *Collector is valid and records nothing.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Adapter lifecycle
	FuturesCreated int64
	StreamsCreated int64
	Completions    int64
	Failures       int64
	Cancellations  int64
	Disposals      int64

	// Values
	ValuesDelivered int64
	ValuesYielded   int64
	ValuesDiscarded int64

	// Producer contract violations, keyed by kind
	ContractViolations int64
	ViolationsByKind   map[string]int64

	// Sources
	DecodeErrors int64

	// Sink
	SinkWriteSuccess int64
	SinkWriteFailure int64

	// Dimensions (informational, set at construction)
	Source      string
	Codec       string
	SinkBackend string
}

// Collector accumulates counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	futuresCreated int64
	streamsCreated int64
	completions    int64
	failures       int64
	cancellations  int64
	disposals      int64

	valuesDelivered int64
	valuesYielded   int64
	valuesDiscarded int64

	contractViolations int64
	violationsByKind   map[string]int64

	decodeErrors int64

	sinkWriteSuccess int64
	sinkWriteFailure int64

	source      string
	codec       string
	sinkBackend string
}

// NewCollector creates a Collector with dimension labels.
// Any label may be empty.
func NewCollector(source, codec, sinkBackend string) *Collector {
	return &Collector{
		violationsByKind: make(map[string]int64),
		source:           source,
		codec:            codec,
		sinkBackend:      sinkBackend,
	}
}

// --- Adapter lifecycle ---

// IncFutureCreated records construction of a single-result adapter.
func (c *Collector) IncFutureCreated() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.futuresCreated++
	c.mu.Unlock()
}

// IncStreamCreated records construction of a streaming adapter.
func (c *Collector) IncStreamCreated() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsCreated++
	c.mu.Unlock()
}

// IncCompletion records a successful terminal signal.
func (c *Collector) IncCompletion() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.completions++
	c.mu.Unlock()
}

// IncFailure records an error terminal signal.
func (c *Collector) IncFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
}

// IncCancellation records a consumer-side cancellation.
func (c *Collector) IncCancellation() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cancellations++
	c.mu.Unlock()
}

// IncDisposal records an adapter teardown.
func (c *Collector) IncDisposal() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.disposals++
	c.mu.Unlock()
}

// --- Values ---

// IncDelivered records a value accepted from a producer.
func (c *Collector) IncDelivered() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.valuesDelivered++
	c.mu.Unlock()
}

// IncYielded records a value handed to a consumer.
func (c *Collector) IncYielded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.valuesYielded++
	c.mu.Unlock()
}

// AddDiscarded records buffered values dropped at teardown.
func (c *Collector) AddDiscarded(n int64) {
	if c == nil || n == 0 {
		return
	}
	c.mu.Lock()
	c.valuesDiscarded += n
	c.mu.Unlock()
}

// IncContractViolation records a producer misuse of the notification
// contract, such as a second terminal signal.
func (c *Collector) IncContractViolation(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.contractViolations++
	c.violationsByKind[kind]++
	c.mu.Unlock()
}

// --- Sources ---

// IncDecodeError records a payload or frame that could not be decoded.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// --- Sink ---
// Sink counters are per-call, not per-record.

// IncSinkWriteSuccess records a successful sink write.
func (c *Collector) IncSinkWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWriteSuccess++
	c.mu.Unlock()
}

// IncSinkWriteFailure records a failed sink write.
func (c *Collector) IncSinkWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWriteFailure++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.violationsByKind))
	for k, v := range c.violationsByKind {
		byKind[k] = v
	}

	return Snapshot{
		FuturesCreated: c.futuresCreated,
		StreamsCreated: c.streamsCreated,
		Completions:    c.completions,
		Failures:       c.failures,
		Cancellations:  c.cancellations,
		Disposals:      c.disposals,

		ValuesDelivered: c.valuesDelivered,
		ValuesYielded:   c.valuesYielded,
		ValuesDiscarded: c.valuesDiscarded,

		ContractViolations: c.contractViolations,
		ViolationsByKind:   byKind,

		DecodeErrors: c.decodeErrors,

		SinkWriteSuccess: c.sinkWriteSuccess,
		SinkWriteFailure: c.sinkWriteFailure,

		Source:      c.source,
		Codec:       c.codec,
		SinkBackend: c.sinkBackend,
	}
}

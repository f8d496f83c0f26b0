package sink

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/pithecene-io/sluice/log"
)

// DrainConfig configures a Drainer.
type DrainConfig struct {
	// FlushCount triggers a flush after N records accumulate.
	// Zero means count-based flush is disabled.
	FlushCount int

	// FlushInterval triggers a flush every interval.
	// Zero means interval-based flush is disabled.
	FlushInterval time.Duration

	// Logger is an optional logger.
	Logger *log.Logger
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates an end-of-sequence flush.
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrInvalidConfig is returned when DrainConfig is invalid.
var ErrInvalidConfig = errors.New("invalid drain config: at least one of FlushCount or FlushInterval must be set")

// DrainStats is a point-in-time view of a Drainer.
type DrainStats struct {
	// Received is the number of records added.
	Received int64
	// Persisted is the number of records written to the sink.
	Persisted int64
	// Buffered is the number of records awaiting a flush.
	Buffered int64
	// Flushes counts flush attempts per trigger.
	Flushes map[FlushTrigger]int64
	// Errors is the number of failed sink writes.
	Errors int64
}

// Drainer batches records and writes them to a Sink.
//
// Records are never dropped: on a failed write the batch is restored ahead
// of anything added since and retried on the next trigger.
//
// Thread safety:
//   - mu guards buffer state and stats
//   - flushMu serializes flushes between the interval goroutine and callers
type Drainer struct {
	sink   Sink
	config DrainConfig
	logger *log.Logger

	mu      sync.Mutex
	buffer  []Record
	stats   DrainStats
	stopped bool

	flushMu sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDrainer creates a Drainer writing to sink.
// Returns ErrInvalidConfig if neither trigger is set.
func NewDrainer(sink Sink, config DrainConfig) (*Drainer, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrInvalidConfig
	}

	d := &Drainer{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]Record, 0, max(config.FlushCount, 16)),
		stats:  DrainStats{Flushes: make(map[FlushTrigger]int64)},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		go d.intervalLoop()
	} else {
		close(d.doneCh)
	}
	return d, nil
}

// Add buffers rec and flushes if the count threshold is reached.
func (d *Drainer) Add(ctx context.Context, rec Record) error {
	d.mu.Lock()
	d.buffer = append(d.buffer, rec)
	d.stats.Received++
	shouldFlush := d.config.FlushCount > 0 && len(d.buffer) >= d.config.FlushCount
	d.mu.Unlock()

	if shouldFlush {
		return d.flush(ctx, FlushTriggerCount)
	}
	return nil
}

// Flush writes everything buffered.
func (d *Drainer) Flush(ctx context.Context) error {
	return d.flush(ctx, FlushTriggerTermination)
}

// flush swaps the buffer under mu, writes outside mu, and restores the
// batch on failure.
func (d *Drainer) flush(ctx context.Context, trigger FlushTrigger) error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	d.stats.Flushes[trigger]++
	batch := d.buffer
	if len(batch) == 0 {
		d.mu.Unlock()
		return nil
	}
	d.buffer = make([]Record, 0, cap(batch))
	d.mu.Unlock()

	if err := d.sink.WriteRecords(ctx, batch); err != nil {
		d.mu.Lock()
		d.stats.Errors++
		d.buffer = append(batch, d.buffer...)
		d.mu.Unlock()
		d.logFlushFailure(trigger, len(batch), err)
		return err
	}

	d.mu.Lock()
	d.stats.Persisted += int64(len(batch))
	d.mu.Unlock()
	d.logFlush(trigger, len(batch))
	return nil
}

// Close stops the interval goroutine, flushes what remains, and closes the
// sink.
func (d *Drainer) Close() error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopCh)
	}
	d.mu.Unlock()
	<-d.doneCh

	flushErr := d.Flush(context.Background())
	closeErr := d.sink.Close()
	return errors.Join(flushErr, closeErr)
}

// Stats returns an atomic snapshot.
func (d *Drainer) Stats() DrainStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Buffered = int64(len(d.buffer))
	s.Flushes = make(map[FlushTrigger]int64, len(d.stats.Flushes))
	for k, v := range d.stats.Flushes {
		s.Flushes[k] = v
	}
	return s
}

func (d *Drainer) intervalLoop() {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			hasData := len(d.buffer) > 0
			d.mu.Unlock()

			if hasData {
				// Best-effort interval flush; errors are logged and retried.
				_ = d.flush(context.Background(), FlushTriggerInterval)
			}
		case <-d.stopCh:
			return
		}
	}
}

// Drain pulls seq to exhaustion, converting each value with encode and
// adding it to d. It flushes when the sequence ends, including when the
// sequence ends with an error, and returns the first error from the
// sequence, encode, or the sink.
func Drain[T any](ctx context.Context, d *Drainer, seq iter.Seq2[T, error], encode func(T) (Record, error)) error {
	var seqErr error
	for v, err := range seq {
		if err != nil {
			seqErr = err
			break
		}
		rec, err := encode(v)
		if err != nil {
			seqErr = fmt.Errorf("encode record: %w", err)
			break
		}
		if err := d.Add(ctx, rec); err != nil {
			// The failed batch stays buffered for Close.
			return err
		}
	}

	// The sequence's context may be cancelled; the final flush must still run.
	flushErr := d.Flush(context.WithoutCancel(ctx))
	if seqErr != nil {
		return seqErr
	}
	return flushErr
}

// --- Logging helpers ---

func (d *Drainer) logFlush(trigger FlushTrigger, records int) {
	if d.logger == nil {
		return
	}
	d.logger.Info("archive flush", map[string]any{
		"trigger": string(trigger),
		"records": records,
	})
}

func (d *Drainer) logFlushFailure(trigger FlushTrigger, records int, err error) {
	if d.logger == nil {
		return
	}
	d.logger.Error("archive flush failed", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"error":   err.Error(),
	})
}

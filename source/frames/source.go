package frames

import (
	"io"

	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/observer"
)

// Config configures a frame Source.
type Config struct {
	// SkipInvalid skips payloads that fail to decode instead of failing the
	// subscription. Fatal frame errors always fail it.
	SkipInvalid bool
	// Logger is an optional logger.
	Logger *log.Logger
	// Collector is an optional metrics collector.
	Collector *metrics.Collector
}

// Source emits every frame read from a reader as a decoded T.
//
// Each Subscribe starts one goroutine that reads until EOF (OnComplete), a
// frame error (OnError), or an observer error (stop). A Source reads its
// reader once; subscribe it once.
type Source[T any] struct {
	reader io.Reader
	config Config
}

// NewSource creates a frame Source over r.
func NewSource[T any](r io.Reader, cfg Config) *Source[T] {
	return &Source[T]{reader: r, config: cfg}
}

// Subscribe implements observer.Observable.
func (s *Source[T]) Subscribe(o observer.Observer[T]) {
	go s.run(o)
}

func (s *Source[T]) run(o observer.Observer[T]) {
	dec := NewDecoder(s.reader)
	var frames int64

	for {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			s.logDebug("frame stream ended", map[string]any{"frames": frames})
			_ = o.OnComplete()
			return
		}
		if err != nil {
			s.config.Collector.IncDecodeError()
			s.logWarn("frame read failed", map[string]any{"error": err.Error(), "frames": frames})
			_ = o.OnError(err)
			return
		}
		frames++

		v, err := Decode[T](payload)
		if err != nil {
			s.config.Collector.IncDecodeError()
			if s.config.SkipInvalid {
				s.logWarn("skipping undecodable frame", map[string]any{"error": err.Error(), "frame": frames})
				continue
			}
			_ = o.OnError(err)
			return
		}

		if err := o.OnNext(v); err != nil {
			s.logDebug("observer stopped frame stream", map[string]any{"error": err.Error(), "frames": frames})
			return
		}
	}
}

func (s *Source[T]) logDebug(msg string, fields map[string]any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, fields)
	}
}

func (s *Source[T]) logWarn(msg string, fields map[string]any) {
	if s.config.Logger != nil {
		s.config.Logger.Warn(msg, fields)
	}
}

var _ observer.Observable[int] = (*Source[int])(nil)

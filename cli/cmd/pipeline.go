package cmd

import (
	"iter"

	"github.com/pithecene-io/sluice/codec"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/observer"
	"github.com/pithecene-io/sluice/source/redis"
)

// decodeMessages decodes each message payload before forwarding it.
// Undecodable payloads are skipped with a warning when skipInvalid is set;
// otherwise they fail the subscription and stop the source.
func decodeMessages(src observer.Observable[redis.Message], st streamSettings, logger *log.Logger, collector *metrics.Collector) observer.Observable[any] {
	return observer.SubscribeFunc[any](func(o observer.Observer[any]) {
		src.Subscribe(observer.Funcs[redis.Message]{
			Next: func(m redis.Message) error {
				v, err := codec.Decode(st.codec, m.Payload)
				if err == nil {
					return o.OnNext(v)
				}
				collector.IncDecodeError()
				if st.skipInvalid {
					logger.Warn("skipping undecodable payload", map[string]any{
						"channel": m.Channel,
						"codec":   string(st.codec),
						"error":   err.Error(),
					})
					return nil
				}
				if oerr := o.OnError(err); oerr != nil {
					return oerr
				}
				return err
			},
			Error:    o.OnError,
			Complete: o.OnComplete,
		})
	})
}

// limit ends seq after n values. n <= 0 means no limit. Stopping early
// stops the underlying sequence.
func limit[T any](seq iter.Seq2[T, error], n int) iter.Seq2[T, error] {
	if n <= 0 {
		return seq
	}
	return func(yield func(T, error) bool) {
		seen := 0
		for v, err := range seq {
			if !yield(v, err) || err != nil {
				return
			}
			seen++
			if seen >= n {
				return
			}
		}
	}
}

package bridge

import (
	"github.com/google/uuid"

	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
)

// Option configures an adapter.
type Option func(*options)

type options struct {
	name      string
	logger    *log.Logger
	collector *metrics.Collector
}

// WithName sets the adapter name used in disposed errors and log entries.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger attaches a logger. Adapters log nothing without one.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCollector attaches a shared metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) {
		o.collector = c
	}
}

func buildOptions(prefix string, opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = prefix + "-" + uuid.New().String()
	}
	return o
}

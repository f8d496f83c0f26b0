// Package redis bridges Redis pub/sub channels into the notification
// contract: a Source emits every message published to a channel, and a
// Publisher sends payloads with retries.
package redis

import (
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "sluice:events"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of publish retry attempts.
const DefaultRetries = 3

// ErrMissingURL is returned when Config.URL is empty.
var ErrMissingURL = errors.New("redis requires a URL")

// Config configures a Source or Publisher.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: sluice:events).
	Channel string

	// Limit completes a subscription after this many messages.
	// Zero means unlimited.
	Limit int
	// EndMarker completes a subscription when a payload equals it.
	// The marker itself is not delivered. Empty disables it.
	EndMarker string

	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of publish retry attempts on failure (default 0).
	Retries int

	// Logger is an optional logger.
	Logger *log.Logger
	// Collector is an optional metrics collector.
	Collector *metrics.Collector
}

// Message is a single pub/sub message.
type Message struct {
	Channel string
	Payload []byte
}

// newClient validates cfg, applies defaults, and builds a client.
func newClient(cfg Config) (*goredis.Client, Config, error) {
	if cfg.URL == "" {
		return nil, cfg, ErrMissingURL
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, cfg, fmt.Errorf("redis: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, cfg, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Limit < 0 {
		return nil, cfg, fmt.Errorf("limit must be >= 0, got %d", cfg.Limit)
	}

	return goredis.NewClient(opts), cfg, nil
}

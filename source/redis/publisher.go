package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Publisher sends payloads via Redis PUBLISH.
// Retries with exponential backoff on failures.
type Publisher struct {
	config Config
	client *goredis.Client
}

// NewPublisher creates a Publisher from the given config.
// Returns an error if the URL is empty or invalid.
func NewPublisher(cfg Config) (*Publisher, error) {
	client, cfg, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{config: cfg, client: client}, nil
}

// Publish sends payload to the configured channel and returns the number of
// subscribers that received it.
func (p *Publisher) Publish(ctx context.Context, payload []byte) (int64, error) {
	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + p.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("redis: context canceled: %w", err)
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			if p.config.Logger != nil {
				p.config.Logger.Warn("publish retry", map[string]any{
					"channel": p.config.Channel,
					"attempt": i + 1,
					"backoff": backoff.String(),
					"error":   lastErr.Error(),
				})
			}
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		var receivers int64
		receivers, lastErr = p.client.Publish(publishCtx, p.config.Channel, payload).Result()
		cancel()

		if lastErr == nil {
			return receivers, nil
		}
	}

	return 0, fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases publisher resources.
func (p *Publisher) Close() error {
	return p.client.Close()
}

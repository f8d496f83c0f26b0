package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/sluice/observer"
)

// Source emits messages published to a Redis channel.
//
// Subscribe blocks until the server confirms the subscription, so every
// message published after it returns is delivered. Messages are then
// forwarded from a background goroutine until one of:
//   - Limit messages were delivered (OnComplete)
//   - a payload equals EndMarker (OnComplete)
//   - the bound context ends or the Source is closed (OnComplete)
//   - receiving fails (OnError)
//   - the observer rejects a value (stop without a terminal signal)
type Source struct {
	config Config
	client *goredis.Client

	// mu orders subscription starts against Close so wg.Add never races
	// wg.Wait.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSource creates a Source from the given config.
func NewSource(cfg Config) (*Source, error) {
	client, cfg, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Source{
		config: cfg,
		client: client,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Channel returns the subscribed channel name.
func (s *Source) Channel() string {
	return s.config.Channel
}

// Subscribe implements observer.Observable. The subscription lives until the
// Source is closed.
func (s *Source) Subscribe(o observer.Observer[Message]) {
	s.SubscribeContext(s.ctx, o)
}

// Bind returns an Observable whose subscriptions end when ctx does.
func (s *Source) Bind(ctx context.Context) observer.Observable[Message] {
	return observer.SubscribeFunc[Message](func(o observer.Observer[Message]) {
		s.SubscribeContext(ctx, o)
	})
}

// SubscribeContext subscribes o for the lifetime of ctx (or the Source,
// whichever ends first). Subscribing to a closed Source completes o
// immediately.
func (s *Source) SubscribeContext(ctx context.Context, o observer.Observer[Message]) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = o.OnComplete()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stopOnClose := context.AfterFunc(s.ctx, cancel)

	ps := s.client.Subscribe(ctx, s.config.Channel)
	if _, err := ps.Receive(ctx); err != nil {
		cancelled := ctx.Err() != nil || s.ctx.Err() != nil
		stopOnClose()
		cancel()
		_ = ps.Close()
		s.wg.Done()
		if cancelled {
			_ = o.OnComplete()
			return
		}
		s.logWarn("subscribe failed", map[string]any{"error": err.Error()})
		_ = o.OnError(fmt.Errorf("redis: subscribe %s: %w", s.config.Channel, err))
		return
	}
	s.logInfo("subscribed", nil)

	// Closing the PubSub unblocks ReceiveMessage when ctx ends.
	closeOnDone := context.AfterFunc(ctx, func() { _ = ps.Close() })

	go func() {
		defer s.wg.Done()
		defer stopOnClose()
		defer cancel()
		defer func() {
			if closeOnDone() {
				_ = ps.Close()
			}
		}()
		s.forward(ctx, ps, o)
	}()
}

func (s *Source) forward(ctx context.Context, ps *goredis.PubSub, o observer.Observer[Message]) {
	delivered := 0
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, goredis.ErrClosed) {
				s.logInfo("subscription closed", map[string]any{"delivered": delivered})
				_ = o.OnComplete()
				return
			}
			s.logWarn("receive failed", map[string]any{"error": err.Error(), "delivered": delivered})
			_ = o.OnError(fmt.Errorf("redis: receive: %w", err))
			return
		}

		if s.config.EndMarker != "" && msg.Payload == s.config.EndMarker {
			s.logInfo("end marker received", map[string]any{"delivered": delivered})
			_ = o.OnComplete()
			return
		}

		if err := o.OnNext(Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}); err != nil {
			s.logInfo("observer stopped subscription", map[string]any{"error": err.Error(), "delivered": delivered})
			return
		}
		delivered++

		if s.config.Limit > 0 && delivered >= s.config.Limit {
			_ = o.OnComplete()
			return
		}
	}
}

// Close ends every active subscription and releases the client.
func (s *Source) Close() error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	return s.client.Close()
}

func (s *Source) logInfo(msg string, fields map[string]any) {
	if s.config.Logger == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["channel"] = s.config.Channel
	s.config.Logger.Info(msg, fields)
}

func (s *Source) logWarn(msg string, fields map[string]any) {
	if s.config.Logger == nil {
		return
	}
	fields["channel"] = s.config.Channel
	s.config.Logger.Warn(msg, fields)
}

var _ observer.Observable[Message] = (*Source)(nil)

package redis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pithecene-io/sluice/bridge"
	"github.com/pithecene-io/sluice/metrics"
)

// asyncReceive starts a goroutine that reads one message from the subscriber
// and sends it to the returned channel. Must be called BEFORE Publish to avoid
// deadlocking miniredis's synchronous pub/sub delivery.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{} // unreachable
	}
}

func mustSource(t *testing.T, cfg Config) *Source {
	t.Helper()
	s, err := NewSource(cfg)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func collect(t *testing.T, seq func(func(Message, error) bool)) ([]string, error) {
	t.Helper()
	type result struct {
		payloads []string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		for msg, err := range seq {
			if err != nil {
				r.err = err
				break
			}
			r.payloads = append(r.payloads, string(msg.Payload))
		}
		done <- r
	}()
	select {
	case r := <-done:
		return r.payloads, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out collecting messages")
		return nil, nil
	}
}

func TestNewSource_RequiresURL(t *testing.T) {
	if _, err := NewSource(Config{}); !errors.Is(err, ErrMissingURL) {
		t.Errorf("expected ErrMissingURL, got %v", err)
	}
}

func TestNewSource_InvalidURL(t *testing.T) {
	if _, err := NewSource(Config{URL: "not-a-url://"}); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestNewPublisher_NegativeRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	if _, err := NewPublisher(Config{URL: "redis://" + mr.Addr(), Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
}

func TestNewSource_Defaults(t *testing.T) {
	mr := miniredis.RunT(t)
	s := mustSource(t, Config{URL: "redis://" + mr.Addr()})

	if s.Channel() != DefaultChannel {
		t.Errorf("Channel = %q, want %q", s.Channel(), DefaultChannel)
	}
	if s.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", s.config.Timeout, DefaultTimeout)
	}
}

func TestSource_Limit(t *testing.T) {
	mr := miniredis.RunT(t)
	s := mustSource(t, Config{URL: "redis://" + mr.Addr(), Channel: "events", Limit: 3})

	seq := bridge.EnumerateFrom[Message](t.Context(), s)
	for _, p := range []string{"a", "b", "c", "d"} {
		mr.Publish("events", p)
	}

	got, err := collect(t, seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("payloads = %v, want [a b c]", got)
	}
}

func TestSource_EndMarker(t *testing.T) {
	mr := miniredis.RunT(t)
	s := mustSource(t, Config{URL: "redis://" + mr.Addr(), Channel: "events", EndMarker: "EOF"})

	f := bridge.SingleFrom[Message](s)
	mr.Publish("events", "first")
	mr.Publish("events", "second")
	mr.Publish("events", "EOF")

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	msg, err := f.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if string(msg.Payload) != "second" || msg.Channel != "events" {
		t.Errorf("last message = %+v, want second on events", msg)
	}
}

func TestSource_BindContextCompletes(t *testing.T) {
	mr := miniredis.RunT(t)
	s := mustSource(t, Config{URL: "redis://" + mr.Addr(), Channel: "events"})

	ctx, cancel := context.WithCancel(t.Context())
	f := bridge.SingleFrom[Message](s.Bind(ctx))
	mr.Publish("events", "only")

	// Give the forwarder a moment to deliver before ending the subscription.
	time.Sleep(50 * time.Millisecond)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer waitCancel()
	msg, err := f.Await(waitCtx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if string(msg.Payload) != "only" {
		t.Errorf("payload = %q, want only", msg.Payload)
	}
}

func TestSource_CloseCompletesSubscription(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewSource(Config{URL: "redis://" + mr.Addr(), Channel: "events"})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	seq := bridge.EnumerateFrom[Message](t.Context(), s)
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = s.Close()
	}()

	got, err := collect(t, seq)
	if err != nil || len(got) != 0 {
		t.Errorf("collect = (%v, %v), want ([], nil)", got, err)
	}
}

func TestSource_ConsumerBreakStopsForwarding(t *testing.T) {
	mr := miniredis.RunT(t)
	c := metrics.NewCollector("redis", "raw", "")
	s := mustSource(t, Config{URL: "redis://" + mr.Addr(), Channel: "events"})

	seq := bridge.EnumerateFrom[Message](t.Context(), s, bridge.WithCollector(c))
	mr.Publish("events", "1")

	for msg, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(msg.Payload) != "1" {
			t.Errorf("payload = %q, want 1", msg.Payload)
		}
		break
	}

	// The next message hits the disposed stream and ends the forwarder.
	mr.Publish("events", "2")
	mr.Publish("events", "3")

	stopped := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("forwarder still running after consumer break")
	}

	snap := c.Snapshot()
	if snap.ValuesDelivered != 1 {
		t.Errorf("ValuesDelivered = %d, want 1", snap.ValuesDelivered)
	}
	if snap.Disposals != 1 {
		t.Errorf("Disposals = %d, want 1", snap.Disposals)
	}
}

func TestSource_SubscribeFailureIsError(t *testing.T) {
	// Nothing listens on port 1.
	s := mustSource(t, Config{URL: "redis://127.0.0.1:1", Channel: "events", Timeout: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	_, err := bridge.SingleFrom[Message](s).Await(ctx)
	if err == nil {
		t.Fatal("expected subscribe error, got nil")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected subscribe error, got %v", err)
	}
	if !strings.Contains(err.Error(), "redis: subscribe events") {
		t.Errorf("error = %q, want redis: subscribe prefix", err)
	}
}

func TestSource_SubscribeAuthFailureIsError(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")
	s := mustSource(t, Config{URL: "redis://" + mr.Addr(), Channel: "events"})

	got, err := collect(t, bridge.EnumerateFrom[Message](t.Context(), s))
	if len(got) != 0 {
		t.Errorf("payloads = %v, want none", got)
	}
	if err == nil || !strings.Contains(err.Error(), "redis: subscribe") {
		t.Errorf("err = %v, want subscribe error", err)
	}
}

func TestSource_ReceiveFailureAfterValues(t *testing.T) {
	mr := miniredis.RunT(t)
	s := mustSource(t, Config{URL: "redis://" + mr.Addr(), Channel: "events"})

	seq := bridge.EnumerateFrom[Message](t.Context(), s)
	mr.Publish("events", "a")
	mr.Publish("events", "b")

	type result struct {
		payloads []string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		for msg, err := range seq {
			if err != nil {
				r.err = err
				break
			}
			r.payloads = append(r.payloads, string(msg.Payload))
			if len(r.payloads) == 2 {
				mr.Close()
			}
		}
		done <- r
	}()

	var r result
	select {
	case r = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for receive failure")
	}
	if len(r.payloads) != 2 || r.payloads[0] != "a" || r.payloads[1] != "b" {
		t.Errorf("payloads = %v, want [a b]", r.payloads)
	}
	if r.err == nil || !strings.Contains(r.err.Error(), "redis: receive") {
		t.Errorf("err = %v, want receive error", r.err)
	}
}

func TestSource_SubscribeAfterCloseCompletes(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewSource(Config{URL: "redis://" + mr.Addr(), Channel: "events"})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := collect(t, bridge.EnumerateFrom[Message](t.Context(), s))
	if err != nil || len(got) != 0 {
		t.Errorf("collect = (%v, %v), want ([], nil)", got, err)
	}
}

func TestSource_CloseDuringSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewSource(Config{URL: "redis://" + mr.Addr(), Channel: "events"})
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, _ = bridge.SingleFrom[Message](s).Await(t.Context())
		})
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("subscribers still waiting after Close")
	}
}

func TestPublish_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	p, err := NewPublisher(Config{URL: "redis://" + mr.Addr(), Retries: 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = p.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := asyncReceive(sub)

	n, err := p.Publish(t.Context(), []byte(`{"id":1}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 1 {
		t.Errorf("receivers = %d, want 1", n)
	}

	msg := waitMessage(t, ch)
	if msg.Message != `{"id":1}` {
		t.Errorf("message = %q, want %q", msg.Message, `{"id":1}`)
	}
	if msg.Channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", msg.Channel, DefaultChannel)
	}
}

func TestPublish_ToSource(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()

	s := mustSource(t, Config{URL: url, Channel: "events", Limit: 2})
	p, err := NewPublisher(Config{URL: url, Channel: "events"})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer func() { _ = p.Close() }()

	seq := bridge.EnumerateFrom[Message](t.Context(), s)
	for _, payload := range []string{"x", "y"} {
		if _, err := p.Publish(t.Context(), []byte(payload)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	got, err := collect(t, seq)
	if err != nil || len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("collect = (%v, %v), want ([x y], nil)", got, err)
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	mr := miniredis.RunT(t)
	p, err := NewPublisher(Config{URL: "redis://" + mr.Addr(), Retries: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := p.Publish(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPublish_RetriesExhausted(t *testing.T) {
	// Nothing listens on port 1.
	p, err := NewPublisher(Config{URL: "redis://127.0.0.1:1", Retries: 1, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = p.Close() }()

	_, err = p.Publish(t.Context(), []byte("x"))
	if err == nil {
		t.Fatal("expected error after server shutdown")
	}
}

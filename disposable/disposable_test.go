package disposable

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFlag_DisposeOnce(t *testing.T) {
	var f Flag
	var calls atomic.Int32

	var wg sync.WaitGroup
	var winners atomic.Int32
	for range 16 {
		wg.Go(func() {
			if f.Dispose(func() { calls.Add(1) }) {
				winners.Add(1)
			}
		})
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("teardown calls = %d, want 1", got)
	}
	if got := winners.Load(); got != 1 {
		t.Errorf("winners = %d, want 1", got)
	}
	if !f.Disposed() {
		t.Error("expected Disposed() = true")
	}
}

func TestFlag_DisposeNilTeardown(t *testing.T) {
	var f Flag
	if !f.Dispose(nil) {
		t.Error("first Dispose should report the transition")
	}
	if f.Dispose(nil) {
		t.Error("second Dispose should be a no-op")
	}
}

func TestFlag_Guard(t *testing.T) {
	var f Flag
	if err := f.Guard("stream-1"); err != nil {
		t.Fatalf("Guard before dispose = %v, want nil", err)
	}

	f.Dispose(nil)

	err := f.Guard("stream-1")
	if err == nil {
		t.Fatal("expected error after dispose")
	}
	if !errors.Is(err, ErrDisposed) {
		t.Errorf("errors.Is(err, ErrDisposed) = false for %v", err)
	}
	var de *DisposedError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DisposedError, got %T", err)
	}
	if de.Name != "stream-1" {
		t.Errorf("Name = %q, want %q", de.Name, "stream-1")
	}
	want := "stream-1 has been disposed and should no longer be accessed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

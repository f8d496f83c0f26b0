// Package disposable provides the idempotent teardown flag shared by the
// bridge adapters.
package disposable

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrDisposed matches every *DisposedError via errors.Is.
var ErrDisposed = errors.New("object disposed")

// DisposedError is returned by any operation attempted after teardown.
type DisposedError struct {
	// Name identifies the disposed object.
	Name string
}

// Error implements the error interface.
func (e *DisposedError) Error() string {
	return fmt.Sprintf("%s has been disposed and should no longer be accessed", e.Name)
}

// Is reports whether target is ErrDisposed.
func (e *DisposedError) Is(target error) bool {
	return target == ErrDisposed
}

// Flag records whether an object has been torn down.
// The zero value is ready to use. Safe for concurrent use.
type Flag struct {
	disposed atomic.Bool
}

// Dispose marks the flag disposed and runs teardown exactly once.
// Returns true only for the call that performed the transition.
func (f *Flag) Dispose(teardown func()) bool {
	if !f.disposed.CompareAndSwap(false, true) {
		return false
	}
	if teardown != nil {
		teardown()
	}
	return true
}

// Disposed reports whether Dispose has been called.
func (f *Flag) Disposed() bool {
	return f.disposed.Load()
}

// Guard returns a *DisposedError naming the object if the flag is disposed.
func (f *Flag) Guard(name string) error {
	if f.disposed.Load() {
		return &DisposedError{Name: name}
	}
	return nil
}

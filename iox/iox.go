// Package iox provides cleanup helpers for sources, sinks, and files.
package iox

import (
	"errors"
	"io"
)

// DiscardClose closes c and drops the error, for deferred cleanup whose
// failure changes nothing:
//
//	defer iox.DiscardClose(src)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(pub))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops the error (e.g. a logger Sync):
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// CloseAll closes every closer in order, including after a failure, and
// joins the errors. Nil closers are skipped.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
